package scheduler

import (
	"context"
	"time"

	"github.com/ikkim/udonggeum-fulfillment/pkg/logger"
)

const (
	RefetchJobName  = "split_refetch"
	ReminderJobName = "division_response_reminder"
)

// Refetcher *reconcile.Reconciler
type Refetcher interface {
	Refetch(ctx context.Context) (int, error)
}

// Reminder service.DivisionStatusService
type Reminder interface {
	RemindAwaiting(ctx context.Context, olderThan time.Duration) (int, error)
}

// RefetchJob 연결 상태와 무관하게 진행 중인 분할 주문 전체를 다시 조회
func RefetchJob(refetcher Refetcher) JobFunc {
	return func(ctx context.Context) error {
		count, err := refetcher.Refetch(ctx)
		if err != nil {
			return err
		}
		logger.Debug("Split orders refetched", map[string]interface{}{
			"count": count,
		})
		return nil
	}
}

// ReminderJob 응답 대기가 길어진 매장에 리마인더 발송
func ReminderJob(reminder Reminder, olderThan time.Duration) JobFunc {
	return func(ctx context.Context) error {
		_, err := reminder.RemindAwaiting(ctx, olderThan)
		return err
	}
}
