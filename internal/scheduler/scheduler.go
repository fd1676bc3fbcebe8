package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/ikkim/udonggeum-fulfillment/pkg/logger"
	"github.com/robfig/cron/v3"
)

// JobFunc 주기 작업 본문
type JobFunc func(ctx context.Context) error

// Scheduler cron 기반 주기 작업 실행기 (같은 작업은 겹쳐 실행하지 않음)
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler 스케줄러 생성
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register 작업 등록. spec은 cron 표현식 또는 "@every 30s" 형식
func (s *Scheduler) Register(name, spec string, job JobFunc) error {
	_, err := s.cron.AddFunc(spec, func() {
		started := time.Now()
		if err := job(s.ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("Scheduled job failed", err, map[string]interface{}{
				"job": name,
			})
			return
		}
		logger.Debug("Scheduled job finished", map[string]interface{}{
			"job":      name,
			"duration": time.Since(started).String(),
		})
	})
	if err != nil {
		logger.Error("Failed to add cron job", err, map[string]interface{}{
			"job":  name,
			"spec": spec,
		})
		return err
	}

	logger.Info("Scheduled job registered", map[string]interface{}{
		"job":  name,
		"spec": spec,
	})
	return nil
}

// Start 스케줄러 시작
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info("Scheduler started", map[string]interface{}{
		"jobs": len(s.cron.Entries()),
	})
}

// Stop 실행 중인 작업에 취소를 알리고 종료를 기다림
func (s *Scheduler) Stop() {
	logger.Info("Stopping scheduler...", nil)
	s.cancel()
	<-s.cron.Stop().Done()
	logger.Info("Scheduler stopped", nil)
}
