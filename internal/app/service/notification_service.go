package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ikkim/udonggeum-fulfillment/internal/app/model"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/repository"
	"github.com/ikkim/udonggeum-fulfillment/internal/websocket"
	"github.com/ikkim/udonggeum-fulfillment/pkg/logger"
	"gorm.io/datatypes"
)

// Notice 알림 요청 (문구는 만들지 않고 대상과 이벤트만 결정)
// vendor 수신자의 RecipientID는 매장 ID, admin은 0
type Notice struct {
	RecipientType model.RecipientType
	RecipientID   uint
	Event         model.NotificationEvent
	OrderID       *uint
	Data          map[string]interface{}
}

type Notifier interface {
	Notify(ctx context.Context, notice Notice) error
}

// Forwarder 외부 전달 채널 (SQS 등)
type Forwarder interface {
	Forward(ctx context.Context, notification *model.Notification) error
}

// NotificationService 알림 서비스 인터페이스
type NotificationService interface {
	Notifier
	List(ctx context.Context, recipientType model.RecipientType, recipientID uint, unreadOnly bool, limit int) ([]model.Notification, error)
	MarkAsRead(ctx context.Context, id uint, recipientType model.RecipientType, recipientID uint) error
}

type notificationService struct {
	repo       repository.NotificationRepository
	hub        *websocket.Hub
	forwarders []Forwarder
}

// NewNotificationService 알림 서비스 생성자
func NewNotificationService(repo repository.NotificationRepository, hub *websocket.Hub, forwarders ...Forwarder) NotificationService {
	return &notificationService{
		repo:       repo,
		hub:        hub,
		forwarders: forwarders,
	}
}

func topicFor(recipientType model.RecipientType, recipientID uint) string {
	switch recipientType {
	case model.RecipientVendor:
		return websocket.VendorTopic(recipientID)
	case model.RecipientCustomer:
		return websocket.CustomerTopic(recipientID)
	default:
		return websocket.AdminTopic
	}
}

// Notify 알림 저장 후 실시간 전송 및 외부 전달 (전달 실패는 로그만 남김)
func (s *notificationService) Notify(ctx context.Context, notice Notice) error {
	notification := &model.Notification{
		RecipientType: notice.RecipientType,
		RecipientID:   notice.RecipientID,
		Event:         notice.Event,
		OrderID:       notice.OrderID,
	}
	if len(notice.Data) > 0 {
		payload, err := json.Marshal(notice.Data)
		if err != nil {
			return fmt.Errorf("failed to encode notification payload: %w", err)
		}
		notification.Payload = datatypes.JSON(payload)
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		logger.Error("Failed to create notification", err, map[string]interface{}{
			"recipient_type": notice.RecipientType,
			"recipient_id":   notice.RecipientID,
			"event":          notice.Event,
		})
		return fmt.Errorf("failed to create notification: %w", err)
	}

	if s.hub != nil {
		if err := s.hub.Publish(topicFor(notice.RecipientType, notice.RecipientID), "notification", notification); err != nil {
			logger.Warn("Failed to push notification", map[string]interface{}{
				"notification_id": notification.ID,
				"error":           err.Error(),
			})
		}
	}

	for _, f := range s.forwarders {
		if err := f.Forward(ctx, notification); err != nil {
			logger.Warn("Failed to forward notification", map[string]interface{}{
				"notification_id": notification.ID,
				"error":           err.Error(),
			})
		}
	}

	logger.Info("Notification created", map[string]interface{}{
		"notification_id": notification.ID,
		"recipient_type":  notice.RecipientType,
		"recipient_id":    notice.RecipientID,
		"event":           notice.Event,
	})
	return nil
}

func (s *notificationService) List(ctx context.Context, recipientType model.RecipientType, recipientID uint, unreadOnly bool, limit int) ([]model.Notification, error) {
	return s.repo.FindByRecipient(ctx, recipientType, recipientID, unreadOnly, limit)
}

func (s *notificationService) MarkAsRead(ctx context.Context, id uint, recipientType model.RecipientType, recipientID uint) error {
	if err := s.repo.MarkAsRead(ctx, id, recipientType, recipientID); err != nil {
		if repository.IsNotFound(err) {
			return fmt.Errorf("notification %d: %w", id, err)
		}
		return err
	}
	return nil
}
