package repository

import (
	"context"

	"github.com/ikkim/udonggeum-fulfillment/internal/app/model"
	"gorm.io/gorm"
)

// NotificationRepository 알림 저장소 인터페이스
type NotificationRepository interface {
	Create(ctx context.Context, notification *model.Notification) error
	FindByRecipient(ctx context.Context, recipientType model.RecipientType, recipientID uint, unreadOnly bool, limit int) ([]model.Notification, error)
	FindByOrder(ctx context.Context, orderID uint) ([]model.Notification, error)
	MarkAsRead(ctx context.Context, id uint, recipientType model.RecipientType, recipientID uint) error
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 알림 저장소 생성자
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Create 알림 생성
func (r *notificationRepository) Create(ctx context.Context, notification *model.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

// FindByRecipient 수신자별 알림 목록 (최신순)
func (r *notificationRepository) FindByRecipient(
	ctx context.Context,
	recipientType model.RecipientType,
	recipientID uint,
	unreadOnly bool,
	limit int,
) ([]model.Notification, error) {
	query := r.db.WithContext(ctx).
		Where("recipient_type = ? AND recipient_id = ?", recipientType, recipientID)

	// 읽음 상태 필터
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var notifications []model.Notification
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *notificationRepository) FindByOrder(ctx context.Context, orderID uint) ([]model.Notification, error) {
	var notifications []model.Notification
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id").Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkAsRead 알림 읽음 처리 (본인 알림만)
func (r *notificationRepository) MarkAsRead(ctx context.Context, id uint, recipientType model.RecipientType, recipientID uint) error {
	result := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ? AND recipient_type = ? AND recipient_id = ?", id, recipientType, recipientID).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
