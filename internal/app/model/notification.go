package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RecipientType string

const (
	RecipientCustomer RecipientType = "customer"
	RecipientVendor   RecipientType = "vendor"
	RecipientAdmin    RecipientType = "admin"
)

// NotificationEvent 알림 템플릿 키 (메시지 문구는 외부에서 렌더링)
type NotificationEvent string

const (
	EventDivisionAssigned         NotificationEvent = "division_assigned"
	EventDivisionResponseReminder NotificationEvent = "division_response_reminder"
	EventDivisionsComplete        NotificationEvent = "divisions_complete"
	EventDivisionsDelivered       NotificationEvent = "divisions_delivered"
	EventDivisionsMixed           NotificationEvent = "divisions_mixed"
	EventSplitFailed              NotificationEvent = "split_failed"
)

// Notification 알림 모델
type Notification struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// 수신자 (admin은 RecipientID 0)
	RecipientType RecipientType `gorm:"type:varchar(20);not null;index:idx_notification_recipient" json:"recipient_type"`
	RecipientID   uint          `gorm:"not null;index:idx_notification_recipient" json:"recipient_id"`

	Event   NotificationEvent `gorm:"type:varchar(50);not null;index" json:"event"`
	OrderID *uint             `gorm:"index" json:"order_id,omitempty"`
	Payload datatypes.JSON    `json:"payload,omitempty"`

	// 상태
	IsRead bool `gorm:"default:false;index" json:"is_read"`
}

func (Notification) TableName() string {
	return "notifications"
}
