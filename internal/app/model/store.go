package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type Store struct {
	ID          uint           `gorm:"primarykey" json:"id"`                           // 고유 매장 ID
	Name        string         `gorm:"not null;index" json:"name"`                     // 매장명 (레거시 그룹핑 키)
	OwnerUserID *uint          `gorm:"index" json:"owner_user_id,omitempty"`           // 매장 소유자 ID (알림 수신자)
	Region      string         `gorm:"type:varchar(50)" json:"region,omitempty"`       // 시·도
	District    string         `gorm:"type:varchar(50)" json:"district,omitempty"`     // 구·군
	PhoneNumber string         `gorm:"type:varchar(30)" json:"phone_number,omitempty"` // 연락처
	CreatedAt   time.Time      `json:"created_at"`                                     // 생성 시각
	UpdatedAt   time.Time      `json:"updated_at"`                                     // 수정 시각
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                                 // 삭제 시각(소프트 삭제)
}

func (Store) TableName() string {
	return "stores"
}

// NormalizeStoreName 매장명 비교용 (앞뒤 공백 제거, 대소문자 무시)
func NormalizeStoreName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// MatchesName exact case-insensitive trimmed match
func (s Store) MatchesName(name string) bool {
	return NormalizeStoreName(s.Name) == NormalizeStoreName(name)
}
