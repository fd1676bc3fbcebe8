package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ItemSnapshot 주문 시점의 상품 정보 (orders.items 비정규화 컬럼)
type ItemSnapshot struct {
	ProductName     string  `json:"product_name"`
	StoreID         *uint   `json:"store_id,omitempty"`
	StoreName       string  `json:"store_name,omitempty"`
	VendorName      string  `json:"vendor_name,omitempty"`
	Price           float64 `json:"price"`
	DiscountedPrice float64 `json:"discounted_price,omitempty"`
	Quantity        int     `json:"quantity"`
}

type Order struct {
	ID                  uint                              `gorm:"primarykey" json:"id"`                                                             // 주문 ID
	Code                string                            `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`                                // 주문 번호
	CustomerUserID      *uint                             `gorm:"index" json:"customer_user_id,omitempty"`                                          // 주문자 ID
	CustomerName        string                            `gorm:"type:varchar(100)" json:"customer_name"`                                           // 주문자 이름
	CustomerPhone       string                            `gorm:"type:varchar(30)" json:"customer_phone"`                                           // 주문자 연락처
	CustomerAddress     string                            `gorm:"type:text" json:"customer_address"`                                                // 배송지 주소
	Notes               string                            `gorm:"type:text" json:"notes,omitempty"`                                                 // 요청 사항
	Status              OrderStatus                       `gorm:"column:order_status;type:varchar(20);default:'pending';index" json:"order_status"` // 주문 상태
	AssignedStoreID     *uint                             `gorm:"index" json:"assigned_store_id"`                                                   // 배정 매장 ID
	AssignedStoreName   string                            `gorm:"type:varchar(100)" json:"assigned_store_name,omitempty"`                           // 배정 매장명
	MainStoreName       string                            `gorm:"type:varchar(100)" json:"main_store_name,omitempty"`                               // 대표 매장명
	OrderDetails        string                            `gorm:"type:text" json:"order_details,omitempty"`                                         // 메모 (레거시 마커 포함)
	ParentOrderID       *uint                             `gorm:"index" json:"parent_order_id,omitempty"`                                           // 원 주문 ID (분할 주문만)
	ParentOrder         *Order                            `gorm:"foreignKey:ParentOrderID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	ReturnReason        string                            `gorm:"type:text" json:"return_reason,omitempty"`                                         // 반품 사유
	Items               datatypes.JSONSlice[ItemSnapshot] `json:"items,omitempty"`                                                                  // 상품 스냅샷
	TotalAmount         float64                           `gorm:"not null;default:0" json:"total_amount"`                                           // 총 금액
	ItemsCount          int                               `gorm:"not null;default:0" json:"items_count"`                                            // 상품 수
	StoreResponseStatus StoreResponseStatus               `gorm:"type:varchar(20)" json:"store_response_status"`                                    // 매장 응답 상태 (빈 값 = 미응답)
	StoreResponseAt     *time.Time                        `json:"store_response_at,omitempty"`                                                      // 매장 응답 시각
	RejectionReason     string                            `gorm:"type:text" json:"rejection_reason,omitempty"`                                      // 거절 사유
	AggregateStatus     AggregateStatus                   `gorm:"type:varchar(20)" json:"aggregate_status,omitempty"`                               // 분할 주문 집계 상태 (원 주문만)
	AggregateUpdatedAt  *time.Time                        `json:"aggregate_updated_at,omitempty"`                                                   // 집계 갱신 시각
	ResponseRemindedAt  *time.Time                        `json:"-"`                                                                                // 응답 리마인더 발송 시각
	CreatedAt           time.Time                         `json:"created_at"`                                                                       // 생성 시각
	UpdatedAt           time.Time                         `json:"updated_at"`                                                                       // 수정 시각
	DeletedAt           gorm.DeletedAt                    `gorm:"index" json:"-"`                                                                   // 삭제 시각(소프트 삭제)

	OrderItems []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"order_items,omitempty"` // 주문 항목 목록
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.Code == "" {
		o.Code = "ORD-" + strings.ToUpper(uuid.NewString()[:8])
	}
	return nil
}

// IsDivision 원 주문에서 분할된 주문인지 (FK 또는 레거시 마커)
func (o *Order) IsDivision() bool {
	if o.ParentOrderID != nil {
		return true
	}
	_, ok := ParseSplitMarker(o.OrderDetails)
	return ok
}

// EffectiveItems order_items가 있으면 우선, 없으면 스냅샷 사용
func (o *Order) EffectiveItems() []ItemSnapshot {
	if len(o.OrderItems) > 0 {
		items := make([]ItemSnapshot, 0, len(o.OrderItems))
		for _, it := range o.OrderItems {
			items = append(items, it.Snapshot())
		}
		return items
	}
	return []ItemSnapshot(o.Items)
}

// ReturnReasonText typed 필드 우선, 없으면 레거시 마커
func (o *Order) ReturnReasonText() string {
	if o.ReturnReason != "" {
		return o.ReturnReason
	}
	reason, _ := ParseReturnReason(o.OrderDetails)
	return reason
}

type OrderItem struct {
	ID              uint      `gorm:"primarykey" json:"id"`                             // 주문 항목 ID
	OrderID         uint      `gorm:"not null;index" json:"order_id"`                   // 주문 ID
	ProductName     string    `gorm:"type:varchar(200)" json:"product_name"`            // 상품명
	StoreID         *uint     `gorm:"index" json:"store_id,omitempty"`                  // 매장 ID (주문 시점에 알려진 경우)
	StoreName       string    `gorm:"type:varchar(100)" json:"store_name,omitempty"`    // 매장명
	VendorName      string    `gorm:"type:varchar(100)" json:"vendor_name,omitempty"`   // 판매처명
	Price           float64   `gorm:"not null" json:"price"`                            // 단가
	DiscountedPrice float64   `gorm:"not null;default:0" json:"discounted_price"`       // 할인 단가
	Quantity        int       `gorm:"not null" json:"quantity"`                         // 수량
	CreatedAt       time.Time `json:"created_at"`                                       // 생성 시각
	UpdatedAt       time.Time `json:"updated_at"`                                       // 수정 시각
}

func (OrderItem) TableName() string {
	return "order_items"
}

func (i OrderItem) Snapshot() ItemSnapshot {
	return ItemSnapshot{
		ProductName:     i.ProductName,
		StoreID:         i.StoreID,
		StoreName:       i.StoreName,
		VendorName:      i.VendorName,
		Price:           i.Price,
		DiscountedPrice: i.DiscountedPrice,
		Quantity:        i.Quantity,
	}
}
