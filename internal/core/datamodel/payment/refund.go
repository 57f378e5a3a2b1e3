package payment

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Refund is one record per refund request against a transaction.
type Refund struct {
	ID              string          `json:"id" gorm:"primaryKey;type:uuid"`
	PaymentID       string          `json:"payment_id" gorm:"column:payment_id;not null;index"`
	RefundAmount    float64         `json:"refund_amount" gorm:"column:refund_amount;type:decimal(12,2);not null"`
	RefundReason    RefundReason    `json:"refund_reason" gorm:"column:refund_reason;default:user_request"`
	RefundStatus    RefundStatus    `json:"refund_status" gorm:"column:refund_status;not null;default:pending;index"`
	GatewayRefundID *string         `json:"gateway_refund_id,omitempty" gorm:"column:gateway_refund_id"`
	GatewayResponse json.RawMessage `json:"gateway_response,omitempty" gorm:"column:gateway_response;type:jsonb"`
	Notes           string          `json:"notes,omitempty" gorm:"column:notes"`
	RequestedAt     time.Time       `json:"requested_at" gorm:"column:requested_at"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty" gorm:"column:processed_at"`
	CreatedAt       time.Time       `json:"created_at" gorm:"column:created_at"`
	UpdatedAt       time.Time       `json:"updated_at" gorm:"column:updated_at"`
}

func (Refund) TableName() string {
	return "payment_refunds"
}

func (r *Refund) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.RequestedAt.IsZero() {
		r.RequestedAt = time.Now().UTC()
	}
	return nil
}

func (r *Refund) IsCompleted() bool {
	return r.RefundStatus == RefundStatusCompleted
}

func (r *Refund) IsFailed() bool {
	return r.RefundStatus == RefundStatusFailed
}

func (r *Refund) IsPending() bool {
	return r.RefundStatus == RefundStatusPending || r.RefundStatus == RefundStatusProcessing
}
