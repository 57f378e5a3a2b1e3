package payment

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jaaptech/nepalipay/internal/core/datamodel/gateway"
)

// Transaction is one record per payment attempt. Rows are never deleted;
// state changes only through the documented status transitions.
type Transaction struct {
	ID                   string          `json:"id" gorm:"primaryKey;type:uuid"`
	Gateway              gateway.Gateway `json:"gateway" gorm:"column:gateway;not null;index"`
	Status               Status          `json:"status" gorm:"column:status;not null;default:pending;index"`
	Amount               float64         `json:"amount" gorm:"column:amount;type:decimal(12,2);not null"`
	Currency             string          `json:"currency" gorm:"column:currency;default:NPR"`
	MerchantReferenceID  string          `json:"merchant_reference_id" gorm:"column:merchant_reference_id;not null;uniqueIndex"`
	GatewayTransactionID *string         `json:"gateway_transaction_id,omitempty" gorm:"column:gateway_transaction_id;uniqueIndex"`
	GatewayPayload       json.RawMessage `json:"gateway_payload,omitempty" gorm:"column:gateway_payload;type:jsonb"`
	GatewayResponse      json.RawMessage `json:"gateway_response,omitempty" gorm:"column:gateway_response;type:jsonb"`
	PayableType          *string         `json:"payable_type,omitempty" gorm:"column:payable_type;index:idx_payment_transactions_payable"`
	PayableID            *string         `json:"payable_id,omitempty" gorm:"column:payable_id;index:idx_payment_transactions_payable"`
	InitiatedAt          time.Time       `json:"initiated_at" gorm:"column:initiated_at"`
	VerifiedAt           *time.Time      `json:"verified_at,omitempty" gorm:"column:verified_at"`
	CompletedAt          *time.Time      `json:"completed_at,omitempty" gorm:"column:completed_at"`
	FailedAt             *time.Time      `json:"failed_at,omitempty" gorm:"column:failed_at"`
	RefundedAt           *time.Time      `json:"refunded_at,omitempty" gorm:"column:refunded_at"`
	CreatedAt            time.Time       `json:"created_at" gorm:"column:created_at"`
	UpdatedAt            time.Time       `json:"updated_at" gorm:"column:updated_at"`

	Refunds []Refund `json:"refunds,omitempty" gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE"`
}

func (Transaction) TableName() string {
	return "payment_transactions"
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Currency == "" {
		t.Currency = "NPR"
	}
	if t.InitiatedAt.IsZero() {
		t.InitiatedAt = time.Now().UTC()
	}
	return nil
}

func (t *Transaction) IsCompleted() bool {
	return t.Status == StatusCompleted
}

func (t *Transaction) IsFailed() bool {
	return t.Status == StatusFailed
}

func (t *Transaction) IsPending() bool {
	return t.Status.IsPending()
}

// CanBeRefunded reports whether a refund may be requested against this
// transaction. Only completed payments are refundable.
func (t *Transaction) CanBeRefunded() bool {
	return t.Status == StatusCompleted
}

// CompletedRefundTotal sums the amounts of all completed refunds on the
// loaded Refunds association.
func (t *Transaction) CompletedRefundTotal() float64 {
	var total float64
	for _, r := range t.Refunds {
		if r.RefundStatus == RefundStatusCompleted {
			total += r.RefundAmount
		}
	}
	return total
}

// RemainingRefundableAmount is the transaction amount minus all completed
// refund amounts. Never negative for a ledger that honors the refund guards.
func (t *Transaction) RemainingRefundableAmount() float64 {
	remaining := t.Amount - t.CompletedRefundTotal()
	if remaining < 0 {
		return 0
	}
	return remaining
}
