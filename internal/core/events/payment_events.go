package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/jaaptech/nepalipay/internal/core/datamodel/payment"
)

const (
	EventTypePaymentInitiated  = "payment.initiated"
	EventTypePaymentProcessing = "payment.processing"
	EventTypePaymentCompleted  = "payment.completed"
	EventTypePaymentFailed     = "payment.failed"
	EventTypePaymentRefunded   = "payment.refunded"
)

// PaymentEvent carries a snapshot of the transaction at the time of the
// lifecycle change. FailureReason is only set for payment.failed.
type PaymentEvent struct {
	BaseEvent
	TransactionID string  `json:"transaction_id"`
	Gateway       string  `json:"gateway"`
	ReferenceID   string  `json:"reference_id"`
	Amount        float64 `json:"amount"`
	Status        string  `json:"status"`
	FailureReason string  `json:"failure_reason,omitempty"`
}

func newPaymentEvent(eventType string, tx *payment.Transaction, reason string) *PaymentEvent {
	return &PaymentEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.NewString(),
			Type:      eventType,
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"transaction_id": tx.ID,
				"gateway":        tx.Gateway.String(),
				"reference_id":   tx.MerchantReferenceID,
				"amount":         tx.Amount,
				"status":         string(tx.Status),
			},
		},
		TransactionID: tx.ID,
		Gateway:       tx.Gateway.String(),
		ReferenceID:   tx.MerchantReferenceID,
		Amount:        tx.Amount,
		Status:        string(tx.Status),
		FailureReason: reason,
	}
}

func NewPaymentInitiatedEvent(tx *payment.Transaction) *PaymentEvent {
	return newPaymentEvent(EventTypePaymentInitiated, tx, "")
}

func NewPaymentProcessingEvent(tx *payment.Transaction) *PaymentEvent {
	return newPaymentEvent(EventTypePaymentProcessing, tx, "")
}

func NewPaymentCompletedEvent(tx *payment.Transaction) *PaymentEvent {
	return newPaymentEvent(EventTypePaymentCompleted, tx, "")
}

func NewPaymentFailedEvent(tx *payment.Transaction, reason string) *PaymentEvent {
	ev := newPaymentEvent(EventTypePaymentFailed, tx, reason)
	if reason != "" {
		ev.Data["failure_reason"] = reason
	}
	return ev
}

// PaymentRefundedEvent is published when the last refund settles and the
// parent transaction moves to REFUNDED.
type PaymentRefundedEvent struct {
	PaymentEvent
	RefundID     string  `json:"refund_id"`
	RefundAmount float64 `json:"refund_amount"`
}

func NewPaymentRefundedEvent(tx *payment.Transaction, refund *payment.Refund) *PaymentRefundedEvent {
	ev := &PaymentRefundedEvent{
		PaymentEvent: *newPaymentEvent(EventTypePaymentRefunded, tx, ""),
		RefundID:     refund.ID,
		RefundAmount: refund.RefundAmount,
	}
	ev.Data["refund_id"] = refund.ID
	ev.Data["refund_amount"] = refund.RefundAmount
	return ev
}
