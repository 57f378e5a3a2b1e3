package payment

import (
	"encoding/json"
	"time"

	errors "github.com/jaaptech/nepalipay/internal"
	"github.com/jaaptech/nepalipay/internal/core/common/validation"
	datamodel "github.com/jaaptech/nepalipay/internal/core/datamodel/payment"
)

// InitiateRequest carries the gateway payload for payment initiation. The
// payload shape is gateway-specific and passed through opaquely; callback
// URLs are merged in from configuration by the gateway strategy.
type InitiateRequest struct {
	Data map[string]interface{} `json:"data"`
}

func (r *InitiateRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("data", r.Data).Required()

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// VerifyRequest carries the gateway-specific verification parameters, e.g.
// pidx for Khalti or transaction_uuid plus amounts for eSewa.
type VerifyRequest struct {
	Data map[string]interface{} `json:"data"`
}

func (r *VerifyRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("data", r.Data).Required()

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// RefundRequest opens a refund against a completed payment
type RefundRequest struct {
	Amount float64 `json:"amount"`
	Reason string  `json:"reason"`
	Notes  string  `json:"notes"`
}

func (r *RefundRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("amount", r.Amount).Required().PositiveAmount(errors.ErrCodeInvalidAmount)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// ProcessRefundRequest settles a pending refund with the gateway outcome
type ProcessRefundRequest struct {
	Success         bool                   `json:"success"`
	GatewayRefundID string                 `json:"gateway_refund_id"`
	GatewayResponse map[string]interface{} `json:"gateway_response"`
}

// TransactionResponse is the API shape of a ledger transaction
type TransactionResponse struct {
	ID                   string          `json:"id"`
	Gateway              string          `json:"gateway"`
	Status               string          `json:"status"`
	StatusLabel          string          `json:"status_label"`
	Amount               float64         `json:"amount"`
	Currency             string          `json:"currency"`
	MerchantReferenceID  string          `json:"merchant_reference_id"`
	GatewayTransactionID *string         `json:"gateway_transaction_id,omitempty"`
	GatewayResponse      json.RawMessage `json:"gateway_response,omitempty"`
	PayableType          *string         `json:"payable_type,omitempty"`
	PayableID            *string         `json:"payable_id,omitempty"`
	InitiatedAt          time.Time       `json:"initiated_at"`
	VerifiedAt           *time.Time      `json:"verified_at,omitempty"`
	CompletedAt          *time.Time      `json:"completed_at,omitempty"`
	FailedAt             *time.Time      `json:"failed_at,omitempty"`
	RefundedAt           *time.Time      `json:"refunded_at,omitempty"`
}

func ToTransactionResponse(tx *datamodel.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:                   tx.ID,
		Gateway:              tx.Gateway.String(),
		Status:               tx.Status.String(),
		StatusLabel:          tx.Status.Label(),
		Amount:               tx.Amount,
		Currency:             tx.Currency,
		MerchantReferenceID:  tx.MerchantReferenceID,
		GatewayTransactionID: tx.GatewayTransactionID,
		GatewayResponse:      tx.GatewayResponse,
		PayableType:          tx.PayableType,
		PayableID:            tx.PayableID,
		InitiatedAt:          tx.InitiatedAt,
		VerifiedAt:           tx.VerifiedAt,
		CompletedAt:          tx.CompletedAt,
		FailedAt:             tx.FailedAt,
		RefundedAt:           tx.RefundedAt,
	}
}

func ToTransactionResponses(txs []*datamodel.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, len(txs))
	for i, tx := range txs {
		out[i] = ToTransactionResponse(tx)
	}
	return out
}

// RefundResponse is the API shape of a ledger refund
type RefundResponse struct {
	ID              string     `json:"id"`
	PaymentID       string     `json:"payment_id"`
	Amount          float64    `json:"amount"`
	Reason          string     `json:"reason"`
	ReasonLabel     string     `json:"reason_label"`
	Status          string     `json:"status"`
	GatewayRefundID *string    `json:"gateway_refund_id,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	RequestedAt     time.Time  `json:"requested_at"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
}

func ToRefundResponse(refund *datamodel.Refund) RefundResponse {
	return RefundResponse{
		ID:              refund.ID,
		PaymentID:       refund.PaymentID,
		Amount:          refund.RefundAmount,
		Reason:          refund.RefundReason.String(),
		ReasonLabel:     refund.RefundReason.Label(),
		Status:          refund.RefundStatus.String(),
		GatewayRefundID: refund.GatewayRefundID,
		Notes:           refund.Notes,
		RequestedAt:     refund.RequestedAt,
		ProcessedAt:     refund.ProcessedAt,
	}
}

func ToRefundResponses(refunds []*datamodel.Refund) []RefundResponse {
	out := make([]RefundResponse, len(refunds))
	for i, r := range refunds {
		out[i] = ToRefundResponse(r)
	}
	return out
}

// GatewayCallResponse wraps a raw gateway response for API callers
type GatewayCallResponse struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data"`
}
