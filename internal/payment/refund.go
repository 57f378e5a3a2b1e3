package payment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jaaptech/nepalipay/internal"
	datamodel "github.com/jaaptech/nepalipay/internal/core/datamodel/payment"
	"github.com/jaaptech/nepalipay/internal/core/events"
)

// RefundRepository is the storage contract for the refund side of the
// ledger. TransitionStatus carries the same atomic-guard semantics as the
// transaction repository.
type RefundRepository interface {
	Create(refund *datamodel.Refund) error
	GetByID(id string) (*datamodel.Refund, error)
	ListForPayment(paymentID string) ([]*datamodel.Refund, error)
	TransitionStatus(id string, from []datamodel.RefundStatus, to datamodel.RefundStatus, updates map[string]interface{}) error
	CompletedAmountForPayment(paymentID string) (float64, error)
	HasPendingForPayment(paymentID string) (bool, error)
}

// RefundService owns refund creation and settlement, including promotion of
// the parent payment to REFUNDED once every refund has cleared.
type RefundService struct {
	repo     RefundRepository
	payments *PaymentService
	eventBus *events.EventBus
	logger   *slog.Logger
}

func NewRefundService(repo RefundRepository, payments *PaymentService, eventBus *events.EventBus, logger *slog.Logger) *RefundService {
	return &RefundService{
		repo:     repo,
		payments: payments,
		eventBus: eventBus,
		logger:   logger,
	}
}

// CreateRefundParams describes a refund request against a completed
// payment. Reason accepts free-form input and is normalized; unknown
// values collapse to OTHER.
type CreateRefundParams struct {
	Amount float64
	Reason string
	Notes  string
}

// CreateRefund opens a PENDING refund after enforcing the eligibility
// guards: the parent must be refundable and the amount must fit within what
// completed refunds have left over.
func (s *RefundService) CreateRefund(tx *datamodel.Transaction, params CreateRefundParams) (*datamodel.Refund, error) {
	if !s.payments.databaseEnabled() {
		return nil, ErrDatabaseDisabled
	}
	if params.Amount <= 0 {
		return nil, internal.NewValidationError("refund amount must be positive", internal.ErrCodeInvalidAmount)
	}
	if !tx.CanBeRefunded() {
		return nil, &RefundNotAllowedError{TransactionID: tx.ID, Status: tx.Status}
	}

	completed, err := s.repo.CompletedAmountForPayment(tx.ID)
	if err != nil {
		return nil, &PersistenceError{Op: "refund", Gateway: tx.Gateway, TransactionID: tx.ID, Err: err}
	}
	remaining := tx.Amount - completed
	if params.Amount > remaining {
		return nil, &RefundAmountExceededError{
			TransactionID: tx.ID,
			Requested:     params.Amount,
			Remaining:     remaining,
		}
	}

	refund := &datamodel.Refund{
		PaymentID:    tx.ID,
		RefundAmount: params.Amount,
		RefundReason: datamodel.ParseRefundReason(params.Reason),
		RefundStatus: datamodel.RefundStatusPending,
		Notes:        params.Notes,
		RequestedAt:  time.Now().UTC(),
	}
	if err := s.repo.Create(refund); err != nil {
		return nil, &PersistenceError{Op: "refund", Gateway: tx.Gateway, TransactionID: tx.ID, Err: err}
	}

	s.logger.Info("refund created",
		"refund_id", refund.ID,
		"transaction_id", tx.ID,
		"amount", refund.RefundAmount,
		"reason", refund.RefundReason.String())

	return refund, nil
}

// ProcessRefund settles a pending refund with the gateway outcome. On
// success the refund completes, and once no refund against the parent is
// still outstanding the payment flips to REFUNDED. On failure the gateway's
// error message is kept in the refund notes.
func (s *RefundService) ProcessRefund(refund *datamodel.Refund, gatewayRefundID string, gatewayResponse map[string]interface{}, success bool) error {
	if !s.payments.databaseEnabled() {
		return ErrDatabaseDisabled
	}

	responseJSON, err := marshalOpaque(gatewayResponse)
	if err != nil {
		return &PersistenceError{Op: "refund", TransactionID: refund.PaymentID, Err: err}
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{"processed_at": now}
	if responseJSON != nil {
		updates["gateway_response"] = responseJSON
	}

	from := []datamodel.RefundStatus{datamodel.RefundStatusPending, datamodel.RefundStatusProcessing}
	var target datamodel.RefundStatus
	var failureNote string
	if success {
		target = datamodel.RefundStatusCompleted
		if gatewayRefundID != "" {
			updates["gateway_refund_id"] = gatewayRefundID
		}
	} else {
		target = datamodel.RefundStatusFailed
		failureNote = refundFailureNote(gatewayResponse)
		updates["notes"] = failureNote
	}

	if err := s.repo.TransitionStatus(refund.ID, from, target, updates); err != nil {
		if errors.Is(err, ErrTransitionConflict) {
			return &InvalidStateTransitionError{
				TransactionID: refund.ID,
				From:          datamodel.Status(refund.RefundStatus),
				To:            datamodel.Status(target),
			}
		}
		return &PersistenceError{Op: "refund", TransactionID: refund.PaymentID, Err: err}
	}

	refund.RefundStatus = target
	refund.ProcessedAt = &now
	if gatewayRefundID != "" {
		refund.GatewayRefundID = &gatewayRefundID
	}
	if responseJSON != nil {
		refund.GatewayResponse = responseJSON
	}

	if !success {
		refund.Notes = failureNote
		s.logger.Warn("refund failed at gateway",
			"refund_id", refund.ID,
			"transaction_id", refund.PaymentID,
			"reason", failureNote)
		return nil
	}

	return s.settleParent(refund)
}

// refundFailureNote pulls the gateway's error message out of the raw
// response so the failure reason survives on the refund record.
func refundFailureNote(gatewayResponse map[string]interface{}) string {
	if msg, ok := gatewayResponse["error"].(string); ok && msg != "" {
		return msg
	}
	return "refund rejected by gateway"
}

// settleParent promotes the parent payment to REFUNDED once no refund
// against it is still pending. A partial refund that is the only one on
// record still flips the parent.
func (s *RefundService) settleParent(refund *datamodel.Refund) error {
	tx, err := s.payments.GetByID(refund.PaymentID)
	if err != nil {
		return err
	}
	if tx == nil {
		return nil
	}

	pending, err := s.repo.HasPendingForPayment(tx.ID)
	if err != nil {
		return &PersistenceError{Op: "refund", Gateway: tx.Gateway, TransactionID: tx.ID, Err: err}
	}
	if pending {
		return nil
	}

	if err := s.markParentRefunded(tx, refund); err != nil {
		return err
	}
	return nil
}

func (s *RefundService) markParentRefunded(tx *datamodel.Transaction, refund *datamodel.Refund) error {
	if err := s.payments.markRefunded(tx); err != nil {
		return err
	}

	s.logger.Info("payment fully refunded",
		"transaction_id", tx.ID,
		"refund_id", refund.ID)

	s.eventBus.Publish(context.Background(), events.NewPaymentRefundedEvent(tx, refund))
	return nil
}

// GetByID fetches a refund by ledger id; a miss returns (nil, nil).
func (s *RefundService) GetByID(id string) (*datamodel.Refund, error) {
	if !s.payments.databaseEnabled() {
		return nil, ErrDatabaseDisabled
	}

	refund, err := s.repo.GetByID(id)
	if err != nil {
		return nil, &PersistenceError{Op: "refund", Err: err}
	}
	return refund, nil
}

// GetForPayment lists all refunds filed against one payment.
func (s *RefundService) GetForPayment(paymentID string) ([]*datamodel.Refund, error) {
	if !s.payments.databaseEnabled() {
		return nil, ErrDatabaseDisabled
	}

	refunds, err := s.repo.ListForPayment(paymentID)
	if err != nil {
		return nil, &PersistenceError{Op: "refund", TransactionID: paymentID, Err: err}
	}
	return refunds, nil
}
