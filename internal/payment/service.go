package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jaaptech/nepalipay/internal"
	"github.com/jaaptech/nepalipay/internal/core/datamodel/gateway"
	datamodel "github.com/jaaptech/nepalipay/internal/core/datamodel/payment"
	"github.com/jaaptech/nepalipay/internal/core/events"
)

// TransactionRepository is the storage contract for the payment ledger.
// TransitionStatus must apply the status change atomically, guarded by the
// expected prior statuses, and return ErrTransitionConflict when no row
// matched.
type TransactionRepository interface {
	Create(tx *datamodel.Transaction) error
	GetByID(id string) (*datamodel.Transaction, error)
	GetByReference(referenceID string) (*datamodel.Transaction, error)
	GetByGatewayTransactionID(gatewayTxID string) (*datamodel.Transaction, error)
	TransitionStatus(id string, from []datamodel.Status, to datamodel.Status, updates map[string]interface{}) error
	ListByStatus(statuses ...datamodel.Status) ([]*datamodel.Transaction, error)
	ListByGateway(g gateway.Gateway) ([]*datamodel.Transaction, error)
	ListForPayable(payableType, payableID string) ([]*datamodel.Transaction, error)
}

// PayableRef is a weak reference to the external business entity a payment
// is attached to. Never dereferenced here; resolution belongs to the host.
type PayableRef struct {
	Type string
	ID   string
}

// PaymentService owns the payment-transaction side of the ledger: creation,
// lifecycle transitions, and lookups. Every operation checks the
// persistence flag and fails fast with ErrDatabaseDisabled when it is off.
type PaymentService struct {
	repo        TransactionRepository
	persistence *internal.PersistenceConfig
	eventBus    *events.EventBus
	logger      *slog.Logger
}

func NewPaymentService(repo TransactionRepository, persistence *internal.PersistenceConfig, eventBus *events.EventBus, logger *slog.Logger) *PaymentService {
	return &PaymentService{
		repo:        repo,
		persistence: persistence,
		eventBus:    eventBus,
		logger:      logger,
	}
}

func (s *PaymentService) databaseEnabled() bool {
	return s.persistence != nil && s.persistence.Enabled
}

// CreatePaymentParams carries everything needed to open a ledger entry.
// ReferenceID is optional; when empty the reference is resolved from the
// gateway response, falling back to a fresh UUID.
type CreatePaymentParams struct {
	Gateway     gateway.Gateway
	Amount      float64
	Currency    string
	ReferenceID string
	Payload     map[string]interface{}
	Response    map[string]interface{}
	Payable     *PayableRef
}

// CreatePayment opens a PENDING ledger entry for a payment attempt and
// publishes payment.initiated.
func (s *PaymentService) CreatePayment(params CreatePaymentParams) (*datamodel.Transaction, error) {
	if !s.databaseEnabled() {
		return nil, ErrDatabaseDisabled
	}
	if params.Amount <= 0 {
		return nil, internal.NewValidationError("payment amount must be positive", internal.ErrCodeInvalidAmount)
	}

	payloadJSON, err := marshalOpaque(params.Payload)
	if err != nil {
		return nil, &PersistenceError{Op: "create", Gateway: params.Gateway, Err: err}
	}
	responseJSON, err := marshalOpaque(params.Response)
	if err != nil {
		return nil, &PersistenceError{Op: "create", Gateway: params.Gateway, Err: err}
	}

	tx := &datamodel.Transaction{
		Gateway:             params.Gateway,
		Status:              datamodel.StatusPending,
		Amount:              params.Amount,
		Currency:            params.Currency,
		MerchantReferenceID: resolveReferenceID(params.Response, params.ReferenceID),
		GatewayPayload:      payloadJSON,
		GatewayResponse:     responseJSON,
		InitiatedAt:         time.Now().UTC(),
	}
	if params.Payable != nil {
		tx.PayableType = &params.Payable.Type
		tx.PayableID = &params.Payable.ID
	}

	if err := s.repo.Create(tx); err != nil {
		return nil, &PersistenceError{Op: "create", Gateway: params.Gateway, Err: err}
	}

	s.logger.Info("payment transaction created",
		"transaction_id", tx.ID,
		"gateway", tx.Gateway.String(),
		"reference_id", tx.MerchantReferenceID,
		"amount", tx.Amount)

	s.eventBus.Publish(context.Background(), events.NewPaymentInitiatedEvent(tx))

	return tx, nil
}

// resolveReferenceID picks the merchant reference in priority order: the
// gateway's own correlation key in the response, then the caller-supplied
// reference, then a fresh UUID.
func resolveReferenceID(response map[string]interface{}, callerRef string) string {
	for _, key := range []string{"pidx", "transaction_uuid", "txn_id"} {
		if v, ok := response[key].(string); ok && v != "" {
			return v
		}
	}
	if callerRef != "" {
		return callerRef
	}
	return uuid.NewString()
}

// RecordVerification applies the verification outcome: PROCESSING with
// verified_at on success, FAILED with failed_at otherwise. The stored
// gateway response is replaced with the verification data either way.
func (s *PaymentService) RecordVerification(tx *datamodel.Transaction, verificationData map[string]interface{}, success bool) error {
	if !s.databaseEnabled() {
		return ErrDatabaseDisabled
	}

	responseJSON, err := marshalOpaque(verificationData)
	if err != nil {
		return &PersistenceError{Op: "verify", Gateway: tx.Gateway, TransactionID: tx.ID, Err: err}
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{"gateway_response": responseJSON}
	if gwTxID, ok := verificationData["transaction_id"].(string); ok && gwTxID != "" {
		updates["gateway_transaction_id"] = gwTxID
	}

	var target datamodel.Status
	var from []datamodel.Status
	if success {
		target = datamodel.StatusProcessing
		from = []datamodel.Status{datamodel.StatusPending}
		updates["verified_at"] = now
	} else {
		target = datamodel.StatusFailed
		from = []datamodel.Status{datamodel.StatusPending, datamodel.StatusProcessing}
		updates["failed_at"] = now
	}

	if err := s.transition(tx, from, target, updates); err != nil {
		return err
	}

	tx.GatewayResponse = responseJSON
	if success {
		tx.VerifiedAt = &now
		s.eventBus.Publish(context.Background(), events.NewPaymentProcessingEvent(tx))
	} else {
		tx.FailedAt = &now
		s.eventBus.Publish(context.Background(), events.NewPaymentFailedEvent(tx, "verification failed"))
	}

	return nil
}

// CompletePayment moves a verified payment to its COMPLETED terminal state.
func (s *PaymentService) CompletePayment(tx *datamodel.Transaction) error {
	if !s.databaseEnabled() {
		return ErrDatabaseDisabled
	}

	now := time.Now().UTC()
	err := s.transition(tx,
		[]datamodel.Status{datamodel.StatusProcessing},
		datamodel.StatusCompleted,
		map[string]interface{}{"completed_at": now})
	if err != nil {
		return err
	}

	tx.CompletedAt = &now
	s.eventBus.Publish(context.Background(), events.NewPaymentCompletedEvent(tx))
	return nil
}

// FailPayment marks a payment FAILED from any non-terminal state.
func (s *PaymentService) FailPayment(tx *datamodel.Transaction) error {
	if !s.databaseEnabled() {
		return ErrDatabaseDisabled
	}

	now := time.Now().UTC()
	err := s.transition(tx,
		[]datamodel.Status{datamodel.StatusPending, datamodel.StatusProcessing},
		datamodel.StatusFailed,
		map[string]interface{}{"failed_at": now})
	if err != nil {
		return err
	}

	tx.FailedAt = &now
	s.eventBus.Publish(context.Background(), events.NewPaymentFailedEvent(tx, "marked failed"))
	return nil
}

// CancelPayment cancels a payment that was never verified.
func (s *PaymentService) CancelPayment(tx *datamodel.Transaction) error {
	if !s.databaseEnabled() {
		return ErrDatabaseDisabled
	}

	return s.transition(tx,
		[]datamodel.Status{datamodel.StatusPending},
		datamodel.StatusCancelled,
		nil)
}

// markRefunded is the refund-settlement transition, reachable only from
// COMPLETED. Invoked by the refund service once all refunds settle.
func (s *PaymentService) markRefunded(tx *datamodel.Transaction) error {
	now := time.Now().UTC()
	err := s.transition(tx,
		[]datamodel.Status{datamodel.StatusCompleted},
		datamodel.StatusRefunded,
		map[string]interface{}{"refunded_at": now})
	if err != nil {
		return err
	}

	tx.RefundedAt = &now
	return nil
}

// transition runs the guarded status update and maps conflicts to
// InvalidStateTransitionError carrying the status observed after the miss.
func (s *PaymentService) transition(tx *datamodel.Transaction, from []datamodel.Status, to datamodel.Status, updates map[string]interface{}) error {
	if err := s.repo.TransitionStatus(tx.ID, from, to, updates); err != nil {
		if errors.Is(err, ErrTransitionConflict) {
			observed := tx.Status
			if current, lookupErr := s.repo.GetByID(tx.ID); lookupErr == nil && current != nil {
				observed = current.Status
			}
			return &InvalidStateTransitionError{TransactionID: tx.ID, From: observed, To: to}
		}
		return &PersistenceError{Op: "transition", Gateway: tx.Gateway, TransactionID: tx.ID, Err: err}
	}

	tx.Status = to
	return nil
}

// FindByReference looks a transaction up by merchant reference id. A miss
// returns (nil, nil); callbacks routinely reference untracked payments.
func (s *PaymentService) FindByReference(referenceID string) (*datamodel.Transaction, error) {
	if !s.databaseEnabled() {
		return nil, ErrDatabaseDisabled
	}

	tx, err := s.repo.GetByReference(referenceID)
	if err != nil {
		return nil, &PersistenceError{Op: "lookup", Err: err}
	}
	return tx, nil
}

// FindByTransactionID looks a transaction up by the gateway's own
// transaction id.
func (s *PaymentService) FindByTransactionID(gatewayTxID string) (*datamodel.Transaction, error) {
	if !s.databaseEnabled() {
		return nil, ErrDatabaseDisabled
	}

	tx, err := s.repo.GetByGatewayTransactionID(gatewayTxID)
	if err != nil {
		return nil, &PersistenceError{Op: "lookup", Err: err}
	}
	return tx, nil
}

// GetByID fetches a transaction by ledger id; a miss returns (nil, nil).
func (s *PaymentService) GetByID(id string) (*datamodel.Transaction, error) {
	if !s.databaseEnabled() {
		return nil, ErrDatabaseDisabled
	}

	tx, err := s.repo.GetByID(id)
	if err != nil {
		return nil, &PersistenceError{Op: "lookup", TransactionID: id, Err: err}
	}
	return tx, nil
}

// GetByStatus returns all transactions in exactly the given status.
func (s *PaymentService) GetByStatus(status datamodel.Status) ([]*datamodel.Transaction, error) {
	if !s.databaseEnabled() {
		return nil, ErrDatabaseDisabled
	}

	txs, err := s.repo.ListByStatus(status)
	if err != nil {
		return nil, &PersistenceError{Op: "query", Err: err}
	}
	return txs, nil
}

// GetPending returns transactions still in flight: PENDING and PROCESSING
// are both classified pending for query purposes.
func (s *PaymentService) GetPending() ([]*datamodel.Transaction, error) {
	if !s.databaseEnabled() {
		return nil, ErrDatabaseDisabled
	}

	txs, err := s.repo.ListByStatus(datamodel.StatusPending, datamodel.StatusProcessing)
	if err != nil {
		return nil, &PersistenceError{Op: "query", Err: err}
	}
	return txs, nil
}

// GetByGateway returns all transactions attempted through one gateway.
func (s *PaymentService) GetByGateway(g gateway.Gateway) ([]*datamodel.Transaction, error) {
	if !s.databaseEnabled() {
		return nil, ErrDatabaseDisabled
	}

	txs, err := s.repo.ListByGateway(g)
	if err != nil {
		return nil, &PersistenceError{Op: "query", Gateway: g, Err: err}
	}
	return txs, nil
}

// GetForPayable returns all payments attached to one external entity.
func (s *PaymentService) GetForPayable(payableType, payableID string) ([]*datamodel.Transaction, error) {
	if !s.databaseEnabled() {
		return nil, ErrDatabaseDisabled
	}

	txs, err := s.repo.ListForPayable(payableType, payableID)
	if err != nil {
		return nil, &PersistenceError{Op: "query", Err: err}
	}
	return txs, nil
}

func marshalOpaque(data map[string]interface{}) (json.RawMessage, error) {
	if data == nil {
		return nil, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal gateway data: %w", err)
	}
	return raw, nil
}

// amountFromPayload reads the payment amount out of a gateway payload,
// accepting the numeric shapes JSON decoding produces. Khalti amounts are
// in paisa under "amount"; eSewa and ConnectIPS use "total_amount".
func amountFromPayload(data map[string]interface{}) float64 {
	for _, key := range []string{"total_amount", "amount"} {
		switch v := data[key].(type) {
		case float64:
			return v
		case int:
			return float64(v)
		case int64:
			return float64(v)
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f
			}
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
	}
	return 0
}
