package payment_test

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jaaptech/nepalipay/internal/core/datamodel/gateway"
	datamodel "github.com/jaaptech/nepalipay/internal/core/datamodel/payment"
	paymentPkg "github.com/jaaptech/nepalipay/internal/payment"
	"github.com/jaaptech/nepalipay/internal/paymentgateway"
)

// Mock transaction repository honoring the guarded-transition contract
type mockTransactionRepository struct {
	transactions    map[string]*datamodel.Transaction
	createError     error
	getError        error
	transitionError error
}

func newMockTransactionRepository() *mockTransactionRepository {
	return &mockTransactionRepository{
		transactions: make(map[string]*datamodel.Transaction),
	}
}

func (m *mockTransactionRepository) Create(tx *datamodel.Transaction) error {
	if m.createError != nil {
		return m.createError
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Currency == "" {
		tx.Currency = "NPR"
	}
	for _, existing := range m.transactions {
		if existing.MerchantReferenceID == tx.MerchantReferenceID {
			return errUniqueViolation
		}
	}
	stored := *tx
	m.transactions[tx.ID] = &stored
	return nil
}

func (m *mockTransactionRepository) GetByID(id string) (*datamodel.Transaction, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	tx, ok := m.transactions[id]
	if !ok {
		return nil, nil
	}
	copied := *tx
	return &copied, nil
}

func (m *mockTransactionRepository) GetByReference(referenceID string) (*datamodel.Transaction, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	for _, tx := range m.transactions {
		if tx.MerchantReferenceID == referenceID {
			copied := *tx
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockTransactionRepository) GetByGatewayTransactionID(gatewayTxID string) (*datamodel.Transaction, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	for _, tx := range m.transactions {
		if tx.GatewayTransactionID != nil && *tx.GatewayTransactionID == gatewayTxID {
			copied := *tx
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockTransactionRepository) TransitionStatus(id string, from []datamodel.Status, to datamodel.Status, updates map[string]interface{}) error {
	if m.transitionError != nil {
		return m.transitionError
	}
	tx, ok := m.transactions[id]
	if !ok {
		return paymentPkg.ErrTransitionConflict
	}
	matched := false
	for _, s := range from {
		if tx.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return paymentPkg.ErrTransitionConflict
	}
	tx.Status = to
	applyTransactionUpdates(tx, updates)
	return nil
}

func applyTransactionUpdates(tx *datamodel.Transaction, updates map[string]interface{}) {
	for column, value := range updates {
		switch column {
		case "verified_at":
			t := value.(time.Time)
			tx.VerifiedAt = &t
		case "completed_at":
			t := value.(time.Time)
			tx.CompletedAt = &t
		case "failed_at":
			t := value.(time.Time)
			tx.FailedAt = &t
		case "refunded_at":
			t := value.(time.Time)
			tx.RefundedAt = &t
		case "gateway_response":
			tx.GatewayResponse = value.(json.RawMessage)
		case "gateway_transaction_id":
			id := value.(string)
			tx.GatewayTransactionID = &id
		}
	}
}

func (m *mockTransactionRepository) ListByStatus(statuses ...datamodel.Status) ([]*datamodel.Transaction, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	var out []*datamodel.Transaction
	for _, tx := range m.transactions {
		for _, s := range statuses {
			if tx.Status == s {
				copied := *tx
				out = append(out, &copied)
				break
			}
		}
	}
	return out, nil
}

func (m *mockTransactionRepository) ListByGateway(g gateway.Gateway) ([]*datamodel.Transaction, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	var out []*datamodel.Transaction
	for _, tx := range m.transactions {
		if tx.Gateway == g {
			copied := *tx
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockTransactionRepository) ListForPayable(payableType, payableID string) ([]*datamodel.Transaction, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	var out []*datamodel.Transaction
	for _, tx := range m.transactions {
		if tx.PayableType != nil && *tx.PayableType == payableType &&
			tx.PayableID != nil && *tx.PayableID == payableID {
			copied := *tx
			out = append(out, &copied)
		}
	}
	return out, nil
}

// Mock refund repository with the same transition semantics
type mockRefundRepository struct {
	refunds     map[string]*datamodel.Refund
	createError error
	getError    error
}

func newMockRefundRepository() *mockRefundRepository {
	return &mockRefundRepository{
		refunds: make(map[string]*datamodel.Refund),
	}
}

func (m *mockRefundRepository) Create(refund *datamodel.Refund) error {
	if m.createError != nil {
		return m.createError
	}
	if refund.ID == "" {
		refund.ID = uuid.NewString()
	}
	stored := *refund
	m.refunds[refund.ID] = &stored
	return nil
}

func (m *mockRefundRepository) GetByID(id string) (*datamodel.Refund, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	refund, ok := m.refunds[id]
	if !ok {
		return nil, nil
	}
	copied := *refund
	return &copied, nil
}

func (m *mockRefundRepository) ListForPayment(paymentID string) ([]*datamodel.Refund, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	var out []*datamodel.Refund
	for _, r := range m.refunds {
		if r.PaymentID == paymentID {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockRefundRepository) TransitionStatus(id string, from []datamodel.RefundStatus, to datamodel.RefundStatus, updates map[string]interface{}) error {
	refund, ok := m.refunds[id]
	if !ok {
		return paymentPkg.ErrTransitionConflict
	}
	matched := false
	for _, s := range from {
		if refund.RefundStatus == s {
			matched = true
			break
		}
	}
	if !matched {
		return paymentPkg.ErrTransitionConflict
	}
	refund.RefundStatus = to
	for column, value := range updates {
		switch column {
		case "processed_at":
			t := value.(time.Time)
			refund.ProcessedAt = &t
		case "gateway_refund_id":
			gid := value.(string)
			refund.GatewayRefundID = &gid
		case "gateway_response":
			refund.GatewayResponse = value.(json.RawMessage)
		case "notes":
			refund.Notes = value.(string)
		}
	}
	return nil
}

func (m *mockRefundRepository) CompletedAmountForPayment(paymentID string) (float64, error) {
	if m.getError != nil {
		return 0, m.getError
	}
	var total float64
	for _, r := range m.refunds {
		if r.PaymentID == paymentID && r.RefundStatus == datamodel.RefundStatusCompleted {
			total += r.RefundAmount
		}
	}
	return total, nil
}

func (m *mockRefundRepository) HasPendingForPayment(paymentID string) (bool, error) {
	if m.getError != nil {
		return false, m.getError
	}
	for _, r := range m.refunds {
		if r.PaymentID == paymentID && r.IsPending() {
			return true, nil
		}
	}
	return false, nil
}

// Mock gateway client for interceptor tests
type mockGatewayClient struct {
	name            gateway.Gateway
	paymentResponse *paymentgateway.Response
	verifyResponse  *paymentgateway.Response
	paymentError    error
	verifyError     error
	lastPaymentData map[string]interface{}
	lastVerifyData  map[string]interface{}
}

func (m *mockGatewayClient) Name() gateway.Gateway {
	return m.name
}

func (m *mockGatewayClient) Payment(_ context.Context, data map[string]interface{}) (*paymentgateway.Response, error) {
	m.lastPaymentData = data
	if m.paymentError != nil {
		return nil, m.paymentError
	}
	return m.paymentResponse, nil
}

func (m *mockGatewayClient) Verify(_ context.Context, data map[string]interface{}) (*paymentgateway.Response, error) {
	m.lastVerifyData = data
	if m.verifyError != nil {
		return nil, m.verifyError
	}
	return m.verifyResponse, nil
}
