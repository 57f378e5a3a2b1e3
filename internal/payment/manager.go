package payment

import (
	"log/slog"

	"github.com/jaaptech/nepalipay/internal"
	"github.com/jaaptech/nepalipay/internal/core/datamodel/gateway"
	datamodel "github.com/jaaptech/nepalipay/internal/core/datamodel/payment"
	"github.com/jaaptech/nepalipay/internal/paymentgateway"
)

// Manager is the single entry point to the payment layer. It hands out
// gateway clients, wrapped with ledger interception when persistence is on,
// and re-exports the ledger operations so callers need only one dependency.
type Manager struct {
	cfg        *internal.Config
	registry   *paymentgateway.Registry
	strategies map[gateway.Gateway]Strategy
	payments   *PaymentService
	refunds    *RefundService
	logger     *slog.Logger
}

func NewManager(cfg *internal.Config, registry *paymentgateway.Registry, payments *PaymentService, refunds *RefundService, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:        cfg,
		registry:   registry,
		strategies: NewStrategies(cfg),
		payments:   payments,
		refunds:    refunds,
		logger:     logger,
	}
}

// Gateway resolves a client by gateway name. With persistence enabled the
// client comes back wrapped in the ledger interceptor; otherwise the raw
// client is returned and nothing is recorded.
func (m *Manager) Gateway(name string) (paymentgateway.Client, error) {
	g, err := gateway.Parse(name)
	if err != nil {
		return nil, &paymentgateway.UnsupportedGatewayError{Name: name}
	}

	raw, err := m.registry.Make(g)
	if err != nil {
		return nil, err
	}

	if !m.cfg.Persistence.Enabled {
		return raw, nil
	}

	return NewInterceptedClient(raw, m.strategies[g], m.payments, m.logger), nil
}

func (m *Manager) Esewa() (paymentgateway.Client, error) {
	return m.Gateway(gateway.Esewa.String())
}

func (m *Manager) Khalti() (paymentgateway.Client, error) {
	return m.Gateway(gateway.Khalti.String())
}

func (m *Manager) ConnectIPS() (paymentgateway.Client, error) {
	return m.Gateway(gateway.ConnectIPS.String())
}

// SupportedGateways lists the gateway identifiers this manager can resolve.
func (m *Manager) SupportedGateways() []gateway.Gateway {
	return gateway.Supported()
}

func (m *Manager) FindPaymentByReference(referenceID string) (*datamodel.Transaction, error) {
	return m.payments.FindByReference(referenceID)
}

func (m *Manager) FindPaymentByTransactionID(gatewayTxID string) (*datamodel.Transaction, error) {
	return m.payments.FindByTransactionID(gatewayTxID)
}

func (m *Manager) GetPayment(id string) (*datamodel.Transaction, error) {
	return m.payments.GetByID(id)
}

func (m *Manager) CompletePayment(tx *datamodel.Transaction) error {
	return m.payments.CompletePayment(tx)
}

func (m *Manager) FailPayment(tx *datamodel.Transaction) error {
	return m.payments.FailPayment(tx)
}

func (m *Manager) CancelPayment(tx *datamodel.Transaction) error {
	return m.payments.CancelPayment(tx)
}

// GetPaymentsByGateway validates the gateway name before querying, so an
// unknown name surfaces as UnsupportedGatewayError rather than an empty
// result set.
func (m *Manager) GetPaymentsByGateway(name string) ([]*datamodel.Transaction, error) {
	g, err := gateway.Parse(name)
	if err != nil {
		return nil, &paymentgateway.UnsupportedGatewayError{Name: name}
	}
	return m.payments.GetByGateway(g)
}

func (m *Manager) GetPaymentsByStatus(status datamodel.Status) ([]*datamodel.Transaction, error) {
	return m.payments.GetByStatus(status)
}

func (m *Manager) GetPendingPayments() ([]*datamodel.Transaction, error) {
	return m.payments.GetPending()
}

func (m *Manager) GetPaymentsForPayable(payableType, payableID string) ([]*datamodel.Transaction, error) {
	return m.payments.GetForPayable(payableType, payableID)
}

func (m *Manager) CreateRefund(tx *datamodel.Transaction, params CreateRefundParams) (*datamodel.Refund, error) {
	return m.refunds.CreateRefund(tx, params)
}

func (m *Manager) ProcessRefund(refund *datamodel.Refund, gatewayRefundID string, gatewayResponse map[string]interface{}, success bool) error {
	return m.refunds.ProcessRefund(refund, gatewayRefundID, gatewayResponse, success)
}

func (m *Manager) GetRefund(id string) (*datamodel.Refund, error) {
	return m.refunds.GetByID(id)
}

func (m *Manager) GetRefundsForPayment(paymentID string) ([]*datamodel.Refund, error) {
	return m.refunds.GetForPayment(paymentID)
}
