package payment

import (
	"context"
	"log/slog"

	"github.com/jaaptech/nepalipay/internal/core/datamodel/gateway"
	"github.com/jaaptech/nepalipay/internal/paymentgateway"
)

// InterceptedClient wraps a raw gateway client with ledger bookkeeping. It
// satisfies paymentgateway.Client, so callers use it exactly like the
// underlying client; every Payment and Verify call is recorded against the
// persistent ledger on the way through.
type InterceptedClient struct {
	raw      paymentgateway.Client
	strategy Strategy
	ledger   *PaymentService
	logger   *slog.Logger
}

func NewInterceptedClient(raw paymentgateway.Client, strategy Strategy, ledger *PaymentService, logger *slog.Logger) *InterceptedClient {
	return &InterceptedClient{
		raw:      raw,
		strategy: strategy,
		ledger:   ledger,
		logger: logger.With(
			"component", "payment_interceptor",
			"gateway", raw.Name().String()),
	}
}

func (c *InterceptedClient) Name() gateway.Gateway {
	return c.raw.Name()
}

// Payment enriches the payload through the gateway strategy, forwards it to
// the raw client, and records the attempt as a PENDING ledger entry. The
// gateway call happens first; a payment the gateway rejected is never
// recorded. A ledger write failure after a successful gateway call is a
// hard error: the caller must not treat an unrecorded payment as tracked.
func (c *InterceptedClient) Payment(ctx context.Context, data map[string]interface{}) (*paymentgateway.Response, error) {
	payload := c.strategy.BuildPaymentData(data)

	resp, err := c.raw.Payment(ctx, payload)
	if err != nil {
		return nil, err
	}

	tx, err := c.ledger.CreatePayment(CreatePaymentParams{
		Gateway:  c.raw.Name(),
		Amount:   amountFromPayload(payload),
		Payload:  payload,
		Response: resp.ToMap(),
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("payment recorded",
		"transaction_id", tx.ID,
		"reference_id", tx.MerchantReferenceID)

	return resp, nil
}

// Verify forwards the verification call and folds the outcome back into the
// ledger. A response that carries no recognizable reference, or references
// a payment the ledger never saw, is logged and passed through untouched;
// gateways verify payments this process did not initiate.
func (c *InterceptedClient) Verify(ctx context.Context, data map[string]interface{}) (*paymentgateway.Response, error) {
	resp, err := c.raw.Verify(ctx, data)
	if err != nil {
		return nil, err
	}

	referenceID, ok := c.strategy.ExtractReferenceID(resp.ToMap())
	if !ok {
		referenceID, ok = c.strategy.ExtractReferenceID(data)
	}
	if !ok {
		c.logger.Warn("verification response carries no reference id, skipping ledger update")
		return resp, nil
	}

	tx, err := c.ledger.FindByReference(referenceID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		c.logger.Warn("verified payment not found in ledger",
			"reference_id", referenceID)
		return resp, nil
	}

	if err := c.ledger.RecordVerification(tx, resp.ToMap(), resp.IsSuccess()); err != nil {
		return nil, err
	}

	c.logger.Info("verification recorded",
		"transaction_id", tx.ID,
		"reference_id", referenceID,
		"success", resp.IsSuccess())

	return resp, nil
}
