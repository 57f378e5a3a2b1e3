package paymentgateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/jaaptech/nepalipay/internal"
	"github.com/jaaptech/nepalipay/internal/core/datamodel/gateway"
)

const (
	esewaTestBaseURL = "https://rc-epay.esewa.com.np"
	esewaLiveBaseURL = "https://epay.esewa.com.np"
)

// EsewaClient implements eSewa's ePay v2 flow. Payment is a browser
// redirect: we sign the form fields here and hand them back for the host
// application to render; correlation uses transaction_uuid.
type EsewaClient struct {
	cfg    internal.EsewaConfig
	http   *http.Client
	logger *slog.Logger
}

func NewEsewaClient(cfg internal.EsewaConfig, logger *slog.Logger) *EsewaClient {
	return &EsewaClient{
		cfg:    cfg,
		http:   newHTTPClient(),
		logger: logger,
	}
}

func (c *EsewaClient) Name() gateway.Gateway {
	return gateway.Esewa
}

func (c *EsewaClient) baseURL() string {
	if c.cfg.BaseURL != "" {
		return c.cfg.BaseURL
	}
	if c.cfg.Environment == internal.EnvironmentLive {
		return esewaLiveBaseURL
	}
	return esewaTestBaseURL
}

// Payment builds the signed form payload for the ePay v2 form endpoint.
// No network call happens here; the customer-facing redirect carries the
// signature eSewa verifies.
func (c *EsewaClient) Payment(_ context.Context, data map[string]interface{}) (*Response, error) {
	totalAmount := fmt.Sprintf("%v", data["total_amount"])
	transactionUUID := stringField(data, "transaction_uuid")
	if transactionUUID == "" {
		return nil, fmt.Errorf("esewa payment requires transaction_uuid")
	}

	fields := map[string]interface{}{}
	for k, v := range data {
		fields[k] = v
	}
	fields["product_code"] = c.cfg.ProductCode
	fields["signed_field_names"] = "total_amount,transaction_uuid,product_code"
	fields["signature"] = c.sign(fmt.Sprintf(
		"total_amount=%s,transaction_uuid=%s,product_code=%s",
		totalAmount, transactionUUID, c.cfg.ProductCode,
	))
	fields["payment_url"] = c.baseURL() + "/api/epay/main/v2/form"

	return NewResponse(true, fields), nil
}

// Verify checks the transaction status against eSewa's status API.
func (c *EsewaClient) Verify(ctx context.Context, data map[string]interface{}) (*Response, error) {
	q := url.Values{}
	q.Set("product_code", c.cfg.ProductCode)
	q.Set("total_amount", fmt.Sprintf("%v", data["total_amount"]))
	q.Set("transaction_uuid", stringField(data, "transaction_uuid"))

	statusURL := c.baseURL() + "/api/epay/transaction/status/?" + q.Encode()

	status, fields, err := getJSON(ctx, c.http, statusURL, nil)
	if err != nil {
		return nil, err
	}

	success := status == http.StatusOK && stringField(fields, "status") == "COMPLETE"

	return NewResponse(success, fields), nil
}

func (c *EsewaClient) sign(message string) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.SecretKey))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
