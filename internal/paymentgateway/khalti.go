package paymentgateway

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/jaaptech/nepalipay/internal"
	"github.com/jaaptech/nepalipay/internal/core/datamodel/gateway"
)

const (
	khaltiTestBaseURL = "https://dev.khalti.com"
	khaltiLiveBaseURL = "https://khalti.com"
)

// KhaltiClient talks to Khalti's ePayment API (KPG-2). Payments are
// initiated server side; the returned payment_url is where the customer
// completes the payment, correlated afterwards by pidx.
type KhaltiClient struct {
	cfg    internal.KhaltiConfig
	http   *http.Client
	logger *slog.Logger
}

func NewKhaltiClient(cfg internal.KhaltiConfig, logger *slog.Logger) *KhaltiClient {
	return &KhaltiClient{
		cfg:    cfg,
		http:   newHTTPClient(),
		logger: logger,
	}
}

func (c *KhaltiClient) Name() gateway.Gateway {
	return gateway.Khalti
}

func (c *KhaltiClient) baseURL() string {
	if c.cfg.BaseURL != "" {
		return c.cfg.BaseURL
	}
	if c.cfg.Environment == internal.EnvironmentLive {
		return khaltiLiveBaseURL
	}
	return khaltiTestBaseURL
}

func (c *KhaltiClient) authHeaders() map[string]string {
	return map[string]string{"Authorization": "Key " + c.cfg.SecretKey}
}

func (c *KhaltiClient) Payment(ctx context.Context, data map[string]interface{}) (*Response, error) {
	status, fields, err := postJSON(ctx, c.http, c.baseURL()+"/api/v2/epayment/initiate/", c.authHeaders(), data)
	if err != nil {
		return nil, err
	}

	success := status == http.StatusOK && stringField(fields, "pidx") != ""
	if !success {
		c.logger.Warn("khalti payment initiation rejected", "http_status", status)
	}

	return NewResponse(success, fields), nil
}

func (c *KhaltiClient) Verify(ctx context.Context, data map[string]interface{}) (*Response, error) {
	body := map[string]interface{}{"pidx": stringField(data, "pidx")}

	status, fields, err := postJSON(ctx, c.http, c.baseURL()+"/api/v2/epayment/lookup/", c.authHeaders(), body)
	if err != nil {
		return nil, err
	}

	success := status == http.StatusOK && stringField(fields, "status") == "Completed"

	return NewResponse(success, fields), nil
}
