package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jaaptech/nepalipay/internal/core/datamodel/gateway"
)

// Client is the contract every raw gateway client satisfies. Payment starts
// a payment at the gateway; Verify checks the outcome of a callback. The
// interceptor implements the same interface, so callers never need to know
// whether ledger bookkeeping is attached.
type Client interface {
	Name() gateway.Gateway
	Payment(ctx context.Context, data map[string]interface{}) (*Response, error)
	Verify(ctx context.Context, data map[string]interface{}) (*Response, error)
}

// Response is a gateway reply: a success flag plus whatever fields the
// gateway returned, kept opaque for the ledger's audit columns.
type Response struct {
	success bool
	fields  map[string]interface{}
}

func NewResponse(success bool, fields map[string]interface{}) *Response {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	return &Response{success: success, fields: fields}
}

func (r *Response) IsSuccess() bool {
	return r.success
}

// ToMap returns the raw gateway fields. Callers must treat the map as
// read-only; it is shared with the ledger's stored response.
func (r *Response) ToMap() map[string]interface{} {
	return r.fields
}

// Field returns a string-valued field, or "" when absent or non-string.
func (r *Response) Field(key string) string {
	if v, ok := r.fields[key].(string); ok {
		return v
	}
	return ""
}

const defaultTimeout = 30 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

// postJSON sends a JSON body and decodes the JSON reply into a map. The
// returned status code lets callers treat gateway-level rejections (4xx)
// as unsuccessful responses rather than transport errors.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body interface{}) (int, map[string]interface{}, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	return decodeJSONBody(resp)
}

func getJSON(ctx context.Context, client *http.Client, url string, headers map[string]string) (int, map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	return decodeJSONBody(resp)
}

func decodeJSONBody(resp *http.Response) (int, map[string]interface{}, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}

	fields := map[string]interface{}{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil {
			// Non-JSON gateway replies are kept verbatim for the audit trail.
			fields = map[string]interface{}{"raw": string(raw)}
		}
	}
	fields["http_status"] = resp.StatusCode

	return resp.StatusCode, fields, nil
}

// stringField reads a string value out of a request/callback data map.
func stringField(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
