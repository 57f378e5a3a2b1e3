package payment

import (
	"github.com/jaaptech/nepalipay/internal"
	"github.com/jaaptech/nepalipay/internal/core/datamodel/gateway"
)

// Strategy isolates the gateway-specific parts of interception: shaping the
// outgoing payment payload and pulling the gateway's correlation id out of
// inbound verification data.
type Strategy interface {
	// BuildPaymentData merges gateway defaults (callback URLs from
	// configuration) under the caller-supplied payload. Caller values win.
	BuildPaymentData(data map[string]interface{}) map[string]interface{}

	// ExtractReferenceID pulls the gateway correlation key out of callback
	// data. The second return is false when the key is absent; callers must
	// treat that as loggable, not fatal.
	ExtractReferenceID(data map[string]interface{}) (string, bool)
}

// NewStrategies builds the per-gateway strategy table once at startup.
func NewStrategies(cfg *internal.Config) map[gateway.Gateway]Strategy {
	return map[gateway.Gateway]Strategy{
		gateway.Esewa:      &esewaStrategy{cfg: cfg.Gateways.Esewa},
		gateway.Khalti:     &khaltiStrategy{cfg: cfg.Gateways.Khalti},
		gateway.ConnectIPS: &connectIPSStrategy{cfg: cfg.Gateways.ConnectIPS},
	}
}

func mergeDefaults(data map[string]interface{}, defaults map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(data)+len(defaults))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range data {
		merged[k] = v
	}
	return merged
}

func extractString(data map[string]interface{}, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := data[key].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

type khaltiStrategy struct {
	cfg internal.KhaltiConfig
}

func (s *khaltiStrategy) BuildPaymentData(data map[string]interface{}) map[string]interface{} {
	return mergeDefaults(data, map[string]interface{}{
		"return_url":  s.cfg.SuccessURL,
		"website_url": s.cfg.WebsiteURL,
	})
}

func (s *khaltiStrategy) ExtractReferenceID(data map[string]interface{}) (string, bool) {
	return extractString(data, "pidx")
}

type esewaStrategy struct {
	cfg internal.EsewaConfig
}

func (s *esewaStrategy) BuildPaymentData(data map[string]interface{}) map[string]interface{} {
	return mergeDefaults(data, map[string]interface{}{
		"success_url": s.cfg.SuccessURL,
		"failure_url": s.cfg.FailureURL,
	})
}

func (s *esewaStrategy) ExtractReferenceID(data map[string]interface{}) (string, bool) {
	return extractString(data, "transaction_uuid")
}

type connectIPSStrategy struct {
	cfg internal.ConnectIPSConfig
}

func (s *connectIPSStrategy) BuildPaymentData(data map[string]interface{}) map[string]interface{} {
	return mergeDefaults(data, map[string]interface{}{
		"return_url": s.cfg.ReturnURL,
	})
}

func (s *connectIPSStrategy) ExtractReferenceID(data map[string]interface{}) (string, bool) {
	return extractString(data, "transaction_uuid", "txn_id")
}
