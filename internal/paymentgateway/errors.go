package paymentgateway

import (
	"fmt"

	"github.com/jaaptech/nepalipay/internal/core/datamodel/gateway"
)

// UnsupportedGatewayError is returned for a gateway identifier outside the
// supported set. Never retried.
type UnsupportedGatewayError struct {
	Name string
}

func (e *UnsupportedGatewayError) Error() string {
	return fmt.Sprintf("unsupported gateway: %q (supported: %s)", e.Name, gateway.SupportedList())
}

// ConfigurationError names the first missing required credential for a
// gateway. Fatal until configuration is fixed.
type ConfigurationError struct {
	Gateway gateway.Gateway
	Field   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing configuration for gateway %s: %s", e.Gateway, e.Field)
}
