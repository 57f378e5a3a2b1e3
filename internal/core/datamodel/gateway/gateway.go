package gateway

import (
	"fmt"
	"strings"
)

// Gateway identifies one of the supported Nepali payment gateways.
type Gateway string

const (
	Esewa      Gateway = "esewa"
	Khalti     Gateway = "khalti"
	ConnectIPS Gateway = "connectips"
)

// Supported returns all supported gateways in a stable order.
func Supported() []Gateway {
	return []Gateway{Esewa, Khalti, ConnectIPS}
}

// Parse converts an external string (HTTP param, stored value) into a Gateway.
func Parse(s string) (Gateway, error) {
	switch Gateway(strings.ToLower(strings.TrimSpace(s))) {
	case Esewa:
		return Esewa, nil
	case Khalti:
		return Khalti, nil
	case ConnectIPS:
		return ConnectIPS, nil
	default:
		return "", fmt.Errorf("unsupported gateway: %q (supported: %s)", s, SupportedList())
	}
}

// SupportedList returns a comma-separated list for error messages.
func SupportedList() string {
	names := make([]string, 0, 3)
	for _, g := range Supported() {
		names = append(names, string(g))
	}
	return strings.Join(names, ", ")
}

func (g Gateway) String() string {
	return string(g)
}

// Label returns a human-readable name for display.
func (g Gateway) Label() string {
	switch g {
	case Esewa:
		return "eSewa"
	case Khalti:
		return "Khalti"
	case ConnectIPS:
		return "ConnectIPS"
	default:
		return string(g)
	}
}
