package paymentgateway

import (
	"log/slog"
	"sync"

	"github.com/jaaptech/nepalipay/internal"
	"github.com/jaaptech/nepalipay/internal/core/datamodel/gateway"
)

// Registry resolves a gateway identifier to a configured client, creating
// each client at most once per process lifetime. Safe for concurrent use
// across in-flight requests.
type Registry struct {
	cfg    *internal.Config
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[gateway.Gateway]Client
}

func NewRegistry(cfg *internal.Config, logger *slog.Logger) *Registry {
	return &Registry{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[gateway.Gateway]Client),
	}
}

// Make returns the cached client for the gateway, constructing and caching
// one on first use. Unknown gateways fail with UnsupportedGatewayError;
// missing credentials with ConfigurationError naming the field.
func (r *Registry) Make(g gateway.Gateway) (Client, error) {
	r.mu.RLock()
	client, ok := r.clients[g]
	r.mu.RUnlock()
	if ok {
		return client, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another request may have built it while we waited for the lock.
	if client, ok := r.clients[g]; ok {
		return client, nil
	}

	client, err := r.create(g)
	if err != nil {
		return nil, err
	}

	r.clients[g] = client
	r.logger.Info("gateway client created", "gateway", g.String())
	return client, nil
}

func (r *Registry) create(g gateway.Gateway) (Client, error) {
	switch g {
	case gateway.Esewa:
		return r.createEsewa()
	case gateway.Khalti:
		return r.createKhalti()
	case gateway.ConnectIPS:
		return r.createConnectIPS()
	default:
		return nil, &UnsupportedGatewayError{Name: g.String()}
	}
}

func (r *Registry) createEsewa() (Client, error) {
	cfg := r.cfg.Gateways.Esewa
	if err := requireFields(gateway.Esewa, map[string]string{
		"product_code": cfg.ProductCode,
		"secret_key":   cfg.SecretKey,
	}); err != nil {
		return nil, err
	}
	return NewEsewaClient(cfg, r.logger.With("gateway", "esewa")), nil
}

func (r *Registry) createKhalti() (Client, error) {
	cfg := r.cfg.Gateways.Khalti
	if err := requireFields(gateway.Khalti, map[string]string{
		"secret_key": cfg.SecretKey,
	}); err != nil {
		return nil, err
	}
	return NewKhaltiClient(cfg, r.logger.With("gateway", "khalti")), nil
}

func (r *Registry) createConnectIPS() (Client, error) {
	cfg := r.cfg.Gateways.ConnectIPS
	if err := requireFields(gateway.ConnectIPS, map[string]string{
		"merchant_id":      cfg.MerchantID,
		"app_id":           cfg.AppID,
		"app_name":         cfg.AppName,
		"password":         cfg.Password,
		"private_key_path": cfg.PrivateKeyPath,
	}); err != nil {
		return nil, err
	}
	return NewConnectIPSClient(cfg, r.logger.With("gateway", "connectips"))
}

// RequiredFields lists the credential fields each gateway must configure.
// Shared with the checkconfig command.
func RequiredFields(g gateway.Gateway) []string {
	switch g {
	case gateway.Esewa:
		return []string{"product_code", "secret_key"}
	case gateway.Khalti:
		return []string{"secret_key"}
	case gateway.ConnectIPS:
		return []string{"merchant_id", "app_id", "app_name", "password", "private_key_path"}
	}
	return nil
}

func requireFields(g gateway.Gateway, fields map[string]string) error {
	// Deterministic order so the same field is always reported first.
	for _, name := range RequiredFields(g) {
		if fields[name] == "" {
			return &ConfigurationError{Gateway: g, Field: name}
		}
	}
	return nil
}

// IsCached reports whether a client instance exists for the gateway.
func (r *Registry) IsCached(g gateway.Gateway) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[g]
	return ok
}

// Forget evicts one cached client. Calling it for an absent gateway is a
// no-op.
func (r *Registry) Forget(g gateway.Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, g)
}

// Flush evicts all cached clients, for tests and config hot-reload.
func (r *Registry) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients = make(map[gateway.Gateway]Client)
}
