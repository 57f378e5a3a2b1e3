package internal

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment selects which gateway endpoints a client targets.
const (
	EnvironmentTest = "test"
	EnvironmentLive = "live"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Persistence   PersistenceConfig   `mapstructure:"persistence"`
	Gateways      GatewaysConfig      `mapstructure:"gateways"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Source          string        `mapstructure:"source"`
}

// PersistenceConfig toggles the payment ledger. When disabled, gateway calls
// still work but every ledger operation fails fast.
type PersistenceConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type GatewaysConfig struct {
	Esewa      EsewaConfig      `mapstructure:"esewa"`
	Khalti     KhaltiConfig     `mapstructure:"khalti"`
	ConnectIPS ConnectIPSConfig `mapstructure:"connectips"`
}

// BaseURL fields override the environment-derived endpoint. Left empty in
// normal deployments; tests point them at local servers.
type EsewaConfig struct {
	ProductCode string `mapstructure:"product_code"`
	SecretKey   string `mapstructure:"secret_key"`
	SuccessURL  string `mapstructure:"success_url"`
	FailureURL  string `mapstructure:"failure_url"`
	Environment string `mapstructure:"environment"`
	BaseURL     string `mapstructure:"base_url"`
}

type KhaltiConfig struct {
	SecretKey   string `mapstructure:"secret_key"`
	SuccessURL  string `mapstructure:"success_url"`
	WebsiteURL  string `mapstructure:"website_url"`
	Environment string `mapstructure:"environment"`
	BaseURL     string `mapstructure:"base_url"`
}

type ConnectIPSConfig struct {
	MerchantID     string `mapstructure:"merchant_id"`
	AppID          string `mapstructure:"app_id"`
	AppName        string `mapstructure:"app_name"`
	Password       string `mapstructure:"password"`
	PrivateKeyPath string `mapstructure:"private_key_path"`
	ReturnURL      string `mapstructure:"return_url"`
	Environment    string `mapstructure:"environment"`
	BaseURL        string `mapstructure:"base_url"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ----------------- ENV LOADING -----------------

// LoadConfigFromEnv builds the configuration entirely from environment
// variables, for container deployments without a config file.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:           getEnv("SERVER_BASE_URL", "http://localhost:8080"),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: 30 * time.Minute,
			Source:          getEnv("DATABASE_URL", ""),
		},
		Persistence: PersistenceConfig{
			Enabled: getEnvAsBool("PAYMENT_PERSISTENCE_ENABLED", false),
		},
		Gateways: GatewaysConfig{
			Esewa: EsewaConfig{
				ProductCode: getEnv("ESEWA_PRODUCT_CODE", ""),
				SecretKey:   getEnv("ESEWA_SECRET_KEY", ""),
				SuccessURL:  getEnv("ESEWA_SUCCESS_URL", ""),
				FailureURL:  getEnv("ESEWA_FAILURE_URL", ""),
				Environment: strings.ToLower(getEnv("ESEWA_ENVIRONMENT", EnvironmentTest)),
			},
			Khalti: KhaltiConfig{
				SecretKey:   getEnv("KHALTI_SECRET_KEY", ""),
				SuccessURL:  getEnv("KHALTI_SUCCESS_URL", ""),
				WebsiteURL:  getEnv("KHALTI_WEBSITE_URL", ""),
				Environment: strings.ToLower(getEnv("KHALTI_ENVIRONMENT", EnvironmentTest)),
			},
			ConnectIPS: ConnectIPSConfig{
				MerchantID:     getEnv("CONNECTIPS_MERCHANT_ID", ""),
				AppID:          getEnv("CONNECTIPS_APP_ID", ""),
				AppName:        getEnv("CONNECTIPS_APP_NAME", ""),
				Password:       getEnv("CONNECTIPS_PASSWORD", ""),
				PrivateKeyPath: getEnv("CONNECTIPS_PRIVATE_KEY_PATH", ""),
				ReturnURL:      getEnv("CONNECTIPS_RETURN_URL", ""),
				Environment:    strings.ToLower(getEnv("CONNECTIPS_ENVIRONMENT", EnvironmentTest)),
			},
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if c.Persistence.Enabled {
		if err := c.Database.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("database config: %v", err))
		}
	}

	if err := c.Gateways.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("gateway config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required when persistence is enabled")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

// Validate only checks environment values here. Per-gateway credential
// checks happen lazily at first use of each gateway, so a deployment that
// only uses Khalti does not need eSewa credentials.
func (c *GatewaysConfig) Validate() error {
	for name, env := range map[string]string{
		"esewa":      c.Esewa.Environment,
		"khalti":     c.Khalti.Environment,
		"connectips": c.ConnectIPS.Environment,
	} {
		if env != "" && env != EnvironmentTest && env != EnvironmentLive {
			return fmt.Errorf("%s environment must be %q or %q, got %q", name, EnvironmentTest, EnvironmentLive, env)
		}
	}
	return nil
}
