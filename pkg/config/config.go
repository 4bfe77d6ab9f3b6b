package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig           `yaml:"server"`
	Database   DatabaseConfig         `yaml:"database"`
	Chains     map[string]ChainConfig `yaml:"chains" validate:"dive"`
	Routes     []RouteConfig          `yaml:"routes" validate:"dive"`
	Relayer    RelayerConfig          `yaml:"relayer"`
	Devnet     DevnetConfig           `yaml:"devnet"`
	Monitoring MonitoringConfig       `yaml:"monitoring"`
	Logging    LoggingConfig          `yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"30s"`
}

// DatabaseConfig contains database connection settings. The database only
// holds the scan cursor and the transfer audit trail, so it is optional.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host" default:"localhost" validate:"required_if=Enabled true"`
	Port     int    `yaml:"port" default:"5432"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database" default:"bridge_relayer"`
	SSLMode  string `yaml:"ssl_mode" default:"disable" validate:"oneof=disable require verify-ca verify-full"`
}

// ChainConfig describes one EVM ledger the relayer reads from or writes to.
type ChainConfig struct {
	RPCURL             string `yaml:"rpc_url" validate:"required"`
	ChainID            int64  `yaml:"chain_id"`
	BridgeContract     string `yaml:"bridge_contract" validate:"required"`
	RelayerPrivateKey  string `yaml:"relayer_private_key"`
	GasLimit           uint64 `yaml:"gas_limit" default:"300000"`
	MaxGasPrice        string `yaml:"max_gas_price"`
	ConfirmationBlocks uint64 `yaml:"confirmation_blocks"`
	StartBlock         uint64 `yaml:"start_block"`
	MaxBlockRange      uint64 `yaml:"max_block_range" default:"1000" validate:"min=1"`
	TokenDecimals      int32  `yaml:"token_decimals" default:"18"`
}

// RouteConfig is one relay direction: OUT records on Source are completed as
// inbound transfers on Destination.
type RouteConfig struct {
	Name        string `yaml:"name"`
	Source      string `yaml:"source" validate:"required"`
	Destination string `yaml:"destination" validate:"required,nefield=Source"`
}

// RelayerConfig contains the scheduling and confirmation policy shared by all
// routes.
type RelayerConfig struct {
	ScanInterval        time.Duration `yaml:"scan_interval" default:"60s" validate:"gt=0"`
	CallDelay           time.Duration `yaml:"call_delay" default:"500ms"`
	ReceiptPollInterval time.Duration `yaml:"receipt_poll_interval" default:"20s" validate:"gt=0"`
	ReceiptMaxAttempts  int           `yaml:"receipt_max_attempts" default:"30" validate:"min=1"`
	ReconcileInterval   time.Duration `yaml:"reconcile_interval" default:"5m" validate:"gt=0"`
	Retry               RetryConfig   `yaml:"retry"`
}

// RetryConfig bounds the exponential backoff applied to transient failures.
type RetryConfig struct {
	InitialInterval time.Duration `yaml:"initial_interval" default:"1s"`
	MaxInterval     time.Duration `yaml:"max_interval" default:"30s"`
	MaxElapsedTime  time.Duration `yaml:"max_elapsed_time" default:"5m"`
	MaxRetries      uint64        `yaml:"max_retries" default:"5"`
}

// DevnetConfig contains settings for the in-process two-ledger network.
type DevnetConfig struct {
	ChainAID      uint64        `yaml:"chain_a_id" default:"1"`
	ChainBID      uint64        `yaml:"chain_b_id" default:"2"`
	AdminKey      string        `yaml:"admin_private_key"`
	OperatorKey   string        `yaml:"operator_private_key"`
	InitialSupply string        `yaml:"initial_supply" default:"1000000"`
	ScanInterval  time.Duration `yaml:"scan_interval" default:"2s"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" default:"info"`
	Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
	OutputPath string `yaml:"output_path" default:"stdout"`
}

// Load reads the YAML file at configPath, expands ${VAR} references from the
// environment, applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(raw)
}

// Parse builds a Config from YAML content.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.setDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns a configuration holding only default values.
func Default() *Config {
	cfg := &Config{}
	_ = cfg.setDefaults()
	return cfg
}

func (c *Config) setDefaults() error {
	if err := defaults.Set(c); err != nil {
		return err
	}
	// defaults does not reach into map values
	for name, chain := range c.Chains {
		if err := defaults.Set(&chain); err != nil {
			return fmt.Errorf("chain %s: %w", name, err)
		}
		c.Chains[name] = chain
	}
	for i := range c.Routes {
		if c.Routes[i].Name == "" {
			c.Routes[i].Name = c.Routes[i].Source + "-to-" + c.Routes[i].Destination
		}
	}
	return nil
}

func validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(cfg.Routes))
	for _, route := range cfg.Routes {
		if _, ok := cfg.Chains[route.Source]; !ok {
			return fmt.Errorf("route %s: unknown source chain %q", route.Name, route.Source)
		}
		if _, ok := cfg.Chains[route.Destination]; !ok {
			return fmt.Errorf("route %s: unknown destination chain %q", route.Name, route.Destination)
		}
		if _, dup := seen[route.Name]; dup {
			return fmt.Errorf("duplicate route name %q", route.Name)
		}
		seen[route.Name] = struct{}{}
	}
	return nil
}

// ErrNoRoutes is returned by ValidateRelayer when no relay direction is set.
var ErrNoRoutes = errors.New("at least one route is required")

// ValidateRelayer checks the settings only the standalone relayer needs.
func (c *Config) ValidateRelayer() error {
	if len(c.Routes) == 0 {
		return ErrNoRoutes
	}
	for _, route := range c.Routes {
		dst := c.Chains[route.Destination]
		if dst.RelayerPrivateKey == "" {
			return fmt.Errorf("chain %s: relayer_private_key is required to submit transfers", route.Destination)
		}
	}
	return nil
}

// Route returns the chain configs of a route.
func (c *Config) Route(route RouteConfig) (src, dst ChainConfig) {
	return c.Chains[route.Source], c.Chains[route.Destination]
}
