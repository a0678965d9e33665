// Package config loads signgate configuration from a YAML file, SIGNGATE_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SIGNGATE"

// Stake sources.
const (
	SourceRPC      = "rpc"
	SourceSubgraph = "subgraph"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete service configuration.
type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	CORS     CORSConfig     `mapstructure:"cors" yaml:"cors"`
	Campaign CampaignConfig `mapstructure:"campaign" yaml:"campaign"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Address           string        `mapstructure:"address" yaml:"address"`
	ReadTimeout       time.Duration `mapstructure:"readTimeout" yaml:"readTimeout"`
	ReadHeaderTimeout time.Duration `mapstructure:"readHeaderTimeout" yaml:"readHeaderTimeout"`
	WriteTimeout      time.Duration `mapstructure:"writeTimeout" yaml:"writeTimeout"`
	IdleTimeout       time.Duration `mapstructure:"idleTimeout" yaml:"idleTimeout"`
	RequestTimeout    time.Duration `mapstructure:"requestTimeout" yaml:"requestTimeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdownTimeout" yaml:"shutdownTimeout"`
	MaxHeaderBytes    int           `mapstructure:"maxHeaderBytes" yaml:"maxHeaderBytes"`
	MaxConnections    int           `mapstructure:"maxConnections" yaml:"maxConnections"` // 0 = unlimited
}

// AuthConfig configures request signature verification.
type AuthConfig struct {
	// PublicKey is the base64 DER SubjectPublicKeyInfo of the RSA key
	// clients sign with.
	PublicKey       string `mapstructure:"publicKey" yaml:"publicKey"`
	SignatureHeader string `mapstructure:"signatureHeader" yaml:"signatureHeader"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Encoding   string `mapstructure:"encoding" yaml:"encoding"`
	OutputPath string `mapstructure:"outputPath" yaml:"outputPath"` // stdout, stderr or a file

	// Rotation, only used when OutputPath is a file.
	MaxSizeMB  int  `mapstructure:"maxSizeMB" yaml:"maxSizeMB"`
	MaxBackups int  `mapstructure:"maxBackups" yaml:"maxBackups"`
	MaxAgeDays int  `mapstructure:"maxAgeDays" yaml:"maxAgeDays"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Address string `mapstructure:"address" yaml:"address"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// CORSConfig lists origins allowed to call the API from a browser.
type CORSConfig struct {
	Origins []string `mapstructure:"origins" yaml:"origins"`
}

// CampaignConfig configures task completion checks.
type CampaignConfig struct {
	// MinStake is the minimum stake, in wei, for the stake task.
	MinStake string         `mapstructure:"minStake" yaml:"minStake"`
	Source   string         `mapstructure:"source" yaml:"source"`
	RPC      RPCConfig      `mapstructure:"rpc" yaml:"rpc"`
	Subgraph SubgraphConfig `mapstructure:"subgraph" yaml:"subgraph"`
}

// RPCConfig configures the staking contract backend.
type RPCConfig struct {
	URL             string        `mapstructure:"url" yaml:"url"`
	ContractAddress string        `mapstructure:"contractAddress" yaml:"contractAddress"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SubgraphConfig configures the indexed subgraph database backend.
type SubgraphConfig struct {
	Driver       string `mapstructure:"driver" yaml:"driver"` // postgres or sqlite
	DSN          string `mapstructure:"dsn" yaml:"dsn"`
	Table        string `mapstructure:"table" yaml:"table"`
	MaxOpenConns int    `mapstructure:"maxOpenConns" yaml:"maxOpenConns"`
}

// MinStakeWei returns MinStake parsed as an integer. Validate guarantees it
// parses.
func (c *CampaignConfig) MinStakeWei() *big.Int {
	v, ok := new(big.Int).SetString(c.MinStake, 10)
	if !ok {
		return new(big.Int)
	}

	return v
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"address":          "http.address",
	"public-key":       "auth.publicKey",
	"log-level":        "log.level",
	"log-encoding":     "log.encoding",
	"metrics-address":  "metrics.address",
	"stake-source":     "campaign.source",
	"rpc-url":          "campaign.rpc.url",
	"contract-address": "campaign.rpc.contractAddress",
	"subgraph-dsn":     "campaign.subgraph.dsn",
}

// RegisterFlags adds the overridable settings to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("address", "", "API listen address")
	fs.String("public-key", "", "base64 DER RSA public key used to verify signatures")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("log-encoding", "", "log encoding (json, console)")
	fs.String("metrics-address", "", "metrics listen address")
	fs.String("stake-source", "", "stake source (rpc, subgraph)")
	fs.String("rpc-url", "", "EVM JSON-RPC endpoint")
	fs.String("contract-address", "", "staking contract address")
	fs.String("subgraph-dsn", "", "subgraph database DSN")
}

// Load reads configuration. configPath may be empty, in which case only
// defaults, environment and flags apply. flags may be nil; only flags that
// were set on the command line override other sources.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Name used by existing deployments.
	if err := v.BindEnv("auth.publicKey", EnvPrefix+"_AUTH_PUBLICKEY", "RSA_PUBLIC_KEY_BASE64"); err != nil {
		return nil, fmt.Errorf("failed to bind env: %w", err)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}

			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.address", ":8080")
	v.SetDefault("http.readTimeout", 15*time.Second)
	v.SetDefault("http.readHeaderTimeout", 5*time.Second)
	v.SetDefault("http.writeTimeout", 30*time.Second)
	v.SetDefault("http.idleTimeout", 120*time.Second)
	v.SetDefault("http.requestTimeout", 20*time.Second)
	v.SetDefault("http.shutdownTimeout", 15*time.Second)
	v.SetDefault("http.maxHeaderBytes", 1<<20)
	v.SetDefault("http.maxConnections", 0)

	v.SetDefault("auth.publicKey", "")
	v.SetDefault("auth.signatureHeader", "signature")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.outputPath", "stdout")
	v.SetDefault("log.maxSizeMB", 100)
	v.SetDefault("log.maxBackups", 5)
	v.SetDefault("log.maxAgeDays", 30)
	v.SetDefault("log.compress", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.address", ":2112")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("cors.origins", []string{})

	v.SetDefault("campaign.minStake", "1000000000000000000")
	v.SetDefault("campaign.source", SourceRPC)
	v.SetDefault("campaign.rpc.url", "https://andromeda.metis.io/?owner=1088")
	v.SetDefault("campaign.rpc.contractAddress", "")
	v.SetDefault("campaign.rpc.timeout", 10*time.Second)
	v.SetDefault("campaign.subgraph.driver", "postgres")
	v.SetDefault("campaign.subgraph.dsn", "")
	v.SetDefault("campaign.subgraph.table", "sgd1.participant")
	v.SetDefault("campaign.subgraph.maxOpenConns", 10)
}

// Validate checks the configuration for values the service cannot run with.
// The public key is checked separately when the server starts.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return fmt.Errorf("%w: http.address is required", ErrInvalidConfig)
	}

	timeouts := map[string]time.Duration{
		"http.readTimeout":       c.HTTP.ReadTimeout,
		"http.readHeaderTimeout": c.HTTP.ReadHeaderTimeout,
		"http.writeTimeout":      c.HTTP.WriteTimeout,
		"http.idleTimeout":       c.HTTP.IdleTimeout,
		"http.requestTimeout":    c.HTTP.RequestTimeout,
		"http.shutdownTimeout":   c.HTTP.ShutdownTimeout,
	}
	for key, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, key)
		}
	}

	if c.HTTP.MaxConnections < 0 {
		return fmt.Errorf("%w: http.maxConnections must not be negative", ErrInvalidConfig)
	}

	if c.Auth.SignatureHeader == "" {
		return fmt.Errorf("%w: auth.signatureHeader is required", ErrInvalidConfig)
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		return fmt.Errorf("%w: unknown log.level %q", ErrInvalidConfig, c.Log.Level)
	}

	if !slices.Contains([]string{"json", "console"}, c.Log.Encoding) {
		return fmt.Errorf("%w: unknown log.encoding %q", ErrInvalidConfig, c.Log.Encoding)
	}

	if c.Metrics.Enabled {
		if c.Metrics.Address == "" {
			return fmt.Errorf("%w: metrics.address is required when metrics are enabled", ErrInvalidConfig)
		}

		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return fmt.Errorf("%w: metrics.path must start with /", ErrInvalidConfig)
		}
	}

	return c.Campaign.validate()
}

func (c *CampaignConfig) validate() error {
	minStake, ok := new(big.Int).SetString(c.MinStake, 10)
	if !ok || minStake.Sign() < 0 {
		return fmt.Errorf("%w: campaign.minStake must be a non-negative integer", ErrInvalidConfig)
	}

	switch c.Source {
	case SourceRPC:
		if c.RPC.URL == "" {
			return fmt.Errorf("%w: campaign.rpc.url is required", ErrInvalidConfig)
		}

		if !common.IsHexAddress(c.RPC.ContractAddress) {
			return fmt.Errorf("%w: campaign.rpc.contractAddress must be a hex address", ErrInvalidConfig)
		}

		if c.RPC.Timeout <= 0 {
			return fmt.Errorf("%w: campaign.rpc.timeout must be positive", ErrInvalidConfig)
		}
	case SourceSubgraph:
		if c.Subgraph.Driver != "postgres" && c.Subgraph.Driver != "sqlite" {
			return fmt.Errorf("%w: unknown campaign.subgraph.driver %q", ErrInvalidConfig, c.Subgraph.Driver)
		}

		if c.Subgraph.DSN == "" {
			return fmt.Errorf("%w: campaign.subgraph.dsn is required", ErrInvalidConfig)
		}

		if c.Subgraph.Table == "" {
			return fmt.Errorf("%w: campaign.subgraph.table is required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown campaign.source %q", ErrInvalidConfig, c.Source)
	}

	return nil
}

// WriteYAML writes the configuration as YAML with the subgraph DSN masked.
func (c *Config) WriteYAML(w io.Writer) error {
	out := *c
	if out.Campaign.Subgraph.DSN != "" {
		out.Campaign.Subgraph.DSN = "********"
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return enc.Close()
}
