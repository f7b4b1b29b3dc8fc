// Package config loads application configuration from defaults, an optional
// config file, environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	RPC       RPCConfig
	Submitter SubmitterConfig
	Backoff   BackoffConfig
	Wallet    WalletConfig
	API       APIConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Auth      AuthConfig
	Metrics   MetricsConfig
	Log       LogConfig
}

// RPCConfig holds ledger node RPC configuration
type RPCConfig struct {
	// URL is the HTTP endpoint of the ledger node.
	URL string `mapstructure:"url"`
	// RequestTimeout bounds a single RPC round trip.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SubmitterConfig holds submission engine and batch runner configuration
type SubmitterConfig struct {
	// NumTransactions is the number of sample transactions to send.
	NumTransactions int `mapstructure:"num_transactions"`
	// MaxRetries is the retry budget per transaction, not counting the first attempt.
	MaxRetries int `mapstructure:"max_retries"`
	// ConfirmationTimeout bounds the confirmation polling phase of one attempt.
	ConfirmationTimeout time.Duration `mapstructure:"confirmation_timeout"`
	// ConfirmPollInterval is the fixed delay between status polls.
	ConfirmPollInterval time.Duration `mapstructure:"confirm_poll_interval"`
	// PollRetryDelay is the short fixed delay after a transport error during polling.
	PollRetryDelay time.Duration `mapstructure:"poll_retry_delay"`
	// PollRetryLimit bounds consecutive transport errors tolerated during polling.
	PollRetryLimit int `mapstructure:"poll_retry_limit"`
	// Concurrency is the maximum number of jobs in flight at once.
	Concurrency int `mapstructure:"concurrency"`
	// InterJobDelay paces sequential submissions; zero disables.
	InterJobDelay time.Duration `mapstructure:"inter_job_delay"`
	// SuccessThreshold is the confirmed/total ratio required for a zero exit code.
	SuccessThreshold float64 `mapstructure:"success_threshold"`
	// TransferAmount is the amount moved by each sample transfer, in base units.
	TransferAmount uint64 `mapstructure:"transfer_amount"`
	// MinBalance is the wallet balance required before a run starts, in base units.
	MinBalance uint64 `mapstructure:"min_balance"`
}

// BackoffConfig holds retry backoff configuration
type BackoffConfig struct {
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration `mapstructure:"base_delay"`
	// Multiplier grows the delay per attempt; must be >= 1.
	Multiplier float64 `mapstructure:"multiplier"`
	// MaxDelay caps the computed delay.
	MaxDelay time.Duration `mapstructure:"max_delay"`
	// Jitter is the uniform jitter fraction in [0, 1); zero disables.
	Jitter float64 `mapstructure:"jitter"`
}

// WalletConfig holds signing identity configuration
type WalletConfig struct {
	// KeypairPath points at the private key file; empty generates a fresh keypair.
	KeypairPath string `mapstructure:"keypair_path"`
}

// APIConfig holds operational HTTP server configuration
type APIConfig struct {
	Port               string   `mapstructure:"port"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
	// RateLimit is the per-IP request budget per minute.
	RateLimit int `mapstructure:"rate_limit"`
}

// RedisConfig holds Redis-related configuration
type RedisConfig struct {
	// Address enables the run archive when non-empty.
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig holds Kafka-related configuration
type KafkaConfig struct {
	// Brokers enables the outcome publisher when non-empty.
	Brokers        string `mapstructure:"brokers"`
	ConfirmedTopic string `mapstructure:"confirmed_topic"`
	FailedTopic    string `mapstructure:"failed_topic"`
}

// AuthConfig holds authentication-related configuration
type AuthConfig struct {
	// JWTSecret protects the summary endpoints when non-empty.
	JWTSecret string `mapstructure:"jwt_secret"`
}

// MetricsConfig holds metrics-related configuration
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Environment string `mapstructure:"environment"`
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// ConfigFile is an optional path to a config file (yaml, toml or json).
	ConfigFile string
	// EnvFile is an optional dotenv file loaded before reading the environment.
	EnvFile string
	// Flags is an optional flag set whose values override everything else.
	Flags *pflag.FlagSet
}

// DefaultLoadOptions returns the default load options.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{EnvFile: ".env"}
}

// Load loads configuration using the default options.
func Load() (*Config, error) {
	return LoadWithOptions(DefaultLoadOptions())
}

// LoadWithOptions loads configuration from defaults, the optional config
// file, TXPILOT_-prefixed environment variables and the optional flag set.
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	if opts.EnvFile != "" {
		if _, err := os.Stat(opts.EnvFile); err == nil {
			if err := godotenv.Load(opts.EnvFile); err != nil {
				return nil, fmt.Errorf("failed to load env file %s: %w", opts.EnvFile, err)
			}
		}
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("TXPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return nil, err
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

// RegisterFlags declares the command-line flags understood by LoadWithOptions.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("rpc-url", "", "Ledger node RPC URL")
	fs.Int("num-transactions", 0, "Number of sample transactions to send")
	fs.Int("max-retries", -1, "Maximum number of retries per transaction")
	fs.Int("concurrency", 0, "Maximum number of jobs in flight")
	fs.String("keypair-path", "", "Path to keypair file")
	fs.String("api-port", "", "Operational API port (metrics, health)")
	fs.String("log-level", "", "Log level (debug, info, warn, error)")
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"rpc-url":          "rpc.url",
	"num-transactions": "submitter.num_transactions",
	"max-retries":      "submitter.max_retries",
	"concurrency":      "submitter.concurrency",
	"keypair-path":     "wallet.keypair_path",
	"api-port":         "api.port",
	"log-level":        "log.level",
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var bindErr error
	fs.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
			bindErr = fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rpc.url", "http://localhost:8899")
	v.SetDefault("rpc.request_timeout", 15*time.Second)

	v.SetDefault("submitter.num_transactions", 10)
	v.SetDefault("submitter.max_retries", 3)
	v.SetDefault("submitter.confirmation_timeout", 30*time.Second)
	v.SetDefault("submitter.confirm_poll_interval", time.Second)
	v.SetDefault("submitter.poll_retry_delay", 250*time.Millisecond)
	v.SetDefault("submitter.poll_retry_limit", 3)
	v.SetDefault("submitter.concurrency", 1)
	v.SetDefault("submitter.inter_job_delay", 500*time.Millisecond)
	v.SetDefault("submitter.success_threshold", 1.0)
	v.SetDefault("submitter.transfer_amount", 100)
	v.SetDefault("submitter.min_balance", 1_000_000)

	v.SetDefault("backoff.base_delay", 500*time.Millisecond)
	v.SetDefault("backoff.multiplier", 2.0)
	v.SetDefault("backoff.max_delay", 30*time.Second)
	v.SetDefault("backoff.jitter", 0.0)

	v.SetDefault("wallet.keypair_path", "")

	v.SetDefault("api.port", "9000")
	v.SetDefault("api.cors_allowed_origins", []string{"*"})
	v.SetDefault("api.rate_limit", 100)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.confirmed_topic", "confirmed_transactions")
	v.SetDefault("kafka.failed_topic", "failed_transactions")

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("metrics.namespace", "txpilot")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.environment", "development")
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.RPC.URL == "" {
		return fmt.Errorf("rpc.url must not be empty")
	}
	if c.Submitter.NumTransactions < 0 {
		return fmt.Errorf("submitter.num_transactions must be >= 0")
	}
	if c.Submitter.MaxRetries < 0 {
		return fmt.Errorf("submitter.max_retries must be >= 0")
	}
	if c.Submitter.Concurrency < 1 {
		return fmt.Errorf("submitter.concurrency must be >= 1")
	}
	if c.Submitter.SuccessThreshold < 0 || c.Submitter.SuccessThreshold > 1 {
		return fmt.Errorf("submitter.success_threshold must be in [0, 1]")
	}
	if c.Backoff.Multiplier < 1 {
		return fmt.Errorf("backoff.multiplier must be >= 1")
	}
	if c.Backoff.Jitter < 0 || c.Backoff.Jitter >= 1 {
		return fmt.Errorf("backoff.jitter must be in [0, 1)")
	}
	if c.Backoff.BaseDelay < 0 || c.Backoff.MaxDelay < 0 {
		return fmt.Errorf("backoff delays must be >= 0")
	}
	return nil
}
