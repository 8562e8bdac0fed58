package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Mainnet defaults for the reference price sources.
const (
	DefaultReferencePool = "0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640"
	DefaultAggregator    = "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419"
	DefaultBaseToken     = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	DefaultStableToken   = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
)

// ExtractConfig holds configuration for one extract run.
type ExtractConfig struct {
	RPCURL    string
	Token     string
	Pool      string
	FromBlock uint64
	ToBlock   uint64
	ChunkSize uint64
	Version   string

	BaseToken   string
	StableToken string

	ReferencePool  string
	Aggregator     string
	FallbackMicros int64
	BucketSize     uint64

	BaseThreshold      string
	RefThresholdMicros int64

	OutPrices string
	OutTrades string
	OutCSV    string
	PGDSN     string

	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// BatchJob names one (token, pool, range) to analyze in batch mode.
type BatchJob struct {
	Token   string `mapstructure:"token"`
	Pool    string `mapstructure:"pool"`
	From    uint64 `mapstructure:"from"`
	To      uint64 `mapstructure:"to"`
	Version string `mapstructure:"version"`
}

// BatchConfig holds configuration for batch mode: the shared extract
// settings plus the job list and worker count.
type BatchConfig struct {
	Extract ExtractConfig
	Jobs    []BatchJob
	Workers int
}

// LoadExtract merges config file, environment variables, and flags into
// ExtractConfig.
func LoadExtract(cfgFile string, flags *pflag.FlagSet) (ExtractConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ExtractConfig{}, err
	}
	return extractFromViper(v), nil
}

// LoadBatch merges config file, environment variables, and flags into
// BatchConfig. The job list comes from the config file only.
func LoadBatch(cfgFile string, flags *pflag.FlagSet) (BatchConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return BatchConfig{}, err
	}

	cfg := BatchConfig{
		Extract: extractFromViper(v),
		Workers: v.GetInt("workers"),
	}
	if err := v.UnmarshalKey("jobs", &cfg.Jobs); err != nil {
		return BatchConfig{}, fmt.Errorf("parse jobs: %w", err)
	}
	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("PRICESCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("chunk-size", uint64(2000))
	v.SetDefault("base-token", DefaultBaseToken)
	v.SetDefault("stable-token", DefaultStableToken)
	v.SetDefault("reference-pool", DefaultReferencePool)
	v.SetDefault("aggregator", DefaultAggregator)
	v.SetDefault("fallback-micros", int64(3_500_000_000))
	v.SetDefault("bucket-size", uint64(300))
	v.SetDefault("base-threshold", "0.1")
	v.SetDefault("ref-threshold-micros", int64(1_000_000_000))
	v.SetDefault("out-prices", "./data/prices.jsonl")
	v.SetDefault("out-trades", "./data/trades.jsonl")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")
	v.SetDefault("workers", 4)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}

func extractFromViper(v *viper.Viper) ExtractConfig {
	return ExtractConfig{
		RPCURL:             v.GetString("rpc"),
		Token:              v.GetString("token"),
		Pool:               v.GetString("pool"),
		FromBlock:          v.GetUint64("from"),
		ToBlock:            v.GetUint64("to"),
		ChunkSize:          v.GetUint64("chunk-size"),
		Version:            v.GetString("version"),
		BaseToken:          v.GetString("base-token"),
		StableToken:        v.GetString("stable-token"),
		ReferencePool:      v.GetString("reference-pool"),
		Aggregator:         v.GetString("aggregator"),
		FallbackMicros:     v.GetInt64("fallback-micros"),
		BucketSize:         v.GetUint64("bucket-size"),
		BaseThreshold:      v.GetString("base-threshold"),
		RefThresholdMicros: v.GetInt64("ref-threshold-micros"),
		OutPrices:          v.GetString("out-prices"),
		OutTrades:          v.GetString("out-trades"),
		OutCSV:             v.GetString("out-csv"),
		PGDSN:              v.GetString("pg-dsn"),
		MaxRetries:         v.GetInt("max-retries"),
		RetryBackoff:       v.GetDuration("retry-backoff"),
		LogLevel:           v.GetString("log-level"),
	}
}

// ParseThreshold parses a decimal threshold like "0.1" into an exact
// rational.
func ParseThreshold(input string) (*big.Rat, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return new(big.Rat), nil
	}
	value, ok := new(big.Rat).SetString(input)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("invalid threshold: %q", input)
	}
	return value, nil
}
