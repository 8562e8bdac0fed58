package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "pricescope",
		Short:        "Historical DEX swap price and large-buy analyzer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract swap prices and large buys for one pool",
		RunE:  runExtract,
	}
	addExtractFlags(extractCmd)
	root.AddCommand(extractCmd)

	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Run extraction over a list of pools from the config file",
		RunE:  runBatch,
	}
	addExtractFlags(batchCmd)
	batchCmd.Flags().Int("workers", 4, "concurrent extraction workers")
	root.AddCommand(batchCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addExtractFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "Ethereum RPC URL (archive node for historical prices)")
	cmd.Flags().String("token", "", "target token address")
	cmd.Flags().String("pool", "", "pool address to analyze")
	cmd.Flags().Uint64("from", 0, "start block (inclusive)")
	cmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	cmd.Flags().Uint64("chunk-size", 2000, "blocks per log query")
	cmd.Flags().String("version", "", "pool version (v2, v3), empty probes the contract")
	cmd.Flags().String("base-token", "", "base asset address (wrapped native token)")
	cmd.Flags().String("stable-token", "", "USD stable address for direct-stable pools")
	cmd.Flags().String("reference-pool", "", "V3 pool pricing the base asset in USD")
	cmd.Flags().String("aggregator", "", "Chainlink aggregator fallback")
	cmd.Flags().Int64("fallback-micros", 3_500_000_000, "fixed base price fallback in micro-USD")
	cmd.Flags().Uint64("bucket-size", 300, "blocks per cached oracle reading")
	cmd.Flags().String("base-threshold", "0.1", "large-buy threshold in base units")
	cmd.Flags().Int64("ref-threshold-micros", 1_000_000_000, "large-buy threshold in micro-USD")
	cmd.Flags().String("out-prices", "./data/prices.jsonl", "price points JSONL path")
	cmd.Flags().String("out-trades", "./data/trades.jsonl", "trade classifications JSONL path")
	cmd.Flags().String("out-csv", "", "optional price points CSV path")
	cmd.Flags().String("pg-dsn", "", "optional Postgres DSN")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
