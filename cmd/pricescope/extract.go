package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"priceScope/internal/analyzer"
	"priceScope/internal/chain"
	"priceScope/internal/config"
	"priceScope/internal/dex"
	"priceScope/internal/model"
	"priceScope/internal/pricing"
	"priceScope/internal/storage"
	"priceScope/internal/storage/postgres"
)

func runExtract(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadExtract(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipe, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pipe.Close()

	return pipe.runJob(ctx, config.BatchJob{
		Token:   cfg.Token,
		Pool:    cfg.Pool,
		From:    cfg.FromBlock,
		To:      cfg.ToBlock,
		Version: cfg.Version,
	})
}

// pipeline holds the shared dependencies of extraction jobs: one chain
// client, one metadata cache, one oracle cache, and the output sinks.
type pipeline struct {
	chain    *chain.Client
	resolver *dex.Resolver
	oracle   *pricing.Oracle
	grader   *pricing.Classifier
	sink     storage.Sink
	pg       *postgres.Store
	cfg      config.ExtractConfig
	logger   *zap.Logger
}

func newPipeline(ctx context.Context, cfg config.ExtractConfig, logger *zap.Logger) (*pipeline, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	for name, addr := range map[string]string{
		"base-token":     cfg.BaseToken,
		"reference-pool": cfg.ReferencePool,
	} {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("%s must be a hex address, got %q", name, addr)
		}
	}

	threshold, err := config.ParseThreshold(cfg.BaseThreshold)
	if err != nil {
		return nil, err
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	resolver := dex.NewResolver(chainClient, dex.NewMetadataCache(), logger)

	var aggregator common.Address
	if cfg.Aggregator != "" {
		if !common.IsHexAddress(cfg.Aggregator) {
			chainClient.Close()
			return nil, fmt.Errorf("aggregator must be a hex address, got %q", cfg.Aggregator)
		}
		aggregator = common.HexToAddress(cfg.Aggregator)
	}

	oracle := pricing.NewOracle(chainClient, resolver, pricing.OracleConfig{
		ReferencePool:  common.HexToAddress(cfg.ReferencePool),
		BaseToken:      common.HexToAddress(cfg.BaseToken),
		Aggregator:     aggregator,
		FallbackMicros: cfg.FallbackMicros,
		BucketSize:     cfg.BucketSize,
	}, logger)

	grader := pricing.NewClassifier(oracle, pricing.ClassifierConfig{
		BaseToken:          cfg.BaseToken,
		StableToken:        cfg.StableToken,
		BaseThreshold:      threshold,
		RefThresholdMicros: cfg.RefThresholdMicros,
	}, logger)

	sinks := storage.MultiSink{storage.NewJsonlSink(cfg.OutPrices, cfg.OutTrades)}
	if cfg.OutCSV != "" {
		sinks = append(sinks, storage.NewCSVSink(cfg.OutCSV))
	}

	var pg *postgres.Store
	if cfg.PGDSN != "" {
		pg, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			chainClient.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		sinks = append(sinks, pg)
	}

	return &pipeline{
		chain:    chainClient,
		resolver: resolver,
		oracle:   oracle,
		grader:   grader,
		sink:     sinks,
		pg:       pg,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

func (p *pipeline) Close() {
	if p.pg != nil {
		p.pg.Close()
	}
	if p.chain != nil {
		p.chain.Close()
	}
}

// runJob analyzes one (token, pool, range) and writes the result to every
// configured sink.
func (p *pipeline) runJob(ctx context.Context, job config.BatchJob) error {
	if !common.IsHexAddress(job.Token) {
		return fmt.Errorf("token must be a hex address, got %q", job.Token)
	}
	if !common.IsHexAddress(job.Pool) {
		return fmt.Errorf("pool must be a hex address, got %q", job.Pool)
	}
	hint, err := model.ParseVersion(job.Version)
	if err != nil {
		return err
	}

	to := job.To
	if to == 0 {
		latest, err := p.chain.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	from := job.From
	if p.pg != nil {
		last, ok, err := p.pg.LastProcessedBlock(ctx,
			strings.ToLower(job.Token), strings.ToLower(job.Pool))
		if err != nil {
			return fmt.Errorf("load run state: %w", err)
		}
		from = resolveStartBlock(job.From, last, ok)
		if from != job.From {
			p.logger.Info("resuming from saved watermark",
				zap.Uint64("last_processed", last),
				zap.Uint64("configured_from", job.From),
			)
		}
	}
	if from > to {
		p.logger.Info("nothing to process, range already covered",
			zap.Uint64("from", from),
			zap.Uint64("to", to),
		)
		return nil
	}

	runner := analyzer.NewRunner(analyzer.RunConfig{
		Token:        common.HexToAddress(job.Token),
		Pool:         common.HexToAddress(job.Pool),
		FromBlock:    from,
		ToBlock:      to,
		ChunkSize:    p.cfg.ChunkSize,
		VersionHint:  hint,
		BaseToken:    p.cfg.BaseToken,
		StableToken:  p.cfg.StableToken,
		MaxRetries:   p.cfg.MaxRetries,
		RetryBackoff: p.cfg.RetryBackoff,
	}, p.chain, p.resolver, p.oracle, p.grader, p.logger)

	p.logger.Info("analysis start",
		zap.String("token", strings.ToLower(job.Token)),
		zap.String("pool", strings.ToLower(job.Pool)),
		zap.Uint64("from", from),
		zap.Uint64("to", to),
		zap.String("pg_dsn", redactDSN(p.cfg.PGDSN)),
	)

	result, err := runner.Run(ctx)
	if err != nil {
		if errors.Is(err, model.ErrNoDataFound) || errors.Is(err, model.ErrNoPriceableSwaps) {
			p.logger.Warn("analysis produced no output", zap.Error(err))
		}
		return err
	}

	if err := p.sink.WriteResult(ctx, result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	logSummary(p.logger, &result.Summary)
	return nil
}

func logSummary(logger *zap.Logger, summary *model.AnalysisSummary) {
	fields := []zap.Field{
		zap.String("token", summary.TokenAddress),
		zap.String("pool", summary.PoolAddress),
		zap.Int("swaps", summary.TotalSwaps),
		zap.Int("priced", summary.TotalPriced),
		zap.Int("large_buys", summary.LargeBuyCount),
		zap.Int("skipped", summary.Skips.Total()),
		zap.Int("failed_chunks", summary.Skips.Chunks),
	}
	if summary.Latest != nil {
		fields = append(fields,
			zap.String("latest_price", model.FormatRat(summary.Latest.Price)),
			zap.String("lowest_price", model.FormatRat(summary.Lowest.Price)),
			zap.String("highest_price", model.FormatRat(summary.Highest.Price)),
			zap.Float64("change_from_low_pct", summary.ChangeFromLowPct),
			zap.Float64("change_from_high_pct", summary.ChangeFromHighPct),
		)
	}
	if summary.LargeBuyCount > 0 {
		fields = append(fields,
			zap.String("large_buy_total_base", model.FormatRat(summary.LargeBuyTotalBase)),
			zap.String("largest_buy_base", model.FormatRat(summary.LargestBuyBase)),
			zap.String("largest_buy_tx", summary.LargestBuyTx),
		)
	}
	logger.Info("analysis complete", fields...)
}

// resolveStartBlock advances the configured start past a saved watermark so a
// rerun never reprocesses blocks already persisted for the pair.
func resolveStartBlock(configured, lastProcessed uint64, hasWatermark bool) uint64 {
	if hasWatermark && lastProcessed+1 > configured {
		return lastProcessed + 1
	}
	return configured
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
