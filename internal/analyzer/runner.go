package analyzer

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"priceScope/internal/dex"
	"priceScope/internal/model"
	"priceScope/internal/pricing"
)

// LogSource streams historical logs and block timestamps from the chain.
type LogSource interface {
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
	BlockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error)
}

// MetadataResolver resolves pool metadata, probing the contract when no
// version hint is given.
type MetadataResolver interface {
	ResolveWithHint(ctx context.Context, pool common.Address, hint model.Version) (model.PoolMetadata, error)
}

// TradeGrader classifies decoded swaps into directed, size-graded trades.
type TradeGrader interface {
	Classify(ctx context.Context, swap *model.DecodedSwap, meta *model.PoolMetadata, blockNumber uint64, txHash string) (*model.TradeClassification, error)
}

// RunConfig holds runtime settings for one analysis run.
type RunConfig struct {
	Token       common.Address
	Pool        common.Address
	FromBlock   uint64
	ToBlock     uint64
	ChunkSize   uint64
	VersionHint model.Version

	// BaseToken and StableToken mirror the classifier configuration so
	// price points can be denominated consistently.
	BaseToken   string
	StableToken string

	MaxRetries   int
	RetryBackoff time.Duration
}

// Runner walks a block range, decodes every swap in the target pool, prices
// each one, and grades trade sizes.
type Runner struct {
	cfg      RunConfig
	source   LogSource
	resolver MetadataResolver
	pricer   pricing.ReferencePricer
	grader   TradeGrader
	logger   *zap.Logger
	seen     map[string]struct{}
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, source LogSource, resolver MetadataResolver, pricer pricing.ReferencePricer, grader TradeGrader, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.BaseToken = strings.ToLower(cfg.BaseToken)
	cfg.StableToken = strings.ToLower(cfg.StableToken)
	return &Runner{
		cfg:      cfg,
		source:   source,
		resolver: resolver,
		pricer:   pricer,
		grader:   grader,
		logger:   logger,
		seen:     make(map[string]struct{}),
	}
}

// Run executes the analysis loop over the configured block range.
func (r *Runner) Run(ctx context.Context) (*model.AnalysisResult, error) {
	if r.source == nil {
		return nil, fmt.Errorf("log source is nil")
	}
	if r.resolver == nil {
		return nil, fmt.Errorf("resolver is nil")
	}
	if r.cfg.ChunkSize == 0 {
		return nil, fmt.Errorf("chunk size must be greater than zero")
	}

	meta, err := r.resolver.ResolveWithHint(ctx, r.cfg.Pool, r.cfg.VersionHint)
	if err != nil {
		return nil, fmt.Errorf("resolve pool %s: %w", r.cfg.Pool.Hex(), err)
	}

	token := strings.ToLower(r.cfg.Token.Hex())
	if !meta.HasToken(token) {
		return nil, fmt.Errorf("token %s not in pool %s: %w", token, meta.Address, model.ErrTokenNotInPool)
	}

	decoder, err := dex.NewSwapDecoder(meta.Version)
	if err != nil {
		return nil, err
	}

	ranges, err := SplitRange(r.cfg.FromBlock, r.cfg.ToBlock, r.cfg.ChunkSize)
	if err != nil {
		return nil, err
	}

	result := &model.AnalysisResult{
		Summary: model.AnalysisSummary{
			TokenAddress: token,
			PoolAddress:  meta.Address,
			FromBlock:    r.cfg.FromBlock,
			ToBlock:      r.cfg.ToBlock,
		},
	}
	skips := &result.Summary.Skips
	totalLogs := 0

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		r.logger.Info("fetch swap logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := r.filterLogsWithRetry(ctx, blockRange.From, blockRange.To, decoder.Topic0())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			skips.Chunks++
			r.logger.Warn("chunk failed, continuing",
				zap.Uint64("from", blockRange.From),
				zap.Uint64("to", blockRange.To),
				zap.Error(err))
			continue
		}

		for _, log := range logs {
			if log.Removed || r.isDuplicate(log) {
				continue
			}
			totalLogs++
			r.processLog(ctx, log, &meta, token, decoder, result)
		}
	}

	if totalLogs == 0 {
		return nil, fmt.Errorf("pool %s blocks %d-%d: %w",
			meta.Address, r.cfg.FromBlock, r.cfg.ToBlock, model.ErrNoDataFound)
	}
	if len(result.Prices) == 0 {
		return nil, fmt.Errorf("pool %s blocks %d-%d: %d events, none priceable: %w",
			meta.Address, r.cfg.FromBlock, r.cfg.ToBlock, totalLogs, model.ErrNoPriceableSwaps)
	}

	finishSummary(result)
	return result, nil
}

func (r *Runner) processLog(ctx context.Context, log types.Log, meta *model.PoolMetadata, token string, decoder dex.SwapDecoder, result *model.AnalysisResult) {
	skips := &result.Summary.Skips

	record := r.buildLogRecord(ctx, log)
	swap, err := decoder.DecodeSwap(record)
	if err != nil {
		skips.Decode++
		r.logger.Debug("undecodable swap event",
			zap.String("tx", record.TxHash),
			zap.Uint64("logIndex", record.LogIndex),
			zap.Error(err))
		return
	}
	result.Summary.TotalSwaps++

	price, err := pricing.PriceInBase(swap, meta, token)
	if err != nil {
		skips.Price++
		r.logger.Debug("unpriceable swap",
			zap.String("tx", record.TxHash),
			zap.Uint64("logIndex", record.LogIndex),
			zap.Error(err))
		return
	}

	point := model.PricePoint{
		Timestamp:      record.Timestamp,
		BlockNumber:    record.BlockNumber,
		TxHash:         record.TxHash,
		PriceMethod:    price.Method,
		LowConfidence:  price.LowConfidence,
		TokenPriceBase: price.Price,
		Raw:            swap.Raw(),
	}
	r.denominate(ctx, &point, price.Price, meta, token, skips)
	result.Prices = append(result.Prices, point)
	result.Summary.TotalPriced++

	if r.grader == nil {
		return
	}
	trade, err := r.grader.Classify(ctx, swap, meta, record.BlockNumber, record.TxHash)
	if err != nil {
		skips.Classify++
		r.logger.Debug("unclassifiable swap",
			zap.String("tx", record.TxHash),
			zap.Error(err))
		return
	}
	result.Trades = append(result.Trades, *trade)
}

// denominate fills in the base and reference prices depending on which
// counter asset the pool carries.
func (r *Runner) denominate(ctx context.Context, point *model.PricePoint, counterPrice *big.Rat, meta *model.PoolMetadata, token string, skips *model.SkipCounts) {
	counter := meta.Token1
	if token == meta.Token1 {
		counter = meta.Token0
	}

	switch counter {
	case r.cfg.StableToken:
		// The pool's counter leg is already the reference currency.
		point.TokenPriceBase = nil
		point.TokenPriceRef = counterPrice
		if micros := r.basePriceMicros(ctx, point.BlockNumber, skips); micros > 0 {
			point.BasePriceRefMicros = micros
			point.TokenPriceBase = new(big.Rat).Quo(
				new(big.Rat).Mul(counterPrice, big.NewRat(1_000_000, 1)),
				new(big.Rat).SetInt64(micros))
		}
	default:
		if micros := r.basePriceMicros(ctx, point.BlockNumber, skips); micros > 0 {
			point.BasePriceRefMicros = micros
			point.TokenPriceRef = new(big.Rat).Mul(counterPrice,
				big.NewRat(micros, 1_000_000))
		}
	}
}

func (r *Runner) basePriceMicros(ctx context.Context, blockNumber uint64, skips *model.SkipCounts) int64 {
	if r.pricer == nil {
		return 0
	}
	micros, err := r.pricer.BasePriceMicros(ctx, blockNumber)
	if err != nil {
		skips.Oracle++
		r.logger.Warn("reference price unavailable",
			zap.Uint64("block", blockNumber),
			zap.Error(err))
		return 0
	}
	return micros
}

func (r *Runner) buildLogRecord(ctx context.Context, log types.Log) model.LogRecord {
	ts, err := r.blockTimestampWithRetry(ctx, log.BlockNumber)
	if err != nil {
		r.logger.Warn("block timestamp fetch failed, recording zero",
			zap.Uint64("block", log.BlockNumber),
			zap.Error(err))
		ts = 0
	}

	topics := make([]string, 0, len(log.Topics))
	for _, topic := range log.Topics {
		topics = append(topics, topic.Hex())
	}
	return model.LogRecord{
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash.Hex(),
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		Address:     strings.ToLower(log.Address.Hex()),
		Topics:      topics,
		Data:        "0x" + common.Bytes2Hex(log.Data),
		Removed:     log.Removed,
		Timestamp:   ts,
	}
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64, topic0 common.Hash) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.source.FilterLogs(ctx, fromBlock, toBlock, []common.Address{r.cfg.Pool}, []common.Hash{topic0})
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = r.source.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
