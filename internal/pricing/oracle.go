package pricing

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"priceScope/internal/dex"
	"priceScope/internal/model"
)

// microsPerUnit scales a decimal reference price into integer micro-units.
const microsPerUnit = 1_000_000

// ContractCaller executes read-only contract calls, optionally at a
// historical block.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// MetadataResolver resolves pool metadata for the oracle's reference pool.
type MetadataResolver interface {
	ResolveWithHint(ctx context.Context, pool common.Address, hint model.Version) (model.PoolMetadata, error)
}

// OracleConfig wires an Oracle to its on-chain sources.
type OracleConfig struct {
	// ReferencePool is a V3 pool pairing the base token with a USD stable.
	ReferencePool common.Address
	// BaseToken is the token whose USD price the oracle reports.
	BaseToken common.Address
	// Aggregator is a Chainlink feed used when the pool read fails.
	Aggregator common.Address
	// FallbackMicros is the last-resort fixed price in micro-USD.
	FallbackMicros int64
	// BucketSize groups nearby blocks into one cached reading.
	BucketSize uint64
}

// Oracle reports the USD price of the base token at historical blocks.
// Readings are cached per block bucket so a long scan touches the chain
// once per bucket rather than once per swap.
type Oracle struct {
	caller   ContractCaller
	resolver MetadataResolver
	cfg      OracleConfig
	logger   *zap.Logger

	mu      sync.RWMutex
	buckets map[uint64]int64
	refMeta *model.PoolMetadata
}

// NewOracle builds an Oracle. BucketSize defaults to 300 blocks.
func NewOracle(caller ContractCaller, resolver MetadataResolver, cfg OracleConfig, logger *zap.Logger) *Oracle {
	if cfg.BucketSize == 0 {
		cfg.BucketSize = 300
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Oracle{
		caller:   caller,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger,
		buckets:  make(map[uint64]int64),
	}
}

// BasePriceMicros returns the base token's USD price in micro-units at the
// given block. It tries the reference pool at that block, then the Chainlink
// aggregator, then the configured fixed fallback.
func (o *Oracle) BasePriceMicros(ctx context.Context, blockNumber uint64) (int64, error) {
	bucket := blockNumber / o.cfg.BucketSize

	o.mu.RLock()
	cached, ok := o.buckets[bucket]
	o.mu.RUnlock()
	if ok {
		return cached, nil
	}

	micros, err := o.resolve(ctx, blockNumber)
	if err != nil {
		return 0, err
	}

	o.mu.Lock()
	o.buckets[bucket] = micros
	o.mu.Unlock()
	return micros, nil
}

func (o *Oracle) resolve(ctx context.Context, blockNumber uint64) (int64, error) {
	micros, poolErr := o.poolPriceMicros(ctx, blockNumber)
	if poolErr == nil {
		return micros, nil
	}
	o.logger.Warn("reference pool read failed, trying aggregator",
		zap.Uint64("block", blockNumber),
		zap.Error(poolErr))

	micros, aggErr := o.aggregatorPriceMicros(ctx)
	if aggErr == nil {
		return micros, nil
	}

	if o.cfg.FallbackMicros > 0 {
		o.logger.Error("all price sources failed, using fixed fallback",
			zap.Uint64("block", blockNumber),
			zap.Int64("fallbackMicros", o.cfg.FallbackMicros),
			zap.NamedError("poolError", poolErr),
			zap.NamedError("aggregatorError", aggErr))
		return o.cfg.FallbackMicros, nil
	}
	return 0, fmt.Errorf("pool: %v; aggregator: %v: %w", poolErr, aggErr, model.ErrOracleUnavailable)
}

// poolPriceMicros reads the reference pool's slot0 at a historical block and
// converts the sqrt price into the base token's USD unit price.
func (o *Oracle) poolPriceMicros(ctx context.Context, blockNumber uint64) (int64, error) {
	meta, err := o.referenceMetadata(ctx)
	if err != nil {
		return 0, err
	}

	poolABI, err := dex.V3PoolABI()
	if err != nil {
		return 0, err
	}
	calldata, err := poolABI.Pack("slot0")
	if err != nil {
		return 0, fmt.Errorf("pack slot0: %w", err)
	}
	pool := o.cfg.ReferencePool
	raw, err := o.caller.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: calldata}, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return 0, fmt.Errorf("call slot0: %w", err)
	}
	values, err := poolABI.Unpack("slot0", raw)
	if err != nil || len(values) == 0 {
		return 0, fmt.Errorf("unpack slot0: %w", err)
	}
	sqrtPriceX96, ok := values[0].(*big.Int)
	if !ok || sqrtPriceX96.Sign() <= 0 {
		return 0, fmt.Errorf("slot0 returned unusable sqrt price")
	}

	// token0's unit price denominated in token1.
	token0Price := mulPow10(rawSqrtRatio(sqrtPriceX96), int(meta.Decimals0)-int(meta.Decimals1))
	if token0Price.Sign() <= 0 {
		return 0, fmt.Errorf("non-positive pool price")
	}

	base := strings.ToLower(o.cfg.BaseToken.Hex())
	var basePrice *big.Rat
	switch base {
	case meta.Token0:
		basePrice = token0Price
	case meta.Token1:
		basePrice = new(big.Rat).Inv(token0Price)
	default:
		return 0, fmt.Errorf("base token %s not in reference pool: %w", base, model.ErrTokenNotInPool)
	}
	if basePrice.Cmp(sanityCeiling) > 0 {
		return 0, fmt.Errorf("pool price exceeds sanity ceiling")
	}
	return ratToMicros(basePrice), nil
}

// aggregatorPriceMicros reads the latest Chainlink round. Feed answers carry
// eight decimals; micro-units carry six.
func (o *Oracle) aggregatorPriceMicros(ctx context.Context) (int64, error) {
	if o.cfg.Aggregator == (common.Address{}) {
		return 0, fmt.Errorf("no aggregator configured")
	}
	aggABI, err := dex.AggregatorABI()
	if err != nil {
		return 0, err
	}
	calldata, err := aggABI.Pack("latestRoundData")
	if err != nil {
		return 0, fmt.Errorf("pack latestRoundData: %w", err)
	}
	agg := o.cfg.Aggregator
	raw, err := o.caller.CallContract(ctx, ethereum.CallMsg{To: &agg, Data: calldata}, nil)
	if err != nil {
		return 0, fmt.Errorf("call latestRoundData: %w", err)
	}
	values, err := aggABI.Unpack("latestRoundData", raw)
	if err != nil || len(values) < 2 {
		return 0, fmt.Errorf("unpack latestRoundData: %w", err)
	}
	answer, ok := values[1].(*big.Int)
	if !ok || answer.Sign() <= 0 {
		return 0, fmt.Errorf("aggregator returned non-positive answer")
	}
	micros := new(big.Int).Quo(answer, big.NewInt(100))
	if !micros.IsInt64() {
		return 0, fmt.Errorf("aggregator answer out of range")
	}
	o.logger.Warn("using aggregator price, historical accuracy reduced",
		zap.Int64("micros", micros.Int64()))
	return micros.Int64(), nil
}

func (o *Oracle) referenceMetadata(ctx context.Context) (*model.PoolMetadata, error) {
	o.mu.RLock()
	meta := o.refMeta
	o.mu.RUnlock()
	if meta != nil {
		return meta, nil
	}
	resolved, err := o.resolver.ResolveWithHint(ctx, o.cfg.ReferencePool, model.VersionV3)
	if err != nil {
		return nil, fmt.Errorf("resolve reference pool: %w", err)
	}
	o.mu.Lock()
	o.refMeta = &resolved
	o.mu.Unlock()
	return &resolved, nil
}

// ratToMicros truncates a decimal price into integer micro-units, clamping
// values outside the int64 range instead of letting Int64 wrap.
func ratToMicros(price *big.Rat) int64 {
	scaled := new(big.Rat).Mul(price, new(big.Rat).SetInt64(microsPerUnit))
	whole := new(big.Int).Quo(scaled.Num(), scaled.Denom())
	if !whole.IsInt64() {
		if whole.Sign() < 0 {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return whole.Int64()
}
