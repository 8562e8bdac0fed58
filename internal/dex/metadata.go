package dex

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"priceScope/internal/model"
)

// defaultDecimals is assumed when a token does not answer decimals(); many
// non-standard tokens omit the call.
const defaultDecimals = 18

// ContractCaller is the read-only contract transport the resolver needs. A
// nil block number means latest state.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// MetadataCache caches resolved pool metadata by lower-cased pool address.
// Entries are write-once for the lifetime of a run.
type MetadataCache struct {
	mu   sync.RWMutex
	data map[string]model.PoolMetadata
}

func NewMetadataCache() *MetadataCache {
	return &MetadataCache{data: make(map[string]model.PoolMetadata)}
}

func (c *MetadataCache) Get(address string) (model.PoolMetadata, bool) {
	c.mu.RLock()
	meta, ok := c.data[strings.ToLower(address)]
	c.mu.RUnlock()
	return meta, ok
}

func (c *MetadataCache) Set(address string, meta model.PoolMetadata) {
	c.mu.Lock()
	if _, ok := c.data[strings.ToLower(address)]; !ok {
		c.data[strings.ToLower(address)] = meta
	}
	c.mu.Unlock()
}

// Resolver fetches and caches immutable pool facts: version, tokens and
// their decimals, fee tier for concentrated-liquidity pools.
type Resolver struct {
	caller ContractCaller
	cache  *MetadataCache
	logger *zap.Logger
}

func NewResolver(caller ContractCaller, cache *MetadataCache, logger *zap.Logger) *Resolver {
	if cache == nil {
		cache = NewMetadataCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{caller: caller, cache: cache, logger: logger}
}

// Resolve probes the pool version and loads its metadata. See
// ResolveWithHint for the probe order.
func (r *Resolver) Resolve(ctx context.Context, pool common.Address) (model.PoolMetadata, error) {
	return r.ResolveWithHint(ctx, pool, "")
}

// ResolveWithHint loads pool metadata, skipping the version probe when the
// caller already knows the pool design. Version detection tries a V3-only
// read (fee) first, then a V2-only read (getReserves), and defaults to V2
// with a low-confidence warning when both fail. Decimals failures degrade
// to 18; only token address resolution is fatal.
func (r *Resolver) ResolveWithHint(ctx context.Context, pool common.Address, hint model.Version) (model.PoolMetadata, error) {
	if r.caller == nil {
		return model.PoolMetadata{}, fmt.Errorf("contract caller is nil")
	}

	key := strings.ToLower(pool.Hex())
	if meta, ok := r.cache.Get(key); ok {
		return meta, nil
	}

	version := hint
	var feeTier uint32
	var assumed bool
	if version == "" {
		version, feeTier, assumed = r.probeVersion(ctx, pool)
	} else if version == model.VersionV3 {
		if fee, err := r.readFee(ctx, pool); err == nil {
			feeTier = fee
		}
	}

	poolABI, err := poolABIFor(version)
	if err != nil {
		return model.PoolMetadata{}, err
	}

	token0, err := r.readTokenAddress(ctx, pool, poolABI, "token0")
	if err != nil {
		return model.PoolMetadata{}, fmt.Errorf("%w: %s: %v", model.ErrMetadataUnavailable, pool.Hex(), err)
	}
	token1, err := r.readTokenAddress(ctx, pool, poolABI, "token1")
	if err != nil {
		return model.PoolMetadata{}, fmt.Errorf("%w: %s: %v", model.ErrMetadataUnavailable, pool.Hex(), err)
	}

	meta := model.PoolMetadata{
		Address:        key,
		Version:        version,
		Token0:         strings.ToLower(token0.Hex()),
		Token1:         strings.ToLower(token1.Hex()),
		Decimals0:      r.tokenDecimals(ctx, token0),
		Decimals1:      r.tokenDecimals(ctx, token1),
		FeeTier:        feeTier,
		VersionAssumed: assumed,
	}

	r.cache.Set(key, meta)
	return meta, nil
}

func (r *Resolver) probeVersion(ctx context.Context, pool common.Address) (model.Version, uint32, bool) {
	if fee, err := r.readFee(ctx, pool); err == nil {
		r.logger.Debug("detected concentrated-liquidity pool",
			zap.String("pool", pool.Hex()), zap.Uint32("fee", fee))
		return model.VersionV3, fee, false
	}

	pairABI, err := V2PairABI()
	if err == nil {
		if _, err := r.callMethod(ctx, pool, pairABI, "getReserves"); err == nil {
			r.logger.Debug("detected constant-product pool", zap.String("pool", pool.Hex()))
			return model.VersionV2, 0, false
		}
	}

	r.logger.Warn("pool version probe failed, assuming constant-product",
		zap.String("pool", pool.Hex()))
	return model.VersionV2, 0, true
}

func (r *Resolver) readFee(ctx context.Context, pool common.Address) (uint32, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return 0, err
	}
	values, err := r.callMethod(ctx, pool, poolABI, "fee")
	if err != nil {
		return 0, err
	}
	fee, err := asBigInt(values[0])
	if err != nil {
		return 0, err
	}
	return uint32(fee.Uint64()), nil
}

func (r *Resolver) readTokenAddress(ctx context.Context, pool common.Address, poolABI abi.ABI, method string) (common.Address, error) {
	values, err := r.callMethod(ctx, pool, poolABI, method)
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(values[0])
}

func (r *Resolver) tokenDecimals(ctx context.Context, token common.Address) uint8 {
	tokenABI, err := ERC20ABI()
	if err != nil {
		return defaultDecimals
	}
	values, err := r.callMethod(ctx, token, tokenABI, "decimals")
	if err != nil {
		r.logger.Warn("decimals call failed, assuming 18",
			zap.String("token", token.Hex()), zap.Error(err))
		return defaultDecimals
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		r.logger.Warn("decimals decode failed, assuming 18",
			zap.String("token", token.Hex()), zap.Error(err))
		return defaultDecimals
	}
	return decimals
}

func (r *Resolver) callMethod(ctx context.Context, target common.Address, parsed abi.ABI, method string) ([]interface{}, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &target, Data: data}
	resp, err := r.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

func poolABIFor(version model.Version) (abi.ABI, error) {
	if version == model.VersionV3 {
		return V3PoolABI()
	}
	return V2PairABI()
}
