package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"priceScope/internal/model"
)

// stubCaller answers eth_call by (target, calldata) lookup and counts calls.
type stubCaller struct {
	responses map[string][]byte
	calls     int
}

func (s *stubCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	s.calls++
	key := callKey(*msg.To, msg.Data)
	resp, ok := s.responses[key]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return resp, nil
}

func callKey(target common.Address, data []byte) string {
	return fmt.Sprintf("%s:%x", target.Hex(), data)
}

func (s *stubCaller) respond(t *testing.T, target common.Address, parsed interface {
	Pack(name string, args ...interface{}) ([]byte, error)
}, method string, output []byte) {
	t.Helper()
	calldata, err := parsed.Pack(method)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	if s.responses == nil {
		s.responses = make(map[string][]byte)
	}
	s.responses[callKey(target, calldata)] = output
}

func packOutputs(t *testing.T, version model.Version, method string, values ...interface{}) []byte {
	t.Helper()
	parsed, err := poolABIFor(version)
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	out, err := parsed.Methods[method].Outputs.Pack(values...)
	if err != nil {
		t.Fatalf("pack %s outputs: %v", method, err)
	}
	return out
}

func packDecimals(t *testing.T, decimals uint8) []byte {
	t.Helper()
	tokenABI, err := ERC20ABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	out, err := tokenABI.Methods["decimals"].Outputs.Pack(decimals)
	if err != nil {
		t.Fatalf("pack decimals: %v", err)
	}
	return out
}

func TestResolverProbesV3(t *testing.T) {
	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	token0 := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1 := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	v3ABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	erc20, err := ERC20ABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}

	caller := &stubCaller{}
	caller.respond(t, pool, v3ABI, "fee", packOutputs(t, model.VersionV3, "fee", big.NewInt(3000)))
	caller.respond(t, pool, v3ABI, "token0", packOutputs(t, model.VersionV3, "token0", token0))
	caller.respond(t, pool, v3ABI, "token1", packOutputs(t, model.VersionV3, "token1", token1))
	caller.respond(t, token0, erc20, "decimals", packDecimals(t, 18))
	caller.respond(t, token1, erc20, "decimals", packDecimals(t, 6))

	resolver := NewResolver(caller, nil, nil)
	meta, err := resolver.Resolve(context.Background(), pool)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if meta.Version != model.VersionV3 {
		t.Fatalf("version mismatch: %s", meta.Version)
	}
	if meta.FeeTier != 3000 {
		t.Fatalf("fee tier mismatch: %d", meta.FeeTier)
	}
	if meta.Token0 != "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" {
		t.Fatalf("token0 mismatch: %s", meta.Token0)
	}
	if meta.Decimals0 != 18 || meta.Decimals1 != 6 {
		t.Fatalf("decimals mismatch: %d %d", meta.Decimals0, meta.Decimals1)
	}
	if meta.VersionAssumed {
		t.Fatalf("probe succeeded, version should not be assumed")
	}
}

func TestResolverProbesV2(t *testing.T) {
	pool := common.HexToAddress("0x2222222222222222222222222222222222222222")
	token0 := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1 := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	v2ABI, err := V2PairABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	erc20, err := ERC20ABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}

	caller := &stubCaller{}
	caller.respond(t, pool, v2ABI, "getReserves",
		packOutputs(t, model.VersionV2, "getReserves", big.NewInt(1), big.NewInt(2), uint32(0)))
	caller.respond(t, pool, v2ABI, "token0", packOutputs(t, model.VersionV2, "token0", token0))
	caller.respond(t, pool, v2ABI, "token1", packOutputs(t, model.VersionV2, "token1", token1))
	caller.respond(t, token0, erc20, "decimals", packDecimals(t, 18))
	caller.respond(t, token1, erc20, "decimals", packDecimals(t, 18))

	resolver := NewResolver(caller, nil, nil)
	meta, err := resolver.Resolve(context.Background(), pool)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if meta.Version != model.VersionV2 {
		t.Fatalf("version mismatch: %s", meta.Version)
	}
	if meta.VersionAssumed {
		t.Fatalf("probe succeeded, version should not be assumed")
	}
}

func TestResolverAssumesV2WhenProbeFails(t *testing.T) {
	pool := common.HexToAddress("0x3333333333333333333333333333333333333333")
	token0 := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1 := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	v2ABI, err := V2PairABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}

	// Only the token reads succeed; fee and getReserves both revert, and
	// decimals lookups degrade to the default.
	caller := &stubCaller{}
	caller.respond(t, pool, v2ABI, "token0", packOutputs(t, model.VersionV2, "token0", token0))
	caller.respond(t, pool, v2ABI, "token1", packOutputs(t, model.VersionV2, "token1", token1))

	resolver := NewResolver(caller, nil, nil)
	meta, err := resolver.Resolve(context.Background(), pool)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if meta.Version != model.VersionV2 || !meta.VersionAssumed {
		t.Fatalf("expected assumed v2, got %s assumed=%v", meta.Version, meta.VersionAssumed)
	}
	if meta.Decimals0 != 18 || meta.Decimals1 != 18 {
		t.Fatalf("decimals should default to 18: %d %d", meta.Decimals0, meta.Decimals1)
	}
}

func TestResolverTokenReadFatal(t *testing.T) {
	pool := common.HexToAddress("0x4444444444444444444444444444444444444444")

	resolver := NewResolver(&stubCaller{}, nil, nil)
	_, err := resolver.ResolveWithHint(context.Background(), pool, model.VersionV2)
	if !errors.Is(err, model.ErrMetadataUnavailable) {
		t.Fatalf("expected ErrMetadataUnavailable, got %v", err)
	}
}

func TestResolverCachesMetadata(t *testing.T) {
	pool := common.HexToAddress("0x5555555555555555555555555555555555555555")
	token0 := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1 := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	v2ABI, err := V2PairABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}

	caller := &stubCaller{}
	caller.respond(t, pool, v2ABI, "token0", packOutputs(t, model.VersionV2, "token0", token0))
	caller.respond(t, pool, v2ABI, "token1", packOutputs(t, model.VersionV2, "token1", token1))

	resolver := NewResolver(caller, nil, nil)
	if _, err := resolver.ResolveWithHint(context.Background(), pool, model.VersionV2); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	afterFirst := caller.calls
	if _, err := resolver.ResolveWithHint(context.Background(), pool, model.VersionV2); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if caller.calls != afterFirst {
		t.Fatalf("cached resolve made %d extra calls", caller.calls-afterFirst)
	}
}
