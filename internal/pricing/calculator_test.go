package pricing

import (
	"errors"
	"math/big"
	"testing"

	"priceScope/internal/model"
)

const (
	tokenA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	tokenB = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func testMeta(version model.Version, decimals0, decimals1 uint8) *model.PoolMetadata {
	return &model.PoolMetadata{
		Address:   "0x1111111111111111111111111111111111111111",
		Version:   version,
		Token0:    tokenA,
		Token1:    tokenB,
		Decimals0: decimals0,
		Decimals1: decimals1,
	}
}

func TestPriceInBaseV2Legs(t *testing.T) {
	meta := testMeta(model.VersionV2, 18, 6)
	swap := &model.DecodedSwap{
		Version: model.VersionV2,
		V2: &model.V2SwapData{
			Amount0In:  new(big.Int).Mul(big.NewInt(1), pow10(18)),
			Amount1In:  big.NewInt(0),
			Amount0Out: big.NewInt(0),
			Amount1Out: new(big.Int).Mul(big.NewInt(2), pow10(6)),
		},
	}

	price, err := PriceInBase(swap, meta, tokenA)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price.Method != MethodSwapAmounts || price.LowConfidence {
		t.Fatalf("unexpected derivation: %+v", price)
	}
	if price.Price.Cmp(big.NewRat(2, 1)) != 0 {
		t.Fatalf("price mismatch: %s", price.Price.RatString())
	}

	// The counter token's price is the exact reciprocal.
	inverse, err := PriceInBase(swap, meta, tokenB)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if inverse.Price.Cmp(big.NewRat(1, 2)) != 0 {
		t.Fatalf("inverse price mismatch: %s", inverse.Price.RatString())
	}
}

func TestPriceInBaseV2OppositeDirection(t *testing.T) {
	meta := testMeta(model.VersionV2, 18, 18)
	swap := &model.DecodedSwap{
		Version: model.VersionV2,
		V2: &model.V2SwapData{
			Amount0In:  big.NewInt(0),
			Amount1In:  new(big.Int).Mul(big.NewInt(5), pow10(18)),
			Amount0Out: new(big.Int).Mul(big.NewInt(10), pow10(18)),
			Amount1Out: big.NewInt(0),
		},
	}

	price, err := PriceInBase(swap, meta, tokenA)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price.Price.Cmp(big.NewRat(1, 2)) != 0 {
		t.Fatalf("price mismatch: %s", price.Price.RatString())
	}
}

func TestPriceInBaseV2NoLegs(t *testing.T) {
	meta := testMeta(model.VersionV2, 18, 18)
	swap := &model.DecodedSwap{
		Version: model.VersionV2,
		V2: &model.V2SwapData{
			Amount0In:  big.NewInt(0),
			Amount1In:  big.NewInt(0),
			Amount0Out: big.NewInt(0),
			Amount1Out: big.NewInt(0),
		},
	}

	if _, err := PriceInBase(swap, meta, tokenA); !errors.Is(err, model.ErrPriceUndetermined) {
		t.Fatalf("expected ErrPriceUndetermined, got %v", err)
	}
}

func TestPriceInBaseV3SqrtPrice(t *testing.T) {
	meta := testMeta(model.VersionV3, 18, 18)
	// sqrtPriceX96 = 2 * 2^96, so the raw ratio is exactly 4.
	sqrt := new(big.Int).Lsh(big.NewInt(2), 96)
	swap := &model.DecodedSwap{
		Version: model.VersionV3,
		V3: &model.V3SwapData{
			Amount0:      big.NewInt(-1),
			Amount1:      big.NewInt(4),
			SqrtPriceX96: sqrt,
		},
	}

	price, err := PriceInBase(swap, meta, tokenA)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price.Method != MethodSqrtPrice {
		t.Fatalf("method mismatch: %s", price.Method)
	}
	if price.Price.Cmp(big.NewRat(4, 1)) != 0 {
		t.Fatalf("price mismatch: %s", price.Price.RatString())
	}

	inverse, err := PriceInBase(swap, meta, tokenB)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if inverse.Price.Cmp(big.NewRat(1, 4)) != 0 {
		t.Fatalf("inverse price mismatch: %s", inverse.Price.RatString())
	}
}

func TestPriceInBaseV3DecimalAdjustment(t *testing.T) {
	// Six against eighteen decimals shifts the ratio by 10^12.
	meta := testMeta(model.VersionV3, 6, 18)
	sqrt := new(big.Int).Lsh(big.NewInt(1), 96)
	swap := &model.DecodedSwap{
		Version: model.VersionV3,
		V3: &model.V3SwapData{
			Amount0:      big.NewInt(-1),
			Amount1:      big.NewInt(1),
			SqrtPriceX96: sqrt,
		},
	}

	price, err := PriceInBase(swap, meta, tokenB)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	want := new(big.Rat).SetFrac(big.NewInt(1), pow10(12))
	if price.Price.Cmp(want) != 0 {
		t.Fatalf("price mismatch: %s != %s", price.Price.RatString(), want.RatString())
	}
}

func TestPriceInBaseV3SanityCeilingFallsBack(t *testing.T) {
	// Same reading for token0 decodes to 10^12, beyond plausible, so the
	// amount ratio takes over at low confidence.
	meta := testMeta(model.VersionV3, 6, 18)
	sqrt := new(big.Int).Lsh(big.NewInt(1), 96)
	swap := &model.DecodedSwap{
		Version: model.VersionV3,
		V3: &model.V3SwapData{
			Amount0:      new(big.Int).Neg(pow10(6)),
			Amount1:      new(big.Int).Mul(big.NewInt(3), pow10(18)),
			SqrtPriceX96: sqrt,
		},
	}

	price, err := PriceInBase(swap, meta, tokenA)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price.Method != MethodAmountRatio || !price.LowConfidence {
		t.Fatalf("expected low-confidence amount ratio, got %+v", price)
	}
	if price.Price.Cmp(big.NewRat(3, 1)) != 0 {
		t.Fatalf("price mismatch: %s", price.Price.RatString())
	}
}

func TestPriceInBaseV3ZeroSqrtAndZeroLeg(t *testing.T) {
	meta := testMeta(model.VersionV3, 18, 18)
	swap := &model.DecodedSwap{
		Version: model.VersionV3,
		V3: &model.V3SwapData{
			Amount0:      big.NewInt(0),
			Amount1:      big.NewInt(100),
			SqrtPriceX96: big.NewInt(0),
		},
	}

	if _, err := PriceInBase(swap, meta, tokenA); !errors.Is(err, model.ErrPriceUndetermined) {
		t.Fatalf("expected ErrPriceUndetermined, got %v", err)
	}
}

func TestPriceInBaseTokenNotInPool(t *testing.T) {
	meta := testMeta(model.VersionV2, 18, 18)
	swap := &model.DecodedSwap{Version: model.VersionV2, V2: &model.V2SwapData{}}

	_, err := PriceInBase(swap, meta, "0xcccccccccccccccccccccccccccccccccccccccc")
	if !errors.Is(err, model.ErrTokenNotInPool) {
		t.Fatalf("expected ErrTokenNotInPool, got %v", err)
	}
}
