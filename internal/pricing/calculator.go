package pricing

import (
	"fmt"
	"math/big"
	"strings"

	"priceScope/internal/model"
)

// Price derivation methods recorded on each price point.
const (
	MethodSwapAmounts = "swap_amounts"
	MethodSqrtPrice   = "sqrt_price_x96"
	MethodAmountRatio = "amount_ratio"
)

// sanityCeiling rejects sqrt-price readings that decode to absurd unit
// prices, which happens when the pool's token ordering was misjudged.
var sanityCeiling = new(big.Rat).SetInt64(10_000_000_000)

// SwapPrice is the price of one target token denominated in the pool's
// counter token, together with how it was derived.
type SwapPrice struct {
	Price         *big.Rat
	Method        string
	LowConfidence bool
}

// PriceInBase derives the unit price of token from a decoded swap against
// the pool it occurred in. The price is denominated in the pool's other
// token, adjusted to decimal units on both sides.
func PriceInBase(swap *model.DecodedSwap, meta *model.PoolMetadata, token string) (*SwapPrice, error) {
	token = strings.ToLower(token)
	if !meta.HasToken(token) {
		return nil, fmt.Errorf("token %s: %w", token, model.ErrTokenNotInPool)
	}
	targetIsToken0 := token == meta.Token0

	switch swap.Version {
	case model.VersionV2:
		return priceFromV2Legs(swap.V2, meta, targetIsToken0)
	case model.VersionV3:
		return priceFromV3(swap.V3, meta, targetIsToken0)
	default:
		return nil, fmt.Errorf("version %q: %w", swap.Version, model.ErrPriceUndetermined)
	}
}

func priceFromV2Legs(data *model.V2SwapData, meta *model.PoolMetadata, targetIsToken0 bool) (*SwapPrice, error) {
	targetIn, targetOut := data.Amount0In, data.Amount0Out
	counterIn, counterOut := data.Amount1In, data.Amount1Out
	targetDec, counterDec := meta.Decimals0, meta.Decimals1
	if !targetIsToken0 {
		targetIn, targetOut = data.Amount1In, data.Amount1Out
		counterIn, counterOut = data.Amount0In, data.Amount0Out
		targetDec, counterDec = meta.Decimals1, meta.Decimals0
	}

	// A swap moves one leg in and the opposite leg out. Whichever
	// direction carried the target token gives the exchange ratio.
	var targetAmt, counterAmt *big.Int
	switch {
	case targetIn.Sign() > 0 && counterOut.Sign() > 0:
		targetAmt, counterAmt = targetIn, counterOut
	case targetOut.Sign() > 0 && counterIn.Sign() > 0:
		targetAmt, counterAmt = targetOut, counterIn
	default:
		return nil, fmt.Errorf("no matching swap legs: %w", model.ErrPriceUndetermined)
	}

	price := new(big.Rat).Quo(ratFromUnits(counterAmt, counterDec), ratFromUnits(targetAmt, targetDec))
	return &SwapPrice{Price: price, Method: MethodSwapAmounts}, nil
}

func priceFromV3(data *model.V3SwapData, meta *model.PoolMetadata, targetIsToken0 bool) (*SwapPrice, error) {
	if price, ok := priceFromSqrtX96(data.SqrtPriceX96, meta, targetIsToken0); ok {
		return &SwapPrice{Price: price, Method: MethodSqrtPrice}, nil
	}
	return priceFromAmountRatio(data, meta, targetIsToken0)
}

func priceFromSqrtX96(sqrtPriceX96 *big.Int, meta *model.PoolMetadata, targetIsToken0 bool) (*big.Rat, bool) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return nil, false
	}
	ratio := mulPow10(rawSqrtRatio(sqrtPriceX96), int(meta.Decimals1)-int(meta.Decimals0))
	if ratio.Sign() <= 0 {
		return nil, false
	}
	price := ratio
	if !targetIsToken0 {
		price = new(big.Rat).Inv(ratio)
	}
	if price.Cmp(sanityCeiling) > 0 {
		return nil, false
	}
	return price, true
}

// priceFromAmountRatio recovers a price from the signed swap deltas when the
// sqrt-price reading was unusable. Both legs must be non-zero. The result is
// flagged low confidence since it includes fee and slippage effects.
func priceFromAmountRatio(data *model.V3SwapData, meta *model.PoolMetadata, targetIsToken0 bool) (*SwapPrice, error) {
	targetAmt, counterAmt := data.Amount0, data.Amount1
	targetDec, counterDec := meta.Decimals0, meta.Decimals1
	if !targetIsToken0 {
		targetAmt, counterAmt = data.Amount1, data.Amount0
		targetDec, counterDec = meta.Decimals1, meta.Decimals0
	}
	if targetAmt == nil || counterAmt == nil || targetAmt.Sign() == 0 || counterAmt.Sign() == 0 {
		return nil, fmt.Errorf("zero swap leg: %w", model.ErrPriceUndetermined)
	}

	target := ratFromUnits(new(big.Int).Abs(targetAmt), targetDec)
	counter := ratFromUnits(new(big.Int).Abs(counterAmt), counterDec)
	price := new(big.Rat).Quo(counter, target)
	return &SwapPrice{Price: price, Method: MethodAmountRatio, LowConfidence: true}, nil
}
