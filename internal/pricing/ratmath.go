package pricing

import "math/big"

var q192 = new(big.Int).Lsh(big.NewInt(1), 192)

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// ratFromUnits converts a raw token amount into decimal units.
func ratFromUnits(amount *big.Int, decimals uint8) *big.Rat {
	return new(big.Rat).SetFrac(new(big.Int).Set(amount), pow10(int(decimals)))
}

// mulPow10 returns value * 10^exp; exp may be negative.
func mulPow10(value *big.Rat, exp int) *big.Rat {
	out := new(big.Rat).Set(value)
	if exp >= 0 {
		return out.Mul(out, new(big.Rat).SetInt(pow10(exp)))
	}
	return out.Quo(out, new(big.Rat).SetInt(pow10(-exp)))
}

// rawSqrtRatio returns (sqrtPriceX96 / 2^96)^2 as an exact rational: the
// raw token1-per-token0 exchange rate.
func rawSqrtRatio(sqrtPriceX96 *big.Int) *big.Rat {
	squared := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	return new(big.Rat).SetFrac(squared, q192)
}
