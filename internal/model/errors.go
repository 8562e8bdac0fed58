package model

import "errors"

// Failure taxonomy. Per-event errors never leave the analysis loop; the
// pool-level and run-level sentinels below are the ones callers test with
// errors.Is.
var (
	// ErrMetadataUnavailable means the pool's token addresses could not be
	// resolved. Fatal for that pool's analysis only.
	ErrMetadataUnavailable = errors.New("pool metadata unavailable")

	// ErrTokenNotInPool means the token of interest is neither token0 nor
	// token1 of the pool.
	ErrTokenNotInPool = errors.New("token not in pool")

	// ErrPriceUndetermined covers ambiguous or zero-amount swaps no price
	// can be derived from.
	ErrPriceUndetermined = errors.New("price undetermined")

	// ErrOracleUnavailable means every reference-price tier failed.
	ErrOracleUnavailable = errors.New("reference price unavailable")

	// ErrNoDataFound means the whole block range produced zero swap events.
	ErrNoDataFound = errors.New("no swap events found in range")

	// ErrNoPriceableSwaps means events were found but none yielded a price,
	// which usually indicates a wrong pool/token pairing.
	ErrNoPriceableSwaps = errors.New("swap events found but none were priceable")
)
