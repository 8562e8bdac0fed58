package model

import "math/big"

// DecodedSwap is a version-tagged decoded Swap event. Exactly one of V2/V3
// is non-nil, matching Version.
type DecodedSwap struct {
	Version Version
	V2      *V2SwapData
	V3      *V3SwapData
}

// V2SwapData holds the constant-product swap payload: four gross amounts in
// raw token units, all unsigned.
type V2SwapData struct {
	Sender     string
	Recipient  string
	Amount0In  *big.Int
	Amount1In  *big.Int
	Amount0Out *big.Int
	Amount1Out *big.Int
}

// V3SwapData holds the concentrated-liquidity swap payload. Amount0 and
// Amount1 are signed pool deltas: positive means the asset entered the pool.
type V3SwapData struct {
	Sender       string
	Recipient    string
	Amount0      *big.Int
	Amount1      *big.Int
	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
	Tick         int32
}

// SwapSender returns the swap initiator regardless of version.
func (s *DecodedSwap) SwapSender() string {
	switch s.Version {
	case VersionV2:
		return s.V2.Sender
	case VersionV3:
		return s.V3.Sender
	}
	return ""
}

// SwapRecipient returns the swap output receiver regardless of version.
func (s *DecodedSwap) SwapRecipient() string {
	switch s.Version {
	case VersionV2:
		return s.V2.Recipient
	case VersionV3:
		return s.V3.Recipient
	}
	return ""
}

// RawAmounts is the version-agnostic raw-amount snapshot carried on a price
// point for traceability. V2 fills the In/Out fields, V3 the signed deltas.
type RawAmounts struct {
	Amount0In  string `json:"amount0_in,omitempty"`
	Amount1In  string `json:"amount1_in,omitempty"`
	Amount0Out string `json:"amount0_out,omitempty"`
	Amount1Out string `json:"amount1_out,omitempty"`
	Amount0    string `json:"amount0,omitempty"`
	Amount1    string `json:"amount1,omitempty"`
}

// Raw snapshots the swap's raw amounts for storage.
func (s *DecodedSwap) Raw() *RawAmounts {
	switch s.Version {
	case VersionV2:
		return &RawAmounts{
			Amount0In:  s.V2.Amount0In.String(),
			Amount1In:  s.V2.Amount1In.String(),
			Amount0Out: s.V2.Amount0Out.String(),
			Amount1Out: s.V2.Amount1Out.String(),
		}
	case VersionV3:
		return &RawAmounts{
			Amount0: s.V3.Amount0.String(),
			Amount1: s.V3.Amount1.String(),
		}
	}
	return nil
}
