package model

import (
	"encoding/json"
	"math/big"
)

// Price formatting precision for serialized rationals.
const priceScale = 18

// PricePoint is one successfully priced swap. Prices are exact rationals;
// they serialize as fixed-point decimal strings.
type PricePoint struct {
	Timestamp   uint64
	BlockNumber uint64
	TxHash      string

	// TokenPriceBase is the token-of-interest price in the base asset.
	TokenPriceBase *big.Rat
	// TokenPriceRef is the same price in the reference currency, nil when
	// the oracle had no price for the block.
	TokenPriceRef *big.Rat
	// BasePriceRefMicros is the base asset price in reference-currency
	// micro-units used for the conversion, 0 when unavailable.
	BasePriceRefMicros int64

	// PriceMethod names the derivation used (swap_amounts, sqrt_price_x96,
	// amount_ratio); LowConfidence marks the V3 fallback path.
	PriceMethod   string
	LowConfidence bool

	Raw *RawAmounts
}

type pricePointJSON struct {
	Timestamp          uint64      `json:"timestamp"`
	BlockNumber        uint64      `json:"block_number"`
	TxHash             string      `json:"tx_hash"`
	TokenPriceBase     string      `json:"token_price_base"`
	TokenPriceRef      string      `json:"token_price_ref,omitempty"`
	BasePriceRefMicros int64       `json:"base_price_ref_micros,omitempty"`
	PriceMethod        string      `json:"price_method"`
	LowConfidence      bool        `json:"low_confidence,omitempty"`
	Raw                *RawAmounts `json:"raw,omitempty"`
}

// MarshalJSON encodes prices as decimal strings so no float drift leaks into
// exported data.
func (p PricePoint) MarshalJSON() ([]byte, error) {
	out := pricePointJSON{
		Timestamp:          p.Timestamp,
		BlockNumber:        p.BlockNumber,
		TxHash:             p.TxHash,
		TokenPriceBase:     FormatRat(p.TokenPriceBase),
		BasePriceRefMicros: p.BasePriceRefMicros,
		PriceMethod:        p.PriceMethod,
		LowConfidence:      p.LowConfidence,
		Raw:                p.Raw,
	}
	if p.TokenPriceRef != nil {
		out.TokenPriceRef = FormatRat(p.TokenPriceRef)
	}
	return json.Marshal(out)
}

// FormatRat renders a rational as a fixed-point decimal string. Nil renders
// as "0".
func FormatRat(value *big.Rat) string {
	if value == nil {
		return "0"
	}
	return value.FloatString(priceScale)
}
