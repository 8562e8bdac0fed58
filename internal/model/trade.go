package model

import (
	"encoding/json"
	"math/big"
)

// Direction classifies which way a swap moved the token of interest.
type Direction string

const (
	DirectionBuy       Direction = "buy"
	DirectionSell      Direction = "sell"
	DirectionAmbiguous Direction = "ambiguous"
)

// TradeClassification is the per-swap large-purchase verdict.
type TradeClassification struct {
	BlockNumber uint64
	TxHash      string
	Direction   Direction

	// BaseAmount is the base-asset leg magnitude in decimal units. Zero for
	// pools that carry the reference currency directly instead of the base
	// asset.
	BaseAmount *big.Rat
	// RefAmountMicros is the trade size in reference-currency micro-units;
	// meaningful only when RefKnown is true.
	RefAmountMicros int64
	RefKnown        bool

	LargeByBase bool
	LargeByRef  bool

	// Counterpart is the address on the other side of the trade: the token
	// receiver for buys, the swap sender otherwise.
	Counterpart string
}

// Reportable reports whether the trade counts as a large purchase: a buy
// that crossed either threshold.
func (t *TradeClassification) Reportable() bool {
	return t.Direction == DirectionBuy && (t.LargeByBase || t.LargeByRef)
}

type tradeJSON struct {
	BlockNumber     uint64    `json:"block_number"`
	TxHash          string    `json:"tx_hash"`
	Direction       Direction `json:"direction"`
	BaseAmount      string    `json:"base_amount"`
	RefAmountMicros int64     `json:"ref_amount_micros"`
	RefKnown        bool      `json:"ref_known"`
	LargeByBase     bool      `json:"large_by_base"`
	LargeByRef      bool      `json:"large_by_ref"`
	Counterpart     string    `json:"counterpart"`
}

// MarshalJSON encodes the base amount as a decimal string.
func (t TradeClassification) MarshalJSON() ([]byte, error) {
	return json.Marshal(tradeJSON{
		BlockNumber:     t.BlockNumber,
		TxHash:          t.TxHash,
		Direction:       t.Direction,
		BaseAmount:      FormatRat(t.BaseAmount),
		RefAmountMicros: t.RefAmountMicros,
		RefKnown:        t.RefKnown,
		LargeByBase:     t.LargeByBase,
		LargeByRef:      t.LargeByRef,
		Counterpart:     t.Counterpart,
	})
}
