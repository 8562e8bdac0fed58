package model

import "math/big"

// SkipCounts tallies why individual events contributed nothing, so a run
// can answer "why did I get fewer prices than events".
type SkipCounts struct {
	Decode   int `json:"decode"`
	Price    int `json:"price"`
	Classify int `json:"classify"`
	Oracle   int `json:"oracle"`
	Chunks   int `json:"chunks"`
}

// Total returns the number of per-event skips (failed chunks excluded).
func (s SkipCounts) Total() int {
	return s.Decode + s.Price + s.Classify + s.Oracle
}

// PriceExtreme records a price together with where it was observed.
type PriceExtreme struct {
	Price       *big.Rat
	BlockNumber uint64
	Timestamp   uint64
}

// AnalysisSummary aggregates one (token, pool, block range) run.
type AnalysisSummary struct {
	TokenAddress string
	PoolAddress  string
	FromBlock    uint64
	ToBlock      uint64

	TotalSwaps  int
	TotalPriced int

	Lowest  *PriceExtreme
	Highest *PriceExtreme
	Latest  *PriceExtreme

	// Percentage change from the extremes to the latest price.
	ChangeFromLowPct  float64
	ChangeFromHighPct float64

	LargeBuyCount     int
	LargeBuyTotalBase *big.Rat
	LargeBuyAvgBase   *big.Rat
	LargestBuyBase    *big.Rat
	LargestBuyTx      string

	Skips SkipCounts
}

// AnalysisResult is the full output of one run: the summary plus the ordered
// per-swap collections the sinks serialize.
type AnalysisResult struct {
	Summary AnalysisSummary
	Prices  []PricePoint
	Trades  []TradeClassification
}
