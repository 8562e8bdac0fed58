package analyzer

import (
	"math/big"

	"priceScope/internal/model"
)

// finishSummary fills the aggregate fields once all chunks are processed.
// Extremes use the reference-currency denomination only when every point
// carries one; otherwise the whole run is compared in the base denomination
// so that oracle gaps never mix the two units within one comparison.
func finishSummary(result *model.AnalysisResult) {
	summary := &result.Summary

	useRef := len(result.Prices) > 0
	for i := range result.Prices {
		if result.Prices[i].TokenPriceRef == nil {
			useRef = false
			break
		}
	}

	for i := range result.Prices {
		point := &result.Prices[i]
		price := point.TokenPriceBase
		if useRef {
			price = point.TokenPriceRef
		}
		if price == nil {
			continue
		}
		extreme := &model.PriceExtreme{
			Price:       price,
			BlockNumber: point.BlockNumber,
			Timestamp:   point.Timestamp,
		}
		if summary.Lowest == nil || price.Cmp(summary.Lowest.Price) < 0 {
			summary.Lowest = extreme
		}
		if summary.Highest == nil || price.Cmp(summary.Highest.Price) > 0 {
			summary.Highest = extreme
		}
		summary.Latest = extreme
	}

	if summary.Latest != nil {
		summary.ChangeFromLowPct = percentChange(summary.Lowest.Price, summary.Latest.Price)
		summary.ChangeFromHighPct = percentChange(summary.Highest.Price, summary.Latest.Price)
	}

	total := new(big.Rat)
	var largest *big.Rat
	for i := range result.Trades {
		trade := &result.Trades[i]
		if !trade.Reportable() {
			continue
		}
		summary.LargeBuyCount++
		total.Add(total, trade.BaseAmount)
		if largest == nil || trade.BaseAmount.Cmp(largest) > 0 {
			largest = trade.BaseAmount
			summary.LargestBuyTx = trade.TxHash
		}
	}
	if summary.LargeBuyCount > 0 {
		summary.LargeBuyTotalBase = total
		summary.LargestBuyBase = largest
		summary.LargeBuyAvgBase = new(big.Rat).Quo(total,
			new(big.Rat).SetInt64(int64(summary.LargeBuyCount)))
	}
}

// percentChange returns (to-from)/from as a percentage. A zero reference
// yields zero rather than an infinity.
func percentChange(from, to *big.Rat) float64 {
	if from == nil || to == nil || from.Sign() == 0 {
		return 0
	}
	delta := new(big.Rat).Sub(to, from)
	delta.Quo(delta, from)
	delta.Mul(delta, big.NewRat(100, 1))
	out, _ := delta.Float64()
	return out
}
