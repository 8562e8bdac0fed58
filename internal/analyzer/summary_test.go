package analyzer

import (
	"math/big"
	"testing"

	"priceScope/internal/model"
)

func TestFinishSummaryExtremes(t *testing.T) {
	result := &model.AnalysisResult{
		Prices: []model.PricePoint{
			{BlockNumber: 1, TokenPriceRef: big.NewRat(10, 1)},
			{BlockNumber: 2, TokenPriceRef: big.NewRat(2, 1)},
			{BlockNumber: 3, TokenPriceRef: big.NewRat(4, 1)},
		},
	}

	finishSummary(result)
	summary := result.Summary

	if summary.Lowest.Price.Cmp(big.NewRat(2, 1)) != 0 || summary.Lowest.BlockNumber != 2 {
		t.Fatalf("lowest mismatch: %+v", summary.Lowest)
	}
	if summary.Highest.Price.Cmp(big.NewRat(10, 1)) != 0 || summary.Highest.BlockNumber != 1 {
		t.Fatalf("highest mismatch: %+v", summary.Highest)
	}
	if summary.Latest.BlockNumber != 3 {
		t.Fatalf("latest mismatch: %+v", summary.Latest)
	}
	if summary.ChangeFromLowPct != 100 {
		t.Fatalf("change from low mismatch: %f", summary.ChangeFromLowPct)
	}
	if summary.ChangeFromHighPct != -60 {
		t.Fatalf("change from high mismatch: %f", summary.ChangeFromHighPct)
	}
}

func TestFinishSummaryPartialOracleUsesBaseThroughout(t *testing.T) {
	// Two swaps at the same real price, the second during an oracle gap.
	// The extremes must stay in one denomination: comparing 0.002 base
	// against 4 micro-units would report a fake -99.95% move.
	result := &model.AnalysisResult{
		Prices: []model.PricePoint{
			{BlockNumber: 100, TokenPriceBase: big.NewRat(1, 500), TokenPriceRef: big.NewRat(4, 1)},
			{BlockNumber: 400, TokenPriceBase: big.NewRat(1, 500)},
		},
	}

	finishSummary(result)
	summary := result.Summary

	if summary.Lowest.Price.Cmp(big.NewRat(1, 500)) != 0 {
		t.Fatalf("lowest mismatch: %s", summary.Lowest.Price.RatString())
	}
	if summary.Highest.Price.Cmp(big.NewRat(1, 500)) != 0 {
		t.Fatalf("highest mismatch: %s", summary.Highest.Price.RatString())
	}
	if summary.ChangeFromLowPct != 0 || summary.ChangeFromHighPct != 0 {
		t.Fatalf("flat price should have zero change: %f %f",
			summary.ChangeFromLowPct, summary.ChangeFromHighPct)
	}
}

func TestFinishSummaryLargeBuys(t *testing.T) {
	result := &model.AnalysisResult{
		Prices: []model.PricePoint{{BlockNumber: 1, TokenPriceBase: big.NewRat(1, 1)}},
		Trades: []model.TradeClassification{
			{TxHash: "0x01", Direction: model.DirectionBuy, BaseAmount: big.NewRat(1, 1), LargeByBase: true},
			{TxHash: "0x02", Direction: model.DirectionBuy, BaseAmount: big.NewRat(3, 1), LargeByBase: true},
			{TxHash: "0x03", Direction: model.DirectionSell, BaseAmount: big.NewRat(9, 1), LargeByBase: true},
			{TxHash: "0x04", Direction: model.DirectionBuy, BaseAmount: big.NewRat(1, 100)},
		},
	}

	finishSummary(result)
	summary := result.Summary

	if summary.LargeBuyCount != 2 {
		t.Fatalf("count mismatch: %d", summary.LargeBuyCount)
	}
	if summary.LargeBuyTotalBase.Cmp(big.NewRat(4, 1)) != 0 {
		t.Fatalf("total mismatch: %s", summary.LargeBuyTotalBase.RatString())
	}
	if summary.LargeBuyAvgBase.Cmp(big.NewRat(2, 1)) != 0 {
		t.Fatalf("avg mismatch: %s", summary.LargeBuyAvgBase.RatString())
	}
	if summary.LargestBuyBase.Cmp(big.NewRat(3, 1)) != 0 || summary.LargestBuyTx != "0x02" {
		t.Fatalf("largest mismatch: %s %s", summary.LargestBuyBase.RatString(), summary.LargestBuyTx)
	}
}
