package coinfolio

import (
	"errors"
	"testing"
)

func TestUnrealizedPnL(t *testing.T) {
	tr := setupTracker(t)
	// 2 units, $100 each, $10 fee: basis 210.
	mustRecord(t, tr, NewBuy(day(1), "BTC", Q(2), M(100, "AUD"), M(10, "AUD")))

	position, err := tr.UnrealizedPnL("BTC", M(150, "AUD"))
	if err != nil {
		t.Fatalf("UnrealizedPnL() failed: %v", err)
	}
	if !position.Amount.Equal(Q(2)) {
		t.Errorf("amount %s, want 2", position.Amount)
	}
	if !position.CostBasis.Equal(M(210, "AUD")) {
		t.Errorf("cost basis %s, want 210", position.CostBasis.Decimal())
	}
	if !position.AvgCostBasis.Equal(M(105, "AUD")) {
		t.Errorf("avg cost %s, want 105", position.AvgCostBasis.Decimal())
	}
	if !position.CurrentValue.Equal(M(300, "AUD")) {
		t.Errorf("value %s, want 300", position.CurrentValue.Decimal())
	}
	if !position.GainLoss.Equal(M(90, "AUD")) {
		t.Errorf("gain/loss %s, want 90", position.GainLoss.Decimal())
	}
	if !position.GainLossPct.Equal(Percent(90.0 / 210.0 * 100)) {
		t.Errorf("gain/loss pct %s, want %.4f", position.GainLossPct, 90.0/210.0*100)
	}
	if position.NoBasis {
		t.Error("NoBasis set on a position with cost basis")
	}
}

func TestUnrealizedPnL_UnknownSymbol(t *testing.T) {
	tr := setupTracker(t)
	_, err := tr.UnrealizedPnL("DOGE", M(1, "AUD"))
	if !errors.Is(err, ErrUnknownSymbol) {
		t.Errorf("error = %v, want ErrUnknownSymbol", err)
	}
}

func TestUnrealizedPnL_SoldOut(t *testing.T) {
	tr := setupTracker(t)
	mustRecord(t, tr, NewBuy(day(1), "BTC", Q(1), M(100, "AUD"), Money{}))
	mustRecord(t, tr, NewSell(day(2), "BTC", Q(1), M(150, "AUD"), Money{}, FIFO))

	// A sold out symbol still answers, with an empty position.
	position, err := tr.UnrealizedPnL("BTC", M(200, "AUD"))
	if err != nil {
		t.Fatalf("UnrealizedPnL() failed: %v", err)
	}
	if !position.Amount.IsZero() {
		t.Errorf("amount %s, want 0", position.Amount)
	}
	if !position.NoBasis {
		t.Error("NoBasis should be set when nothing is held")
	}
	if !position.GainLossPct.Equal(0) {
		t.Errorf("gain/loss pct %s, want 0", position.GainLossPct)
	}
}

func TestRealizedPnL_CountsDistinctSells(t *testing.T) {
	tr := setupTracker(t)
	mustRecord(t, tr, NewBuy(day(1), "BTC", Q(1), M(100, "AUD"), Money{}))
	mustRecord(t, tr, NewBuy(day(2), "BTC", Q(1), M(200, "AUD"), Money{}))
	// One sell spanning both lots produces two entries but one trade.
	mustRecord(t, tr, NewSell(day(3), "BTC", Q(2), M(300, "AUD"), Money{}, FIFO))

	summary, err := tr.RealizedPnL(RealizedFilter{Symbol: "BTC"})
	if err != nil {
		t.Fatalf("RealizedPnL() failed: %v", err)
	}
	if summary.TradeCount != 1 {
		t.Errorf("trade count %d, want 1", summary.TradeCount)
	}
	// (300-100) + (300-200) = 300
	if !summary.TotalGainLoss.Equal(M(300, "AUD")) {
		t.Errorf("total gain/loss %s, want 300", summary.TotalGainLoss.Decimal())
	}
}

func TestRealizedPnL_Filter(t *testing.T) {
	tr := setupTracker(t)
	mustRecord(t, tr, NewBuy(day(1), "BTC", Q(2), M(100, "AUD"), Money{}))
	mustRecord(t, tr, NewBuy(day(1), "ETH", Q(2), M(10, "AUD"), Money{}))
	mustRecord(t, tr, NewSell(day(5), "BTC", Q(1), M(150, "AUD"), Money{}, FIFO))
	mustRecord(t, tr, NewSell(day(20), "ETH", Q(1), M(15, "AUD"), Money{}, FIFO))

	testCases := []struct {
		name      string
		filter    RealizedFilter
		wantCount int
		wantTotal float64
	}{
		{"all", RealizedFilter{}, 2, 55},
		{"by symbol", RealizedFilter{Symbol: "BTC"}, 1, 50},
		{"by range", RealizedFilter{From: day(10), To: day(30)}, 1, 5},
		{"empty range", RealizedFilter{From: day(25)}, 0, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			summary, err := tr.RealizedPnL(tc.filter)
			if err != nil {
				t.Fatalf("RealizedPnL() failed: %v", err)
			}
			if summary.TradeCount != tc.wantCount {
				t.Errorf("trade count %d, want %d", summary.TradeCount, tc.wantCount)
			}
			if !summary.TotalGainLoss.Decimal().Equal(Q(tc.wantTotal).value) {
				t.Errorf("total %s, want %v", summary.TotalGainLoss.Decimal(), tc.wantTotal)
			}
		})
	}
}

func TestPortfolioSummary_PartialPrices(t *testing.T) {
	tr := setupTracker(t)
	mustRecord(t, tr, NewBuy(day(1), "BTC", Q(1), M(100, "AUD"), Money{}))
	mustRecord(t, tr, NewBuy(day(2), "ETH", Q(10), M(10, "AUD"), Money{}))
	mustRecord(t, tr, NewSell(day(3), "BTC", Q(0.5), M(200, "AUD"), Money{}, FIFO))

	// Only BTC priced: ETH must be flagged, not failed.
	summary, err := tr.PortfolioSummary(map[string]Money{"BTC": M(200, "AUD")})
	if err != nil {
		t.Fatalf("PortfolioSummary() failed: %v", err)
	}
	if len(summary.Positions) != 1 || summary.Positions[0].Symbol != "BTC" {
		t.Fatalf("positions = %v, want only BTC", summary.Positions)
	}
	if len(summary.FailedSymbols) != 1 || summary.FailedSymbols[0] != "ETH" {
		t.Errorf("failed symbols = %v, want [ETH]", summary.FailedSymbols)
	}

	// Totals cover the priced position only.
	if !summary.TotalCostBasis.Equal(M(50, "AUD")) {
		t.Errorf("total cost basis %s, want 50", summary.TotalCostBasis.Decimal())
	}
	if !summary.TotalCurrentValue.Equal(M(100, "AUD")) {
		t.Errorf("total value %s, want 100", summary.TotalCurrentValue.Decimal())
	}
	if !summary.TotalUnrealized.Equal(M(50, "AUD")) {
		t.Errorf("total unrealized %s, want 50", summary.TotalUnrealized.Decimal())
	}
	// Realized covers the whole ledger: 0.5 sold at 200 against basis 100.
	if !summary.TotalRealized.Equal(M(50, "AUD")) {
		t.Errorf("total realized %s, want 50", summary.TotalRealized.Decimal())
	}
	if !summary.TotalGainLoss.Equal(M(100, "AUD")) {
		t.Errorf("total gain/loss %s, want 100", summary.TotalGainLoss.Decimal())
	}
	if summary.TotalRealizedCount != 1 {
		t.Errorf("realized count %d, want 1", summary.TotalRealizedCount)
	}
}

func TestPortfolioSummary_SortedPositions(t *testing.T) {
	tr := setupTracker(t)
	mustRecord(t, tr, NewBuy(day(1), "SOL", Q(1), M(100, "AUD"), Money{}))
	mustRecord(t, tr, NewBuy(day(1), "BTC", Q(1), M(100, "AUD"), Money{}))
	mustRecord(t, tr, NewBuy(day(1), "ETH", Q(1), M(100, "AUD"), Money{}))

	prices := map[string]Money{
		"BTC": M(1, "AUD"), "ETH": M(1, "AUD"), "SOL": M(1, "AUD"),
	}
	summary, err := tr.PortfolioSummary(prices)
	if err != nil {
		t.Fatalf("PortfolioSummary() failed: %v", err)
	}
	want := []string{"BTC", "ETH", "SOL"}
	for i, p := range summary.Positions {
		if p.Symbol != want[i] {
			t.Errorf("position %d is %s, want %s", i, p.Symbol, want[i])
		}
	}
}
