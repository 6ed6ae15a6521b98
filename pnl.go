package coinfolio

import (
	"context"
	"fmt"
	"log"
	"sort"
)

// UnrealizedPnL is the paper gain or loss on the open lots of one symbol.
type UnrealizedPnL struct {
	Symbol       string
	Amount       Quantity // total currently held, derived from lot remainders
	AvgCostBasis Money    // weighted average cost per unit
	CostBasis    Money    // total cost basis of open lots
	CurrentPrice Money
	CurrentValue Money
	GainLoss     Money
	GainLossPct  Percent
	// NoBasis is set when the cost basis total is zero; GainLossPct is
	// reported as 0 instead of dividing by zero.
	NoBasis bool
}

// RealizedSummary aggregates realized entries over a filter.
type RealizedSummary struct {
	TotalGainLoss Money
	// TradeCount counts distinct sell transactions, not entries: one sell
	// may span several lots.
	TradeCount int
}

// PortfolioSummary combines unrealized valuation of every open position
// with realized gains over the whole history.
type PortfolioSummary struct {
	Positions []UnrealizedPnL // sorted by symbol
	// FailedSymbols lists open symbols whose price lookup failed; their
	// positions are missing from the totals instead of failing the call.
	FailedSymbols []string

	TotalCostBasis     Money
	TotalCurrentValue  Money
	TotalUnrealized    Money
	TotalRealized      Money
	TotalGainLoss      Money // TotalUnrealized + TotalRealized
	TotalReturnPct     Percent
	TotalRealizedCount int
}

// UnrealizedPnL values the open lots of symbol at the given price.
// A symbol that was never traded is an error; a fully sold out symbol
// returns a zero position with NoBasis set.
func (tr *Tracker) UnrealizedPnL(symbol string, price Money) (UnrealizedPnL, error) {
	all, err := tr.store.Lots(symbol)
	if err != nil {
		return UnrealizedPnL{}, err
	}
	if len(all) == 0 {
		return UnrealizedPnL{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	open, err := tr.store.OpenLots(symbol)
	if err != nil {
		return UnrealizedPnL{}, err
	}
	return valuePosition(symbol, open, price), nil
}

func valuePosition(symbol string, open []*CostBasisLot, price Money) UnrealizedPnL {
	u := UnrealizedPnL{
		Symbol:       symbol,
		Amount:       openQuantity(open),
		CostBasis:    openCostBasis(open),
		CurrentPrice: price,
	}
	u.CurrentValue = price.Mul(u.Amount)
	u.GainLoss = u.CurrentValue.Sub(u.CostBasis)
	if u.CostBasis.IsPositive() {
		u.AvgCostBasis = u.CostBasis.Div(u.Amount)
		u.GainLossPct = Percent(u.GainLoss.Decimal().Div(u.CostBasis.Decimal()).InexactFloat64() * 100)
	} else {
		u.NoBasis = true
	}
	return u
}

// RealizedPnL sums realized gain/loss entries matching the filter.
func (tr *Tracker) RealizedPnL(f RealizedFilter) (RealizedSummary, error) {
	entries, err := tr.store.Realized(f)
	if err != nil {
		return RealizedSummary{}, err
	}
	var summary RealizedSummary
	sells := make(map[int64]bool)
	for _, e := range entries {
		summary.TotalGainLoss = summary.TotalGainLoss.Add(e.GainLoss)
		sells[e.SellTransactionID] = true
	}
	summary.TradeCount = len(sells)
	return summary, nil
}

// PortfolioSummary values every open position with the supplied prices.
// Symbols missing from the map are flagged in FailedSymbols and left out of
// the totals; the summary never fails because one price lookup did.
func (tr *Tracker) PortfolioSummary(prices map[string]Money) (*PortfolioSummary, error) {
	symbols, err := tr.store.OpenSymbols()
	if err != nil {
		return nil, err
	}

	summary := &PortfolioSummary{}
	for _, symbol := range symbols {
		price, ok := prices[symbol]
		if !ok {
			summary.FailedSymbols = append(summary.FailedSymbols, symbol)
			continue
		}
		open, err := tr.store.OpenLots(symbol)
		if err != nil {
			return nil, err
		}
		pos := valuePosition(symbol, open, price)
		summary.Positions = append(summary.Positions, pos)
		summary.TotalCostBasis = summary.TotalCostBasis.Add(pos.CostBasis)
		summary.TotalCurrentValue = summary.TotalCurrentValue.Add(pos.CurrentValue)
		summary.TotalUnrealized = summary.TotalUnrealized.Add(pos.GainLoss)
	}
	sort.Slice(summary.Positions, func(i, j int) bool {
		return summary.Positions[i].Symbol < summary.Positions[j].Symbol
	})

	realized, err := tr.RealizedPnL(RealizedFilter{})
	if err != nil {
		return nil, err
	}
	summary.TotalRealized = realized.TotalGainLoss
	summary.TotalRealizedCount = realized.TradeCount
	summary.TotalGainLoss = summary.TotalUnrealized.Add(summary.TotalRealized)
	if summary.TotalCostBasis.IsPositive() {
		summary.TotalReturnPct = Percent(summary.TotalGainLoss.Decimal().
			Div(summary.TotalCostBasis.Decimal()).InexactFloat64() * 100)
	}
	return summary, nil
}

// PortfolioSummaryLive fetches current prices from the oracle and builds
// the portfolio summary. The fetch happens outside any lot lock; an oracle
// failure degrades to a summary with every open symbol flagged.
func (tr *Tracker) PortfolioSummaryLive(ctx context.Context, oracle PriceOracle) (*PortfolioSummary, error) {
	symbols, err := tr.store.OpenSymbols()
	if err != nil {
		return nil, err
	}
	prices, err := oracle.CurrentPrices(ctx, symbols)
	if err != nil {
		log.Printf("price fetch degraded to partial results: %v", err)
	}
	return tr.PortfolioSummary(prices)
}
