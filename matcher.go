package coinfolio

import "fmt"

// matchSell consumes open lots of sell.Symbol according to sell.Method and
// returns one realized entry per lot touched. It mutates the lots it is
// given (remaining amount, closed flag), so callers pass clones and persist
// them only on success: sufficiency is checked across all lots before any
// mutation, making the match all-or-nothing.
//
// The lots slice must contain every open lot for the symbol.
func matchSell(lots []*CostBasisLot, sell Transaction) ([]*RealizedPnL, error) {
	if !sell.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: sell amount must be positive, got %s", ErrInvalidAmount, sell.Amount)
	}
	available := openQuantity(lots)
	if available.LessThan(sell.Amount) {
		return nil, &InsufficientHoldingsError{
			Symbol:    sell.Symbol,
			Requested: sell.Amount,
			Available: available,
		}
	}

	switch sell.Method {
	case FIFO:
		sortLotsFIFO(lots)
		return consumeInOrder(lots, sell)
	case LIFO:
		sortLotsLIFO(lots)
		return consumeInOrder(lots, sell)
	case AverageCost:
		sortLotsFIFO(lots)
		return consumePool(lots, sell)
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidAccountingMethod, int(sell.Method))
	}
}

// consumeInOrder walks the pre-sorted lots and closes them front to back,
// partially consuming the final lot touched. Each entry carries a
// proportional share of the sell-side fee; the last entry takes the exact
// residual so the shares always sum to the full fee.
func consumeInOrder(lots []*CostBasisLot, sell Transaction) ([]*RealizedPnL, error) {
	var entries []*RealizedPnL
	toSell := sell.Amount
	var allocatedFee Money

	for _, lot := range lots {
		if toSell.IsZero() {
			break
		}
		if lot.Remaining.IsZero() {
			continue
		}
		matched := toSell.Min(lot.Remaining)
		toSell = toSell.Sub(matched)

		var feeShare Money
		if toSell.IsZero() {
			feeShare = sell.Fee.Sub(allocatedFee)
		} else {
			feeShare = sell.Fee.Mul(matched).Div(sell.Amount)
		}
		allocatedFee = allocatedFee.Add(feeShare)

		entries = append(entries, realize(lot, matched, lot.CostPerUnit, feeShare, sell))
		lot.consume(matched, sell.Timestamp)
	}
	return entries, nil
}

// consumePool treats all open lots as a single pool at the weighted average
// cost and reduces every lot proportionally to its share of the pool.
// The proportional shares come out of decimal division, which rounds, so
// the amounts are planned in two passes: rounded shares capped at each
// lot's remaining and at what is left to sell, then the residual of the
// sell amount spread over the lots with capacity left. The plan always
// sums to the exact sell amount and never takes a lot below zero.
func consumePool(lots []*CostBasisLot, sell Transaction) ([]*RealizedPnL, error) {
	pool := openQuantity(lots)
	avgCost := weightedAverageCost(lots)

	matched := make([]Quantity, len(lots))
	var planned Quantity
	for i, lot := range lots {
		if lot.Remaining.IsZero() {
			continue
		}
		share := lot.Remaining.Mul(sell.Amount).Div(pool)
		matched[i] = share.Min(lot.Remaining).Min(sell.Amount.Sub(planned))
		planned = planned.Add(matched[i])
	}
	for i, lot := range lots {
		residual := sell.Amount.Sub(planned)
		if residual.IsZero() {
			break
		}
		extra := residual.Min(lot.Remaining.Sub(matched[i]))
		matched[i] = matched[i].Add(extra)
		planned = planned.Add(extra)
	}

	var entries []*RealizedPnL
	var allocatedFee Money
	toSell := sell.Amount

	for i, lot := range lots {
		if matched[i].IsZero() {
			continue
		}
		toSell = toSell.Sub(matched[i])

		var feeShare Money
		if toSell.IsZero() {
			feeShare = sell.Fee.Sub(allocatedFee)
		} else {
			feeShare = sell.Fee.Mul(matched[i]).Div(sell.Amount)
		}
		allocatedFee = allocatedFee.Add(feeShare)

		entries = append(entries, realize(lot, matched[i], avgCost, feeShare, sell))
		lot.consume(matched[i], sell.Timestamp)
	}
	return entries, nil
}

// realize builds the realized entry for matching `matched` units of a lot
// at the given effective cost per unit.
func realize(lot *CostBasisLot, matched Quantity, costPerUnit, feeShare Money, sell Transaction) *RealizedPnL {
	costBasis := costPerUnit.Mul(matched)
	saleValue := sell.Price.Mul(matched)
	return &RealizedPnL{
		SellTransactionID: sell.ID,
		LotID:             lot.ID,
		Symbol:            sell.Symbol,
		Amount:            matched,
		CostBasis:         costBasis,
		SalePrice:         sell.Price,
		SaleValue:         saleValue,
		GainLoss:          saleValue.Sub(feeShare).Sub(costBasis),
		Method:            sell.Method,
		SaleDate:          sell.Timestamp,
	}
}
