package coinfolio

import (
	"fmt"
	"time"
)

// TaxReport partitions one calendar year of realized entries into gains and
// losses for a single accounting method. Entries realized under another
// method are excluded: each sell was resolved with the method chosen at the
// time of sale and cannot be reinterpreted afterwards.
type TaxReport struct {
	Year   int
	Method AccountingMethod

	Gains  []RealizedPnL // gain_loss > 0
	Losses []RealizedPnL // gain_loss <= 0

	TotalGains  Money // sum over Gains, positive
	TotalLosses Money // sum over Losses, zero or negative
	NetGainLoss Money // TotalGains + TotalLosses, exactly
}

// TaxReport builds the gain/loss report for the calendar year, keeping only
// entries whose sell was resolved with the given method.
func (tr *Tracker) TaxReport(year int, method AccountingMethod) (*TaxReport, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAccountingMethod, int(method))
	}

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 23, 59, 59, 999999999, time.UTC)
	entries, err := tr.store.Realized(RealizedFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}

	report := &TaxReport{Year: year, Method: method}
	for _, e := range entries {
		if e.Method != method {
			continue
		}
		if e.GainLoss.IsPositive() {
			report.Gains = append(report.Gains, e)
			report.TotalGains = report.TotalGains.Add(e.GainLoss)
		} else {
			report.Losses = append(report.Losses, e)
			report.TotalLosses = report.TotalLosses.Add(e.GainLoss)
		}
	}
	report.NetGainLoss = report.TotalGains.Add(report.TotalLosses)
	return report, nil
}
