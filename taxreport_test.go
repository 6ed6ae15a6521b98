package coinfolio

import (
	"errors"
	"testing"
	"time"
)

// onDate is a timestamp in an arbitrary year, for multi-year ledgers.
func onDate(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 12, 0, 0, 0, time.UTC)
}

func TestTaxReport(t *testing.T) {
	tr := setupTracker(t)
	mustRecord(t, tr, NewBuy(onDate(2025, time.March, 1), "BTC", Q(3), M(100, "AUD"), Money{}))

	// 2025: one gain. 2026: one gain and one loss.
	mustRecord(t, tr, NewSell(onDate(2025, time.June, 1), "BTC", Q(1), M(150, "AUD"), Money{}, FIFO))
	mustRecord(t, tr, NewSell(onDate(2026, time.February, 1), "BTC", Q(1), M(180, "AUD"), Money{}, FIFO))
	mustRecord(t, tr, NewSell(onDate(2026, time.August, 1), "BTC", Q(1), M(60, "AUD"), Money{}, FIFO))

	report, err := tr.TaxReport(2026, FIFO)
	if err != nil {
		t.Fatalf("TaxReport() failed: %v", err)
	}
	if report.Year != 2026 || report.Method != FIFO {
		t.Errorf("report is for %d/%s, want 2026/fifo", report.Year, report.Method)
	}
	if len(report.Gains) != 1 || len(report.Losses) != 1 {
		t.Fatalf("got %d gains and %d losses, want 1 and 1", len(report.Gains), len(report.Losses))
	}
	if !report.TotalGains.Equal(M(80, "AUD")) {
		t.Errorf("total gains %s, want 80", report.TotalGains.Decimal())
	}
	if !report.TotalLosses.Equal(M(-40, "AUD")) {
		t.Errorf("total losses %s, want -40", report.TotalLosses.Decimal())
	}
	if !report.NetGainLoss.Equal(M(40, "AUD")) {
		t.Errorf("net %s, want 40", report.NetGainLoss.Decimal())
	}
}

func TestTaxReport_ZeroGainIsALoss(t *testing.T) {
	tr := setupTracker(t)
	mustRecord(t, tr, NewBuy(onDate(2026, time.January, 1), "BTC", Q(1), M(100, "AUD"), Money{}))
	mustRecord(t, tr, NewSell(onDate(2026, time.June, 1), "BTC", Q(1), M(100, "AUD"), Money{}, FIFO))

	report, err := tr.TaxReport(2026, FIFO)
	if err != nil {
		t.Fatalf("TaxReport() failed: %v", err)
	}
	// Break-even sells land with the losses, never with the gains.
	if len(report.Gains) != 0 {
		t.Errorf("zero gain classified as gain")
	}
	if len(report.Losses) != 1 {
		t.Fatalf("got %d losses, want 1", len(report.Losses))
	}
	if !report.Losses[0].GainLoss.IsZero() {
		t.Errorf("loss entry gain/loss %s, want 0", report.Losses[0].GainLoss.Decimal())
	}
	if !report.NetGainLoss.IsZero() {
		t.Errorf("net %s, want 0", report.NetGainLoss.Decimal())
	}
}

func TestTaxReport_FiltersByMethod(t *testing.T) {
	tr := setupTracker(t)
	mustRecord(t, tr, NewBuy(onDate(2026, time.January, 1), "BTC", Q(3), M(100, "AUD"), Money{}))
	mustRecord(t, tr, NewSell(onDate(2026, time.March, 1), "BTC", Q(1), M(150, "AUD"), Money{}, FIFO))
	mustRecord(t, tr, NewSell(onDate(2026, time.April, 1), "BTC", Q(1), M(150, "AUD"), Money{}, LIFO))

	// A sell settled under lifo never shows up in the fifo report.
	report, err := tr.TaxReport(2026, FIFO)
	if err != nil {
		t.Fatalf("TaxReport() failed: %v", err)
	}
	if got := len(report.Gains) + len(report.Losses); got != 1 {
		t.Fatalf("fifo report holds %d entries, want 1", got)
	}
	if report.Gains[0].Method != FIFO {
		t.Errorf("entry method %s, want fifo", report.Gains[0].Method)
	}

	report, err = tr.TaxReport(2026, LIFO)
	if err != nil {
		t.Fatalf("TaxReport() failed: %v", err)
	}
	if got := len(report.Gains) + len(report.Losses); got != 1 {
		t.Fatalf("lifo report holds %d entries, want 1", got)
	}
}

func TestTaxReport_YearBoundaries(t *testing.T) {
	tr := setupTracker(t)
	mustRecord(t, tr, NewBuy(onDate(2025, time.January, 1), "BTC", Q(3), M(100, "AUD"), Money{}))

	// New year's eve and new year's day land in different reports.
	mustRecord(t, tr, NewSell(time.Date(2025, time.December, 31, 23, 59, 59, 0, time.UTC), "BTC", Q(1), M(150, "AUD"), Money{}, FIFO))
	mustRecord(t, tr, NewSell(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), "BTC", Q(1), M(150, "AUD"), Money{}, FIFO))

	for _, tc := range []struct {
		year int
		want int
	}{
		{2025, 1},
		{2026, 1},
		{2024, 0},
	} {
		report, err := tr.TaxReport(tc.year, FIFO)
		if err != nil {
			t.Fatalf("TaxReport(%d) failed: %v", tc.year, err)
		}
		if got := len(report.Gains) + len(report.Losses); got != tc.want {
			t.Errorf("year %d holds %d entries, want %d", tc.year, got, tc.want)
		}
	}
}

func TestTaxReport_InvalidMethod(t *testing.T) {
	tr := setupTracker(t)
	if _, err := tr.TaxReport(2026, AccountingMethod(42)); !errors.Is(err, ErrInvalidAccountingMethod) {
		t.Errorf("error = %v, want ErrInvalidAccountingMethod", err)
	}
}
