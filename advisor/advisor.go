// Package advisor reviews a portfolio with a Gemini model. It turns the
// tracker's summaries into a markdown briefing, sends it to the model and
// returns the model's commentary.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/marache/coinfolio"
)

const systemPrompt = `You are a cryptocurrency portfolio accountant.
You are given a snapshot of the user's holdings, cost basis, realized and
unrealized profit and loss. Comment on concentration, on the gap between
cost basis and current value, and on the realized tax position. Be factual
and concise. You are not giving financial advice.`

// Advisor is a chat with the reviewing model.
type Advisor struct {
	ModelName string
	Config    *genai.GenerateContentConfig
	chat      *genai.Chat
}

// New returns an advisor with the default model.
func New() *Advisor {
	return &Advisor{
		ModelName: "gemini-2.5-flash",
		Config: &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: systemPrompt}},
			},
		},
	}
}

// Start opens the chat session. The client carries the API key, typically
// from the GEMINI_API_KEY environment variable.
func (a *Advisor) Start(ctx context.Context, client *genai.Client) error {
	chat, err := client.Chats.Create(ctx, a.ModelName, a.Config, nil)
	if err != nil {
		return err
	}
	a.chat = chat
	return nil
}

// Review sends the portfolio snapshot and, when given, a tax report to the
// model and returns its commentary as markdown.
func (a *Advisor) Review(ctx context.Context, summary *coinfolio.PortfolioSummary, report *coinfolio.TaxReport) (string, error) {
	return a.Ask(ctx, briefing(summary, report))
}

// Ask sends one free-form question in the current session.
func (a *Advisor) Ask(ctx context.Context, question string) (string, error) {
	resp, err := a.chat.Send(ctx, &genai.Part{Text: question})
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from advisor model %s", a.ModelName)
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

// briefing renders the snapshot the model reviews.
func briefing(summary *coinfolio.PortfolioSummary, report *coinfolio.TaxReport) string {
	var b strings.Builder
	b.WriteString("# Portfolio snapshot\n\n")
	b.WriteString("| Symbol | Amount | Cost Basis | Value | Unrealized |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, p := range summary.Positions {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			p.Symbol, p.Amount, p.CostBasis, p.CurrentValue, p.GainLoss.SignedString())
	}
	fmt.Fprintf(&b, "\nTotal cost basis: %s\n", summary.TotalCostBasis)
	fmt.Fprintf(&b, "Total value: %s\n", summary.TotalCurrentValue)
	fmt.Fprintf(&b, "Unrealized: %s\n", summary.TotalUnrealized.SignedString())
	fmt.Fprintf(&b, "Realized: %s over %d sells\n", summary.TotalRealized.SignedString(), summary.TotalRealizedCount)
	fmt.Fprintf(&b, "Overall return: %s\n", summary.TotalReturnPct.SignedString())
	if len(summary.FailedSymbols) > 0 {
		fmt.Fprintf(&b, "\nNo price available for: %s\n", strings.Join(summary.FailedSymbols, ", "))
	}

	if report != nil {
		fmt.Fprintf(&b, "\n# Tax year %d (%s)\n\n", report.Year, report.Method)
		fmt.Fprintf(&b, "Gains: %s over %d events\n", report.TotalGains, len(report.Gains))
		fmt.Fprintf(&b, "Losses: %s over %d events\n", report.TotalLosses, len(report.Losses))
		fmt.Fprintf(&b, "Net: %s\n", report.NetGainLoss.SignedString())
	}
	return b.String()
}
