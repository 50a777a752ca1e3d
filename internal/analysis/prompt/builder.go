package prompt

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/oracle/internal/analysis/schema"
	"github.com/wonny/oracle/internal/contracts"
)

// Params carries the per-request inputs that shape a prompt
type Params struct {
	Date    time.Time
	Tickers []string
	Window  string // e.g. "weekly" for flow-style kinds

	// RecentCloses optionally grounds the prompt with real price context,
	// keyed by ticker, most recent last.
	RecentCloses map[string][]float64
}

// Builder renders deterministic prompts for each analysis kind
// ⭐ SSOT: 프롬프트 생성은 여기서만
type Builder struct {
	registry *schema.Registry
}

// NewBuilder creates a prompt builder backed by the schema registry
func NewBuilder(registry *schema.Registry) *Builder {
	return &Builder{registry: registry}
}

// roleFrames gives each kind its analyst framing. Kept terse on purpose:
// the schema shape carries the structural instruction.
var roleFrames = map[contracts.AnalysisKind]string{
	contracts.KindMarketAnalysis: "You are a US equity market analyst. Produce a pre-market momentum analysis covering the strongest sectors, their leading themes, and the individual stocks driving them.",
	contracts.KindMarketForecast: "You are a US equity market strategist. Forecast the S&P 500 direction for the next trading session.",
	contracts.KindETFFlowsWeekly: "You are an ETF fund-flow analyst. Summarize the most significant US ETF net flows for the stated week.",
	contracts.KindInsiderTrend:   "You are an insider-transaction analyst. Summarize notable recent insider buying and selling in US equities.",
	contracts.KindLiquidity:      "You are a macro liquidity analyst. Assess current US dollar liquidity conditions from Fed balance sheet, reverse repo, and TGA dynamics.",
	contracts.KindMarketBreadth:  "You are a market internals analyst. Report current US market breadth statistics.",
	contracts.KindSignals:        "You are a technical trading analyst. Produce actionable trade signals for the given tickers.",
	contracts.KindSectorRotation: "You are a sector strategist. Describe the current US sector rotation: where capital is moving in and where it is leaving.",
}

// Build renders the full prompt text for a kind. The output is a pure
// function of its inputs so the same request always hashes identically.
func (b *Builder) Build(kind contracts.AnalysisKind, p Params) (string, error) {
	frame, ok := roleFrames[kind]
	if !ok {
		return "", contracts.ErrUnknownKind
	}

	desc, err := b.registry.Get(kind)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(frame)
	sb.WriteString("\n\n")

	sb.WriteString("Analysis date: ")
	sb.WriteString(contracts.DateOnly(p.Date).Format("2006-01-02"))
	sb.WriteString("\n")

	if p.Window != "" {
		sb.WriteString("Window: ")
		sb.WriteString(p.Window)
		sb.WriteString("\n")
	}

	if len(p.Tickers) > 0 {
		sb.WriteString("Tickers: ")
		sb.WriteString(strings.Join(p.Tickers, ", "))
		sb.WriteString("\n")
	}

	if len(p.RecentCloses) > 0 {
		sb.WriteString("\nRecent closing prices (oldest to newest):\n")
		// Iterate the ticker slice, not the map, so output order is stable
		for _, t := range p.Tickers {
			closes, ok := p.RecentCloses[t]
			if !ok || len(closes) == 0 {
				continue
			}
			sb.WriteString(fmt.Sprintf("  %s: %s\n", t, formatCloses(closes)))
		}
	}

	sb.WriteString("\nRespond with a single JSON object matching exactly this shape:\n")
	sb.WriteString(desc.Shape())
	sb.WriteString("\n\nRules:\n")
	sb.WriteString("- Output raw JSON only. No markdown fences, no commentary.\n")
	sb.WriteString("- Use the exact field names shown. Enum fields must use one of the listed values.\n")
	sb.WriteString("- All text values in English.\n")

	return sb.String(), nil
}

func formatCloses(closes []float64) string {
	parts := make([]string, len(closes))
	for i, c := range closes {
		parts[i] = fmt.Sprintf("%.2f", c)
	}
	return strings.Join(parts, ", ")
}

// Hash returns the hex sha256 of a prompt, recorded in record metadata so a
// stored analysis can be traced back to the exact prompt that produced it.
func Hash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
