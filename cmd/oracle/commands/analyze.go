package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/oracle/internal/analysis"
	"github.com/wonny/oracle/internal/analysis/store"
	"github.com/wonny/oracle/internal/contracts"
	"github.com/wonny/oracle/pkg/config"
	"github.com/wonny/oracle/pkg/database"
	"github.com/wonny/oracle/pkg/logger"
)

// analyzeCmd runs one analysis from the command line
var analyzeCmd = &cobra.Command{
	Use:   "analyze [kind]",
	Short: "단일 분석 실행",
	Long: `하나의 분석을 즉시 실행하고 저장합니다.

Kinds:
  market-analysis, market-forecast, etf-flows, insider-trend,
  liquidity, market-breadth, signals, sector-rotation

Example:
  go run ./cmd/oracle analyze market-forecast
  go run ./cmd/oracle analyze signals --tickers QQQ,NVDA --policy HYBRID
  go run ./cmd/oracle analyze etf-flows --date 2025-01-15 --window weekly`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var (
	analyzeDate    string
	analyzeTickers []string
	analyzeWindow  string
	analyzePolicy  string
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeDate, "date", "", "분석 날짜 YYYY-MM-DD (기본값: 오늘)")
	analyzeCmd.Flags().StringSliceVar(&analyzeTickers, "tickers", nil, "대상 티커 목록")
	analyzeCmd.Flags().StringVar(&analyzeWindow, "window", "", "분석 기간 (예: weekly)")
	analyzeCmd.Flags().StringVar(&analyzePolicy, "policy", "", "LLM 정책 (SINGLE|FALLBACK|BOTH|HYBRID|AUTO)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	kind, err := contracts.ParseAnalysisKind(args[0])
	if err != nil {
		return fmt.Errorf("unknown analysis kind %q", args[0])
	}

	policy, err := contracts.ParseLLMPolicy(analyzePolicy)
	if err != nil {
		return fmt.Errorf("unknown policy %q", analyzePolicy)
	}

	date := time.Now().UTC()
	if analyzeDate != "" {
		date, err = time.Parse("2006-01-02", analyzeDate)
		if err != nil {
			return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	svc, _, err := buildPipeline(cmd.Context(), cfg, log, store.NewPostgresStore(db, log), nil)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	fmt.Printf("Running %s for %s...\n", kind, contracts.DateOnly(date).Format("2006-01-02"))

	records, err := svc.Create(cmd.Context(), analysis.CreateRequest{
		Kind:    kind,
		Date:    date,
		Tickers: analyzeTickers,
		Window:  analyzeWindow,
		Policy:  policy,
	})
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	for _, rec := range records {
		pretty, _ := json.MarshalIndent(rec.Value, "", "  ")
		fmt.Printf("\n✅ record %d (%s)\n%s\n", rec.ID, rec.Name, pretty)
	}
	return nil
}
