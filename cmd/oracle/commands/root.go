package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "oracle",
	Short: "Oracle - LLM 기반 미국 시장 분석 API",
	Long: `Oracle Unified CLI

멀티 LLM 정책 기반 시장 분석 파이프라인.
분석 생성부터 저장, 조회, 배치까지.

Usage:
  go run ./cmd/oracle [command]

Examples:
  go run ./cmd/oracle api
  go run ./cmd/oracle analyze market-forecast
  go run ./cmd/oracle worker
  go run ./cmd/oracle batch`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
