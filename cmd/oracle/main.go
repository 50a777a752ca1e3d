package main

import (
	"os"

	"github.com/wonny/oracle/cmd/oracle/commands"
)

// main is the entry point for the Oracle CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/oracle [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
