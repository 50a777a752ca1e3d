package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/oracle/internal/batch"
	"github.com/wonny/oracle/pkg/config"
	"github.com/wonny/oracle/pkg/database"
	"github.com/wonny/oracle/pkg/logger"
	"github.com/wonny/oracle/pkg/redis"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "시스템 상태 확인",
	Long: `데이터베이스, Redis, 잡 큐의 상태를 확인합니다.

표시 정보:
- Database: 연결 상태
- Redis: 활성화 여부
- Queue: 대기 중인 잡 수
- Providers: 설정된 LLM 공급자

Example:
  go run ./cmd/oracle status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Oracle System Status ===")
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	fmt.Println("📊 Database")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	db, err := database.New(cfg)
	if err != nil {
		fmt.Printf("%-15s %s\n", "Status:", "❌ unreachable")
		fmt.Printf("%-15s %v\n", "Error:", err)
	} else {
		defer db.Close()
		if health, err := db.HealthCheck(cmd.Context()); err != nil {
			fmt.Printf("%-15s %s\n", "Status:", "❌ unhealthy")
			fmt.Printf("%-15s %v\n", "Error:", err)
		} else {
			fmt.Printf("%-15s %s\n", "Status:", "✅ connected")
			fmt.Printf("%-15s %v\n", "Response:", health.ResponseTime)
			fmt.Printf("%-15s %d/%d\n", "Connections:", health.Stats.TotalConns, health.Stats.MaxConns)
		}
	}
	fmt.Println()

	fmt.Println("📮 Redis / Queue")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	redisClient, err := redis.New(cfg)
	if err != nil {
		fmt.Printf("%-15s %s\n", "Status:", "❌ unreachable")
		fmt.Printf("%-15s %v\n", "Error:", err)
	} else {
		defer redisClient.Close()
		if !redisClient.Enabled() {
			fmt.Printf("%-15s %s\n", "Status:", "⚠️  disabled (REDIS_ENABLED=false)")
		} else {
			fmt.Printf("%-15s %s\n", "Status:", "✅ connected")
			queue := redis.NewJobQueue(redisClient, batch.QueueKey)
			if pending, err := queue.Len(cmd.Context()); err != nil {
				log.WithError(err).Warn("Failed to read queue length")
			} else {
				fmt.Printf("%-15s %10d\n", "Pending jobs:", pending)
			}
		}
	}
	fmt.Println()

	fmt.Println("🤖 LLM Providers")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("%-15s %s (%s)\n", "Primary:", cfg.LLM.Primary, providerStatus(cfg, cfg.LLM.Primary))
	fmt.Printf("%-15s %s (%s)\n", "Secondary:", cfg.LLM.Secondary, providerStatus(cfg, cfg.LLM.Secondary))
	fmt.Printf("%-15s %s\n", "Policy:", cfg.LLM.DefaultPolicy)
	fmt.Println()

	return nil
}

func providerStatus(cfg *config.Config, name string) string {
	var apiKey, model string
	switch name {
	case "openai":
		apiKey, model = cfg.OpenAI.APIKey, cfg.OpenAI.Model
	case "gemini":
		apiKey, model = cfg.Gemini.APIKey, cfg.Gemini.Model
	default:
		return "❓ unknown provider"
	}
	if apiKey == "" {
		return "⚠️  no API key"
	}
	return fmt.Sprintf("✅ %s", model)
}
