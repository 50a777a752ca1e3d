package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/oracle/internal/batch"
	"github.com/wonny/oracle/pkg/config"
	"github.com/wonny/oracle/pkg/logger"
	"github.com/wonny/oracle/pkg/redis"
)

// batchCmd enqueues the daily analysis set
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "일일 분석 배치 발행",
	Long: `오늘(또는 지정 날짜)의 전체 분석 잡을 큐에 발행합니다.
같은 날짜로 다시 실행하면 중복 잡은 건너뜁니다.

Example:
  go run ./cmd/oracle batch
  go run ./cmd/oracle batch --date 2025-01-15`,
	RunE: runBatch,
}

var batchDate string

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&batchDate, "date", "", "대상 날짜 YYYY-MM-DD (기본값: 오늘)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	date := time.Now().UTC()
	if batchDate != "" {
		date, err = time.Parse("2006-01-02", batchDate)
		if err != nil {
			return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
		}
	}

	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	queue := redis.NewJobQueue(redisClient, batch.QueueKey)
	trigger := batch.NewTrigger(queue, cfg.Batch.Tickers, cfg.Batch.ChunkSize, log)

	enqueued, duplicates, err := trigger.EnqueueDaily(cmd.Context(), date)
	if err != nil {
		return fmt.Errorf("enqueue batch: %w", err)
	}

	fmt.Printf("✅ %s: %d jobs enqueued, %d duplicates skipped\n",
		date.Format("2006-01-02"), enqueued, duplicates)
	return nil
}
