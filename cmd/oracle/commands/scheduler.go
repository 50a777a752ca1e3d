package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/oracle/internal/batch"
	"github.com/wonny/oracle/internal/marketdata"
	"github.com/wonny/oracle/internal/scheduler"
	"github.com/wonny/oracle/internal/scheduler/jobs"
	"github.com/wonny/oracle/pkg/config"
	"github.com/wonny/oracle/pkg/database"
	"github.com/wonny/oracle/pkg/logger"
	"github.com/wonny/oracle/pkg/redis"
)

// schedulerCmd runs the cron scheduler
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 시작",
	Long: `정기 작업 스케줄러를 시작합니다.

Jobs:
  daily_analysis_batch - 평일 12:00 UTC 분석 배치 발행
  price_collection     - 평일 22:00 UTC 시세 수집

Example:
  go run ./cmd/oracle scheduler`,
	RunE: runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Oracle Scheduler ===")

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

	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	queue := redis.NewJobQueue(redisClient, batch.QueueKey)
	trigger := batch.NewTrigger(queue, cfg.Batch.Tickers, cfg.Batch.ChunkSize, log)

	mdClient := marketdata.NewClient(cfg, log)
	priceRepo := marketdata.NewPriceRepository(db, log)

	sched := scheduler.New(log)

	if err := sched.AddJob(jobs.NewDailyBatchJob(trigger, log)); err != nil {
		return fmt.Errorf("add daily batch job: %w", err)
	}
	if err := sched.AddJob(jobs.NewPriceCollectionJob(mdClient, priceRepo, cfg.Batch.Tickers, log)); err != nil {
		return fmt.Errorf("add price collection job: %w", err)
	}

	sched.Start()
	defer sched.Stop()

	fmt.Println("\n✅ Scheduler running. Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	return nil
}
