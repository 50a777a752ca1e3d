package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/oracle/internal/analysis/store"
	"github.com/wonny/oracle/internal/batch"
	"github.com/wonny/oracle/pkg/config"
	"github.com/wonny/oracle/pkg/database"
	"github.com/wonny/oracle/pkg/logger"
	"github.com/wonny/oracle/pkg/redis"
)

// workerCmd consumes analysis jobs from the queue
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "배치 워커 시작",
	Long: `잡 큐에서 분석 잡을 꺼내 실행하는 워커를 시작합니다.

Example:
  go run ./cmd/oracle worker`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Oracle Batch Worker ===")

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

	if !redisClient.Enabled() {
		return fmt.Errorf("REDIS_ENABLED=false: worker requires the job queue")
	}

	svc, _, err := buildPipeline(cmd.Context(), cfg, log, store.NewPostgresStore(db, log), nil)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	queue := redis.NewJobQueue(redisClient, batch.QueueKey)
	worker := batch.NewWorker(queue, svc, log)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("Shutting down worker...")
		cancel()
	}()

	fmt.Println("\n✅ Worker running. Press Ctrl+C to stop")

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("worker stopped: %w", err)
	}
	return nil
}
