package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/oracle/internal/analysis/store"
	"github.com/wonny/oracle/internal/api"
	"github.com/wonny/oracle/internal/api/handlers"
	"github.com/wonny/oracle/internal/api/ws"
	"github.com/wonny/oracle/internal/batch"
	"github.com/wonny/oracle/internal/marketdata"
	"github.com/wonny/oracle/pkg/config"
	"github.com/wonny/oracle/pkg/database"
	"github.com/wonny/oracle/pkg/logger"
	"github.com/wonny/oracle/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 분석 생성/조회 엔드포인트 제공
- 시세 조회 및 수집 트리거 제공
- 신규 레코드 WebSocket 스트림 제공

Endpoints:
  GET  /health                        - Health check
  POST /api/analysis/{kind}           - 분석 생성 (bearer token)
  GET  /api/analysis/{kind}           - 분석 조회
  GET  /api/analysis/{kind}/nearest   - 최근접 날짜 조회
  GET  /api/prices/{ticker}           - 시세 조회
  POST /api/prices/{ticker}/collect   - 시세 수집 (bearer token)
  GET  /api/fundamentals/{ticker}     - 펀더멘털 조회
  POST /api/batch/trigger             - 배치 트리거 (bearer token)
  GET  /api/ws                        - 레코드 스트림

Example:
  go run ./cmd/oracle api
  go run ./cmd/oracle api --port 8087`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본값: PORT 환경변수)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Oracle API Server ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if apiPort != "" {
		cfg.Port = apiPort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	log.Info("Connected to database")

	// 4. Redis (cache + job queue)
	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	cache := redis.NewCache(redisClient, "oracle")
	queue := redis.NewJobQueue(redisClient, batch.QueueKey)

	// 5. WebSocket hub
	hub := ws.NewHub(log)
	defer hub.Close()

	// 6. Analysis pipeline
	analysisStore := store.NewPostgresStore(db, log)
	svc, query, err := buildPipeline(cmd.Context(), cfg, log, analysisStore, hub)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	// 7. Market data
	mdClient := marketdata.NewClient(cfg, log)
	fundamentals := marketdata.NewFundamentalsClient(cfg, log)
	priceRepo := marketdata.NewPriceRepository(db, log)

	// 8. Batch trigger
	trigger := batch.NewTrigger(queue, cfg.Batch.Tickers, cfg.Batch.ChunkSize, log)

	// 9. Handlers and router
	analysisHandler := handlers.NewAnalysisHandler(svc, query, cache, db, log)
	pricesHandler := handlers.NewPricesHandler(mdClient, fundamentals, priceRepo, cache, log)
	batchHandler := handlers.NewBatchHandler(trigger, log)

	router := api.NewRouter(analysisHandler, pricesHandler, batchHandler, hub, cfg.AuthToken, log)

	// 10. Start server with graceful shutdown
	server := api.New(cfg, log, router)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
