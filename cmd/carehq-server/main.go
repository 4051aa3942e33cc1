package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carehq/carehq/internal/config"
	"github.com/carehq/carehq/internal/domain/queue"
	"github.com/carehq/carehq/internal/domain/report"
	"github.com/carehq/carehq/internal/domain/summarize"
	"github.com/carehq/carehq/internal/platform/blobstore"
	"github.com/carehq/carehq/internal/platform/db"
	"github.com/carehq/carehq/internal/platform/llm"
	"github.com/carehq/carehq/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "carehq-server",
		Short: "Care document pipeline server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(workerCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the queue drain loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker()
		},
	}
}

// pipeline holds the wired services shared by serve and worker.
type pipeline struct {
	cfg       *config.Config
	queueSvc  *queue.Service
	summSvc   *summarize.Service
	reportSvc *report.Service
	pool      *pgxpool.Pool
	log       zerolog.Logger
}

func buildPipeline(ctx context.Context, logger zerolog.Logger) (*pipeline, *echo.Echo, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info().Msg("connected to database")

	blobs, err := blobstore.NewFileStore(cfg.BlobDir)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("open blob store: %w", err)
	}

	txRunner := db.NewPoolTxRunner(pool)
	queueRepo := queue.NewRepoPG(pool)
	fileRepo := queue.NewFileRepoPG(pool)
	queueSvc := queue.NewService(queueRepo, fileRepo, blobs, nil, txRunner, logger)

	chat := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.LLMTimeout, cfg.LLMRequestsPerSecond)
	ledger := summarize.NewTokenLedger()
	throttler := summarize.NewThrottler(ledger, cfg.TokenLimitPerMinute, cfg.TokenBuffer,
		cfg.ThrottleBaseWait, cfg.ThrottleMaxWait)
	engine := summarize.NewEngine(chat, throttler, 0.2, cfg.LLMMaxTokens, 3, logger)

	highlightRepo := summarize.NewRepoPG(pool)
	summSvc := summarize.NewService(highlightRepo, fileRepo, engine, cfg.SummaryConcurrency, logger)

	reportSvc := report.NewService(highlightRepo, report.A4PageSpec(), cfg.WatermarkText, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", db.HealthHandler(pool))

	api := e.Group("/api")
	internal := e.Group("/internal")

	queue.NewHandler(queueSvc).RegisterRoutes(api, internal)
	summarize.NewHandler(summSvc).RegisterRoutes(api)
	report.NewHandler(reportSvc).RegisterRoutes(api)

	return &pipeline{
		cfg:       cfg,
		queueSvc:  queueSvc,
		summSvc:   summSvc,
		reportSvc: reportSvc,
		pool:      pool,
		log:       logger,
	}, e, nil
}

func runServer() error {
	logger := newLogger()

	p, e, err := buildPipeline(context.Background(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}
	defer p.pool.Close()

	go func() {
		addr := ":" + p.cfg.Port
		logger.Info().Str("addr", addr).Msg("server listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return err
	}
	return nil
}

// runWorker drains the queue in a poll loop: claim and process items until
// the queue is empty, summarize the patients whose files changed, then sleep
// for the poll interval. SIGINT/SIGTERM stop the loop after the current
// cycle.
func runWorker() error {
	logger := newLogger()

	p, _, err := buildPipeline(context.Background(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}
	defer p.pool.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Dur("poll_interval", p.cfg.WorkerPollInterval).Msg("worker started")
	for {
		changed := drainQueue(ctx, p)
		if len(changed) > 0 {
			summarizePatients(ctx, p, changed)
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("worker stopped")
			return nil
		case <-time.After(p.cfg.WorkerPollInterval):
		}
	}
}

// drainQueue processes items until the queue is empty and returns the
// patients whose extraction completed this cycle.
func drainQueue(ctx context.Context, p *pipeline) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var changed []uuid.UUID
	for ctx.Err() == nil {
		res, err := p.queueSvc.ProcessNext(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueEmpty) {
				break
			}
			p.log.Error().Err(err).Msg("queue processing error")
			break
		}
		if res.Status == queue.StatusCompleted && !seen[res.PatientID] {
			seen[res.PatientID] = true
			changed = append(changed, res.PatientID)
		}
	}
	return changed
}

func summarizePatients(ctx context.Context, p *pipeline, patientIDs []uuid.UUID) {
	results := p.summSvc.GenerateBatch(ctx, patientIDs)
	for i, r := range results {
		if r.Err != nil {
			p.log.Error().
				Err(r.Err).
				Str("patient_id", patientIDs[i].String()).
				Msg("summarization failed")
		}
	}
}
