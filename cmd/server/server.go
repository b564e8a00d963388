package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"jan-server/services/docchat-api/internal/config"
	"jan-server/services/docchat-api/internal/domain/conversation"
	"jan-server/services/docchat-api/internal/domain/deletion"
	"jan-server/services/docchat-api/internal/domain/dispatch"
	"jan-server/services/docchat-api/internal/domain/document"
	"jan-server/services/docchat-api/internal/domain/message"
	"jan-server/services/docchat-api/internal/domain/query"
	"jan-server/services/docchat-api/internal/infrastructure/database"
	"jan-server/services/docchat-api/internal/infrastructure/database/transaction"
	"jan-server/services/docchat-api/internal/infrastructure/logger"
	"jan-server/services/docchat-api/internal/infrastructure/metrics"
	"jan-server/services/docchat-api/internal/infrastructure/observability"
	"jan-server/services/docchat-api/internal/infrastructure/realtime"
	"jan-server/services/docchat-api/internal/infrastructure/repository/conversationrepo"
	"jan-server/services/docchat-api/internal/infrastructure/repository/documentrepo"
	"jan-server/services/docchat-api/internal/infrastructure/repository/messagerepo"
	"jan-server/services/docchat-api/internal/infrastructure/storage"
	"jan-server/services/docchat-api/internal/infrastructure/sweeper"
	"jan-server/services/docchat-api/internal/infrastructure/workerclient"
	"jan-server/services/docchat-api/internal/interfaces/httpserver"
	"jan-server/services/docchat-api/internal/interfaces/httpserver/handlers"
	"jan-server/services/docchat-api/internal/interfaces/httpserver/routes"
)

// @title Jan DocChat API
// @version 1.0
// @description Conversations over uploaded documents, answered by a retrieval-augmented worker.
// @contact.name Jan Server Team
// @contact.url https://github.com/janhq/jan-server
// @BasePath /
type Application struct {
	httpServer *httpserver.HttpServer
	hub        *realtime.Hub
	sweeper    *sweeper.Sweeper
	dispatcher *dispatch.Dispatcher
	cfg        *config.Config
	log        zerolog.Logger
}

func NewApplication(
	httpServer *httpserver.HttpServer,
	hub *realtime.Hub,
	staleSweeper *sweeper.Sweeper,
	dispatcher *dispatch.Dispatcher,
	cfg *config.Config,
	log zerolog.Logger,
) *Application {
	return &Application{
		httpServer: httpServer,
		hub:        hub,
		sweeper:    staleSweeper,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log,
	}
}

// Start runs the HTTP server, the room hub and the sweeper until ctx ends, then waits
// for in-flight worker dispatches.
func (a *Application) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.httpServer.Run(gctx) })
	g.Go(func() error { return a.hub.Run(gctx) })
	g.Go(func() error { return a.sweeper.Run(gctx) })
	err := g.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if waitErr := a.dispatcher.Wait(drainCtx); waitErr != nil {
		a.log.Warn().Err(waitErr).Msg("worker dispatches still in flight at shutdown")
	}
	return err
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	db, err := database.Connect(newDatabaseConfig(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}()

	if err := database.Migrate(ctx, db, log); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	store, err := storage.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize storage")
	}

	hub := newHub(cfg, log)
	relay, err := newRelay(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect room relay")
	}
	if relay != nil {
		hub.UseRelay(relay)
		defer relay.Close()
	}

	txDB := transaction.NewDatabase(db)
	conversationRepository := conversationrepo.NewRepository(txDB)
	documentRepository := documentrepo.NewRepository(txDB)
	messageRepository := messagerepo.NewRepository(txDB)

	workerClient := workerclient.NewClient(cfg.WorkerURL, cfg.DispatchTimeout)
	dispatcher := dispatch.NewDispatcher(workerClient, metrics.NewDispatchSink(dispatch.NewLogSink(log)), cfg.DispatchTimeout, log)
	recorder := message.NewRecorder(messageRepository, hub, log)

	conversationService := conversation.NewService(conversationRepository, documentRepository, messageRepository, log)
	stateMachine := document.NewStateMachine(documentRepository, conversationService, recorder, log)
	webhookService := document.NewWebhookService(stateMachine)
	uploadService := document.NewUploadService(stateMachine, conversationService, store, dispatcher, document.UploadLimits{
		MaxFiles:         cfg.MaxUploadFiles,
		MaxBytes:         cfg.MaxUploadBytes,
		AllowedMIMETypes: cfg.AllowedMIMETypes,
	}, log)
	deleter := deletion.NewDeleter(txDB, conversationRepository, documentRepository, messageRepository, dispatcher, log)
	orchestrator := query.NewOrchestrator(conversationService, documentRepository, messageRepository, recorder, workerClient, query.Options{
		Timeout:      cfg.QueryTimeout,
		HistoryLimit: cfg.HistoryLimit,
	}, log)

	staleSweeper := sweeper.New(documentRepository, dispatcher, newSweeperConfig(cfg), log)
	if relay != nil {
		staleSweeper.UseLocker(sweeper.NewRedisLocker(relay.Client(), log))
	}

	handlerProvider := handlers.NewProvider(
		handlers.NewConversationHandler(conversationService, deleter, orchestrator, log),
		handlers.NewDocumentHandler(uploadService, webhookService, documentRepository, deleter, uploadBodyLimit(cfg), log),
		handlers.NewRealtimeHandler(hub, orchestrator),
		handlers.NewHealthHandler(cfg.ServiceName, readinessChecks(db, workerClient, store, relay)),
	)
	httpServer := httpserver.New(cfg, log, handlerProvider, routes.NewProvider(handlerProvider))

	app := NewApplication(httpServer, hub, staleSweeper, dispatcher, cfg, log)
	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func newDatabaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	}
}

func newHub(cfg *config.Config, log zerolog.Logger) *realtime.Hub {
	opts := realtime.Options{
		SendBuffer:    cfg.WSSendBuffer,
		PingInterval:  cfg.WSPingInterval,
		MaxFrameBytes: cfg.WSMaxFrameBytes,
	}
	if !allowsAnyOrigin(cfg.CORSOrigins) {
		allowed := make(map[string]struct{}, len(cfg.CORSOrigins))
		for _, o := range cfg.CORSOrigins {
			allowed[strings.TrimSpace(o)] = struct{}{}
		}
		opts.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		}
	}
	return realtime.NewHub(opts, log)
}

func newRelay(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*realtime.RedisRelay, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, nil
	}
	return realtime.NewRedisRelay(ctx, cfg.RedisURL, log)
}

func newSweeperConfig(cfg *config.Config) sweeper.Config {
	return sweeper.Config{
		Enabled: cfg.StaleSweepEnabled,
		Cron:    cfg.StaleSweepCron,
		After:   cfg.StaleSweepAfter,
		Batch:   cfg.StaleSweepBatch,
	}
}

func uploadBodyLimit(cfg *config.Config) int64 {
	if cfg.MaxUploadBytes <= 0 {
		return 0
	}
	return cfg.MaxUploadBytes * int64(cfg.MaxUploadFiles)
}

func readinessChecks(db *gorm.DB, workerClient *workerclient.Client, store storage.Backend, relay *realtime.RedisRelay) map[string]handlers.ReadinessCheck {
	checks := map[string]handlers.ReadinessCheck{
		"database": func(ctx context.Context) error { return database.Ping(ctx, db) },
		"worker":   workerClient.Health,
		"storage":  store.Health,
	}
	if relay != nil {
		checks["redis"] = relay.Ping
	}
	return checks
}

func allowsAnyOrigin(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
