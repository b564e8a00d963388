//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"jan-server/services/docchat-api/internal/config"
	"jan-server/services/docchat-api/internal/domain/conversation"
	"jan-server/services/docchat-api/internal/domain/deletion"
	"jan-server/services/docchat-api/internal/domain/dispatch"
	"jan-server/services/docchat-api/internal/domain/document"
	"jan-server/services/docchat-api/internal/domain/message"
	"jan-server/services/docchat-api/internal/domain/query"
	domainrealtime "jan-server/services/docchat-api/internal/domain/realtime"
	"jan-server/services/docchat-api/internal/domain/worker"
	"jan-server/services/docchat-api/internal/infrastructure/database"
	"jan-server/services/docchat-api/internal/infrastructure/database/transaction"
	"jan-server/services/docchat-api/internal/infrastructure/logger"
	"jan-server/services/docchat-api/internal/infrastructure/metrics"
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

var repositorySet = wire.NewSet(
	transaction.NewDatabase,
	wire.Bind(new(deletion.Transactor), new(*transaction.Database)),
	conversationrepo.NewRepository,
	wire.Bind(new(conversation.Repository), new(*conversationrepo.Repository)),
	documentrepo.NewRepository,
	wire.Bind(new(document.Repository), new(*documentrepo.Repository)),
	wire.Bind(new(conversation.DocumentLister), new(*documentrepo.Repository)),
	wire.Bind(new(query.Documents), new(*documentrepo.Repository)),
	wire.Bind(new(handlers.DocumentFinder), new(*documentrepo.Repository)),
	wire.Bind(new(sweeper.StaleDocuments), new(*documentrepo.Repository)),
	messagerepo.NewRepository,
	wire.Bind(new(message.Repository), new(*messagerepo.Repository)),
	wire.Bind(new(conversation.MessageLister), new(*messagerepo.Repository)),
	wire.Bind(new(query.History), new(*messagerepo.Repository)),
)

var workerSet = wire.NewSet(
	provideWorkerClient,
	wire.Bind(new(worker.Client), new(*workerclient.Client)),
	wire.Bind(new(query.Asker), new(*workerclient.Client)),
	provideDispatcher,
	wire.Bind(new(document.IngestDispatcher), new(*dispatch.Dispatcher)),
	wire.Bind(new(deletion.Dispatcher), new(*dispatch.Dispatcher)),
	wire.Bind(new(sweeper.Ingester), new(*dispatch.Dispatcher)),
)

var domainSet = wire.NewSet(
	message.NewRecorder,
	conversation.NewService,
	wire.Bind(new(document.ConversationReader), new(*conversation.Service)),
	wire.Bind(new(document.ConversationAttacher), new(*conversation.Service)),
	wire.Bind(new(query.Conversations), new(*conversation.Service)),
	wire.Bind(new(handlers.ConversationService), new(*conversation.Service)),
	document.NewStateMachine,
	document.NewWebhookService,
	wire.Bind(new(handlers.StatusUpdater), new(*document.WebhookService)),
	provideUploadService,
	wire.Bind(new(handlers.DocumentUploader), new(*document.UploadService)),
	deletion.NewDeleter,
	wire.Bind(new(handlers.ConversationDeleter), new(*deletion.Deleter)),
	wire.Bind(new(handlers.DocumentDeleter), new(*deletion.Deleter)),
	provideOrchestrator,
	wire.Bind(new(handlers.MessageSender), new(*query.Orchestrator)),
)

var realtimeSet = wire.NewSet(
	provideHub,
	wire.Bind(new(domainrealtime.Broadcaster), new(*realtime.Hub)),
)

var httpSet = wire.NewSet(
	handlers.NewConversationHandler,
	provideDocumentHandler,
	handlers.NewRealtimeHandler,
	provideHealthHandler,
	handlers.NewProvider,
	routes.NewProvider,
	httpserver.New,
)

// BuildApplication assembles the docchat service with Wire.
func BuildApplication(ctx context.Context) (*Application, error) {
	wire.Build(
		config.Load,
		logger.New,
		newDatabaseConfig,
		provideGormDB,
		storage.New,
		repositorySet,
		workerSet,
		realtimeSet,
		domainSet,
		provideSweeper,
		httpSet,
		NewApplication,
	)
	return nil, nil
}

func provideGormDB(ctx context.Context, cfg database.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func provideWorkerClient(cfg *config.Config) *workerclient.Client {
	return workerclient.NewClient(cfg.WorkerURL, cfg.DispatchTimeout)
}

func provideDispatcher(cfg *config.Config, client worker.Client, log zerolog.Logger) *dispatch.Dispatcher {
	return dispatch.NewDispatcher(client, metrics.NewDispatchSink(dispatch.NewLogSink(log)), cfg.DispatchTimeout, log)
}

func provideHub(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*realtime.Hub, error) {
	hub := newHub(cfg, log)
	relay, err := newRelay(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if relay != nil {
		hub.UseRelay(relay)
	}
	return hub, nil
}

func provideUploadService(
	cfg *config.Config,
	machine *document.StateMachine,
	conversations document.ConversationAttacher,
	store storage.Backend,
	dispatcher document.IngestDispatcher,
	log zerolog.Logger,
) *document.UploadService {
	return document.NewUploadService(machine, conversations, store, dispatcher, document.UploadLimits{
		MaxFiles:         cfg.MaxUploadFiles,
		MaxBytes:         cfg.MaxUploadBytes,
		AllowedMIMETypes: cfg.AllowedMIMETypes,
	}, log)
}

func provideOrchestrator(
	cfg *config.Config,
	conversations query.Conversations,
	documents query.Documents,
	history query.History,
	recorder *message.Recorder,
	asker query.Asker,
	log zerolog.Logger,
) *query.Orchestrator {
	return query.NewOrchestrator(conversations, documents, history, recorder, asker, query.Options{
		Timeout:      cfg.QueryTimeout,
		HistoryLimit: cfg.HistoryLimit,
	}, log)
}

func provideSweeper(cfg *config.Config, documents sweeper.StaleDocuments, ingester sweeper.Ingester, log zerolog.Logger) *sweeper.Sweeper {
	return sweeper.New(documents, ingester, newSweeperConfig(cfg), log)
}

func provideDocumentHandler(
	cfg *config.Config,
	uploader handlers.DocumentUploader,
	updater handlers.StatusUpdater,
	finder handlers.DocumentFinder,
	deleter handlers.DocumentDeleter,
	log zerolog.Logger,
) *handlers.DocumentHandler {
	return handlers.NewDocumentHandler(uploader, updater, finder, deleter, uploadBodyLimit(cfg), log)
}

func provideHealthHandler(cfg *config.Config, db *gorm.DB, client *workerclient.Client, store storage.Backend) *handlers.HealthHandler {
	return handlers.NewHealthHandler(cfg.ServiceName, readinessChecks(db, client, store, nil))
}
