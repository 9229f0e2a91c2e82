package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "mailsync-backend/cmd/api"
	accountDelivery "mailsync-backend/internal/account/delivery"
	accountdomain "mailsync-backend/internal/account/domain"
	accountRepo "mailsync-backend/internal/account/repository"
	"mailsync-backend/internal/account/scheduler"
	accountUsecase "mailsync-backend/internal/account/usecase"
	authUsecase "mailsync-backend/internal/auth/usecase"
	emaildomain "mailsync-backend/internal/email/domain"
	emailRepo "mailsync-backend/internal/email/repository"
	labelDelivery "mailsync-backend/internal/label/delivery"
	labeldomain "mailsync-backend/internal/label/domain"
	labelRepo "mailsync-backend/internal/label/repository"
	labelUsecase "mailsync-backend/internal/label/usecase"
	"mailsync-backend/internal/notification"
	syncDelivery "mailsync-backend/internal/sync/delivery"
	syncdomain "mailsync-backend/internal/sync/domain"
	syncRepo "mailsync-backend/internal/sync/repository"
	syncUsecase "mailsync-backend/internal/sync/usecase"
	"mailsync-backend/internal/sync/worker"
	"mailsync-backend/pkg/ai"
	"mailsync-backend/pkg/config"
	"mailsync-backend/pkg/database"
	"mailsync-backend/pkg/gmail"
	"mailsync-backend/pkg/logger"
	"mailsync-backend/pkg/queue"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	syncStream       = "mailsync:sync-jobs"
	syncGroup        = "sync-workers"
	notificationTTL  = 24 * time.Hour
	classifyQueueCap = 500
)

func main() {
	// Load configuration
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&accountdomain.GmailAccount{},
		&emaildomain.Message{},
		&labeldomain.UserLabel{},
		&labeldomain.MessageLabel{},
		&syncdomain.SyncRun{},
	); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid REDIS_URL")
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	// Initialize repositories (dependency injection)
	accounts := accountRepo.NewAccountRepository(db)
	messages := emailRepo.NewMessageRepository(db)
	labels := labelRepo.NewLabelRepository(db)
	runs := syncRepo.NewSyncRunRepository(db)

	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, logger.Component(log, "gmail"))
	mailboxes := accountUsecase.NewMailboxProvider(gmailService, accounts, logger.Component(log, "mailbox"))

	// Classification pipeline
	completer, err := ai.NewCompleter(ai.Config{
		Provider:      ai.ProviderType(cfg.AIProvider),
		GeminiAPIKey:  cfg.GeminiAPIKey,
		GeminiModel:   cfg.GeminiModel,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIModel:   cfg.OpenAIModel,
		OllamaBaseURL: cfg.OllamaBaseURL,
		OllamaModel:   cfg.OllamaModel,
	}, logger.Component(log, "ai"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize AI provider")
	}
	classifyLog := logger.Component(log, "classifier")
	classifier := labelUsecase.NewClassifier(completer, labels, messages, cfg.ClassifyChunkSize, classifyLog)
	dispatcher := labelUsecase.NewDispatcher(classifier, cfg.ClassifyWorkers, classifyQueueCap, classifyLog)
	dispatcher.Start()
	labelUc := labelUsecase.NewLabelUsecase(labels, dispatcher, cfg.NewLabelBackfillLimit, logger.Component(log, "labels"))

	// Queue primitives
	stream := queue.NewStream(rdb, syncStream, syncGroup, consumerName())
	limiter := queue.NewLimiter(rdb, syncStream+":rate", int64(cfg.SyncJobsPerSecond), time.Second)
	locker := queue.NewLocker(rdb, syncStream+":lock:", cfg.SyncLockTTL)
	dedupe := queue.NewDeduper(rdb, syncStream+":seen:", notificationTTL)

	// Sync core
	syncLog := logger.Component(log, "sync")
	ingest := syncUsecase.NewIngest(accounts, stream, dedupe, cfg.FullSyncMaxMessages, logger.Component(log, "ingest"))
	fetcher := syncUsecase.NewFetcher(cfg.FetchConcurrency, syncLog)
	upserter := syncUsecase.NewUpserter(messages, cfg.UpsertBatchSize, syncLog)
	reconciler := syncUsecase.NewReconciler(fetcher, upserter, messages, syncLog)
	orchestrator := syncUsecase.NewOrchestrator(accounts, mailboxes, runs, reconciler, fetcher, upserter, dispatcher, cfg.FullSyncMaxMessages, syncLog)
	modifier := syncUsecase.NewLabelModifier(mailboxes, messages, reconciler, syncLog)

	// Accounts and watches
	watchUc := accountUsecase.NewWatchUsecase(accounts, mailboxes, cfg.GooglePubSubTopic, cfg.WatchLabelIDs, logger.Component(log, "watch"))
	accountUc := accountUsecase.NewAccountUsecase(accounts, gmailService, watchUc, labelUc, ingest, logger.Component(log, "accounts"))

	syncWorker := worker.NewSyncWorker(stream, limiter, locker, orchestrator, worker.Options{
		Concurrency: cfg.SyncWorkerConcurrency,
		MaxAttempts: cfg.SyncMaxAttempts,
		ReclaimIdle: cfg.SyncReclaimIdle,
	}, logger.Component(log, "sync-worker"))
	if err := syncWorker.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start sync workers")
	}

	renewals := scheduler.NewWatchRenewalScheduler(watchUc, cfg.WatchRenewInterval, cfg.WatchRenewWithin, logger.Component(log, "watch-renewal"))
	if cfg.GooglePubSubTopic != "" {
		renewals.Start()
	}

	// Pull-mode notifications when a subscription is configured
	if cfg.GoogleProjectID != "" && cfg.GooglePubSubSubscription != "" {
		notifLog := logger.Component(log, "pubsub")
		notifService, err := notification.NewService(ctx, cfg.GoogleProjectID, cfg.GooglePubSubTopic, cfg.GooglePubSubSubscription, ingest, cfg.GoogleCredentials, notifLog)
		if err != nil {
			notifLog.Error().Err(err).Msg("failed to initialize notification service")
		} else {
			defer notifService.Close()
			go func() {
				if err := notifService.Start(ctx); err != nil {
					notifLog.Error().Err(err).Msg("notification listener stopped")
				}
			}()
		}
	} else {
		log.Info().Msg("pubsub subscription not configured, relying on push webhook")
	}

	// Initialize HTTP handler
	handler := api.NewHandler(
		authUsecase.NewAuthUsecase(cfg.JWTSecret),
		accountDelivery.NewAccountHandler(accountUc, watchUc),
		labelDelivery.NewLabelHandler(labelUc),
		syncDelivery.NewSyncHandler(accountUc, ingest, modifier, runs),
		syncDelivery.NewWebhookHandler(ingest, cfg.PushVerificationToken, logger.Component(log, "webhook")),
	)
	server := handler.Server(":" + cfg.Port)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	renewals.Stop()
	syncWorker.Stop()
	dispatcher.Stop()
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "-" + uuid.NewString()[:8]
}
