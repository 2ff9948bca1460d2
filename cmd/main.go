package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/yourorg/forum-chat/internal/api"
	"github.com/yourorg/forum-chat/internal/auth"
	"github.com/yourorg/forum-chat/internal/bus"
	cfgpkg "github.com/yourorg/forum-chat/internal/config"
	"github.com/yourorg/forum-chat/internal/kafka"
	"github.com/yourorg/forum-chat/internal/logging"
	"github.com/yourorg/forum-chat/internal/media"
	"github.com/yourorg/forum-chat/internal/models"
	"github.com/yourorg/forum-chat/internal/notify"
	"github.com/yourorg/forum-chat/internal/presence"
	"github.com/yourorg/forum-chat/internal/repository"
	"github.com/yourorg/forum-chat/internal/service"
	"github.com/yourorg/forum-chat/internal/storage"
	"github.com/yourorg/forum-chat/internal/ws"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := cfgpkg.Load(*configPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	logger, err := logging.New(cfg.App.Env != "production")
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Mongo
	mc, err := repository.NewMongoClient(ctx, cfg.Mongo.URI)
	if err != nil {
		logger.Fatalw("mongo init", "err", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()
	db := mc.Database(cfg.Mongo.Database)
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		logger.Fatalw("mongo indexes", "err", err)
	}

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// Event bus + kafka mirror
	instanceID := uuid.NewString()[:8]
	eventBus := bus.New(cfg.Bus.SubscriberBuffer, logger)
	eventBus.Origin = instanceID
	var kprod *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		// With peers publishing into the same channels, seqs must come
		// from the shared counter, not this process's memory.
		eventBus.NextSeq = repository.NewEventCounterRepo(db).Next

		kprod = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
		defer kprod.Close()
		eventBus.Mirror = func(ctx context.Context, ev models.Event) error {
			return kprod.PublishEvent(ctx, ev)
		}

		// Every instance must observe every mirrored event, so the group
		// id is made unique per process.
		groupID := cfg.Kafka.GroupID + "-" + instanceID
		kcons := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, groupID, logger)
		defer kcons.Close()
		go kcons.Run(ctx, eventBus)
	}

	// Notification collaborator
	var notifier *notify.Publisher
	if cfg.NATS.URL != "" {
		notifier, err = notify.NewPublisher(cfg.NATS.URL)
		if err != nil {
			logger.Warnw("nats connect failed, notifications disabled", "err", err)
		} else {
			defer notifier.Close()
		}
	}

	// Attachment pipeline
	s3store, err := storage.NewS3Store(ctx, cfg.AWS.Region, cfg.AWS.Bucket, cfg.AWS.PublicRead)
	if err != nil {
		logger.Fatalw("s3 init", "err", err)
	}
	attachRepo := repository.NewAttachmentRepo(db)
	pipeline := media.NewPipeline(s3store, attachRepo, media.Options{
		MaxBytes:     cfg.Upload.MaxBytes,
		MaxDimension: cfg.Upload.MaxDimension,
		Retries:      cfg.Upload.Retries,
		Backoff:      cfg.UploadBackoff,
		Timeout:      cfg.UploadTimeout,
		PresignTTL:   cfg.PresignTTL,
	}, logger)

	// Core service
	tracker := presence.NewTracker(rdb, cfg.Redis.Prefix, cfg.PresenceWindow, cfg.TypingTTL)
	chat := service.NewChatService(
		repository.NewChannelRepo(db),
		repository.NewMessageRepo(db),
		attachRepo,
		tracker,
		eventBus,
		repository.NewMongoMembership(db),
		notifier,
		logger,
	)

	// Transport
	jv, err := auth.NewJWTValidator(cfg.JWT.SigningMethod, cfg.JWT.PublicKeyPath, cfg.JWT.Secret)
	if err != nil {
		logger.Fatalw("jwt validator", "err", err)
	}
	wsh := ws.NewHandler(chat, eventBus, logger)
	app := api.NewServer(chat, pipeline, wsh, jv, logger)

	go func() {
		if err := app.Listen(":" + cfg.App.Port); err != nil {
			logger.Fatalw("server listen", "err", err)
		}
	}()
	logger.Infow("chat service started", "port", cfg.App.Port)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = app.ShutdownWithContext(shutdownCtx)
	logger.Info("chat service stopped")
}
