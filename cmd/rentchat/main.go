package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	authsvc "rentchat/internal/app/services/auth"
	chatsvc "rentchat/internal/app/services/chat"
	domainchat "rentchat/internal/domain/chat"
	"rentchat/internal/infra/broker/kafka"
	"rentchat/internal/infra/config"
	"rentchat/internal/infra/db/mongo"
	"rentchat/internal/infra/events"
	ginserver "rentchat/internal/infra/http/gin"
	"rentchat/internal/infra/obs"
	"rentchat/internal/infra/security"
	"rentchat/internal/infra/storage/memory"
	"rentchat/internal/infra/storage/s3"
	"rentchat/internal/infra/storage/scylla"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Warn("using fallback configuration", "error", err)
		cfg.Env = env
		cfg.HTTPAddr = getenv("HTTP_ADDR", ":8080")
		cfg.ChatStore = "memory"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	app, cleanup := buildApplication(ctx, cfg, logger)
	defer cleanup()

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: func() error { return nil },
	}, app)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "chat_store", cfg.ChatStore)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (ginserver.Handlers, func()) {
	cleanups := []func(){}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	userRepo := memory.NewUserRepository()
	sessionStore := memory.NewSessionStore()

	var chatStore domainchat.Store
	switch cfg.ChatStore {
	case "scylla":
		session, err := scylla.NewSession(scylla.Config{
			Hosts:             cfg.ScyllaHosts,
			Keyspace:          cfg.ScyllaKeyspace,
			Timeout:           cfg.ScyllaTimeout,
			Username:          cfg.ScyllaUsername,
			Password:          cfg.ScyllaPassword,
			ReplicationFactor: cfg.ReplicationFactor,
		}, logger)
		if err != nil {
			logger.Error("scylla connect failed, falling back to memory store", "error", err)
			chatStore = memory.NewChatStore()
		} else {
			cleanups = append(cleanups, session.Close)
			chatStore = scylla.NewStore(session, logger)
		}
	default:
		chatStore = memory.NewChatStore()
	}

	var templates domainchat.TemplateCatalog = memory.NewTemplateCatalog()
	if cfg.MongoURI != "" {
		client, err := mongo.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			logger.Warn("mongo connect failed, using built-in templates", "error", err)
		} else {
			cleanups = append(cleanups, func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := client.Close(closeCtx); err != nil {
					logger.Warn("mongo close failed", "error", err)
				}
			})
			store := mongo.NewTemplateStore(client)
			if err := store.Seed(ctx, memory.DefaultTemplates()); err != nil {
				logger.Warn("template seed failed", "error", err)
			}
			templates = store
		}
	}

	var publisher *events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			logger.Warn("kafka connect failed, events disabled", "error", err)
		} else {
			cleanups = append(cleanups, func() {
				if err := producer.Close(); err != nil {
					logger.Warn("kafka close failed", "error", err)
				}
			})
			publisher = &events.Publisher{
				Producer:    producer,
				TopicPrefix: cfg.KafkaTopicPrefix,
				Logger:      logger,
			}
		}
	}

	var uploader s3.Uploader = s3.NoopUploader{}
	if client, err := s3.NewClient(s3.Config{
		Endpoint:      cfg.S3Endpoint,
		PublicBaseURL: cfg.S3PublicEndpoint,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Bucket:        cfg.S3Bucket,
		UseSSL:        cfg.S3UseSSL,
	}, logger); err != nil {
		logger.Warn("s3 uploader unavailable", "error", err)
	} else {
		uploader = client
	}

	authService := &authsvc.Service{
		Users:      userRepo,
		Sessions:   sessionStore,
		Passwords:  security.PasswordHasher{},
		Tokens:     security.TokenGenerator{},
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	}
	chatService := &chatsvc.Service{
		Store:     chatStore,
		Templates: templates,
		Users:     userRepo,
		Uploader:  uploader,
		Events:    publisher,
		Logger:    logger,
	}

	return ginserver.Handlers{
		Auth:           ginserver.AuthHandler{Service: authService, Logger: logger},
		Chat:           ginserver.ChatHandler{Service: chatService, Logger: logger},
		AuthMiddleware: ginserver.AuthMiddleware{Service: authService, Logger: logger}.Handle,
	}, cleanup
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
