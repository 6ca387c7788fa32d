package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	firebase "firebase.google.com/go/v4"
	"github.com/joho/godotenv"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"google.golang.org/api/option"
	"gopkg.in/yaml.v3"

	"github.com/tinywideclouds/go-call-signaling-service/callservice"
	"github.com/tinywideclouds/go-call-signaling-service/callservice/config"
	"github.com/tinywideclouds/go-call-signaling-service/internal/calldispatch"
	"github.com/tinywideclouds/go-call-signaling-service/internal/events"
	"github.com/tinywideclouds/go-call-signaling-service/internal/platform/agora"
	"github.com/tinywideclouds/go-call-signaling-service/internal/platform/apns"
	"github.com/tinywideclouds/go-call-signaling-service/internal/platform/fcm"
	"github.com/tinywideclouds/go-call-signaling-service/internal/storage/cache"
	fsStore "github.com/tinywideclouds/go-call-signaling-service/internal/storage/firestore"
	"github.com/tinywideclouds/go-call-signaling-service/internal/storage/memory"
	"github.com/tinywideclouds/go-call-signaling-service/pkg/dispatch"
	"github.com/tinywideclouds/go-call-signaling-service/pkg/rtctoken"
)

//go:embed local.yaml
var configFile []byte

func main() {
	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "go-call-signaling-service")
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("Service exited with error", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Config Loading ---
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Failed to load .env file", "err", err)
	}
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		return fmt.Errorf("failed to unmarshal embedded yaml config: %w", err)
	}
	baseCfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
	if err != nil {
		return err
	}
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		return fmt.Errorf("config failed: %w", err)
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	// --- Token Issuer ---
	signer, err := agora.NewSigner(cfg.Agora.AppID, cfg.Agora.AppCertificate)
	if err != nil {
		return fmt.Errorf("agora signer failed: %w", err)
	}
	issuer := rtctoken.NewIssuer(signer, rtctoken.DefaultValidity)

	// --- Registration Store (Decorated) ---
	var store dispatch.RegistrationStore
	switch cfg.Store.Kind {
	case config.StoreMemory:
		store = memory.NewStore()
	default:
		fsClient, err := firestore.NewClient(ctx, cfg.ProjectID, clientOpts...)
		if err != nil {
			return fmt.Errorf("firestore client failed: %w", err)
		}
		defer fsClient.Close()
		store = fsStore.NewFirestoreStore(fsClient, cfg.Store.UsersCollection, cfg.Store.RegistrationsField)
	}
	logger.Info("RegistrationStore initialized", "type", cfg.Store.Kind)

	if cfg.Redis.Enabled {
		logger.Info("Initializing Redis Cache layer...", "addr", cfg.Redis.Addr)
		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		store = cache.NewCachedRegistrationStore(store, redisClient, cfg.Redis.TTL, logger)
		logger.Info("RegistrationStore upgraded", "type", "redis_cached_"+cfg.Store.Kind)
	}

	// --- Push Gateway ---
	gateway, err := newGateway(ctx, cfg, clientOpts, logger)
	if err != nil {
		return err
	}

	// --- Events ---
	var publisher events.Publisher = events.Noop{}
	if cfg.EventsTopicID != "" {
		psClient, err := pubsub.NewClient(ctx, cfg.ProjectID, clientOpts...)
		if err != nil {
			return fmt.Errorf("pubsub client failed: %w", err)
		}
		defer psClient.Close()
		pubsubPublisher := events.NewPubsubPublisher(psClient, cfg.EventsTopicID)
		defer pubsubPublisher.Stop()
		publisher = pubsubPublisher
		logger.Info("Call events enabled", "topic", cfg.EventsTopicID)
	}

	// --- Auth ---
	var authMiddleware func(http.Handler) http.Handler
	if cfg.IdentityServiceURL != "" {
		jwksURL, err := middleware.DiscoverAndValidateJWTConfig(cfg.IdentityServiceURL, middleware.RSA256, logger)
		if err != nil {
			return fmt.Errorf("identity service discovery failed: %w", err)
		}
		authMiddleware, err = middleware.NewJWKSAuthMiddleware(jwksURL, logger)
		if err != nil {
			return fmt.Errorf("jwks middleware failed: %w", err)
		}
	}

	service := callservice.New(cfg, callservice.Dependencies{
		Issuer:         issuer,
		Dispatcher:     calldispatch.New(gateway, store),
		Store:          store,
		Events:         publisher,
		AuthMiddleware: authMiddleware,
	}, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting service...", "addr", cfg.ListenAddr, "gateway", cfg.Gateway)
		errCh <- service.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return service.Shutdown(shutdownCtx)
}

func newGateway(ctx context.Context, cfg *config.Config, clientOpts []option.ClientOption, logger *slog.Logger) (dispatch.Gateway, error) {
	if cfg.Gateway == config.GatewayAPNS {
		p8, err := os.ReadFile(cfg.APNS.P8KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read APNs key file: %w", err)
		}
		return apns.NewGateway(apns.Config{
			KeyID:        cfg.APNS.KeyID,
			TeamID:       cfg.APNS.TeamID,
			BundleID:     cfg.APNS.BundleID,
			P8KeyContent: string(p8),
			Production:   cfg.APNS.Production,
		}, logger)
	}

	fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase App: %w", err)
	}
	fcmMessaging, err := fbApp.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create FCM messaging client: %w", err)
	}
	return fcm.NewGateway(fcmMessaging, logger), nil
}
