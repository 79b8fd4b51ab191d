package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/imyashpatil/Fake-Logo-Detection/internal/artifacts"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/auth"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/config"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/events"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/grpcclient"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/handlers"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/imageprocessor"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/logging"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/repository"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := repository.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := repository.Migrate(ctx, db, cfg.DatabaseDriver, logger); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}
	records := repository.NewClassificationRepository(db, logger)
	users := repository.NewUserRepository(db, logger)

	var cache usecase.Cache
	if cfg.RedisAddr != "" {
		redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
		defer redisCancel()
		redisClient := initRedis(redisCtx, cfg.RedisAddr, logger)
		defer redisClient.Close()
		cache = usecase.NewRedisCache(redisClient)
	}

	engine, conn, err := grpcclient.DialInferenceEngine(ctx, cfg.InferenceAddr, logger)
	if err != nil {
		logger.Fatal("failed to connect to inference engine", zap.Error(err))
	}
	defer conn.Close()

	uploads, processed := initArtifactStores(ctx, cfg, logger)

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			logger.Fatal("failed to create event publisher", zap.Error(err))
		}
		publisher = kafkaPublisher
	}
	defer publisher.Close()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTAudience, cfg.TokenTTL)

	classifier := usecase.NewClassificationUseCase(usecase.ClassificationDeps{
		Records:      records,
		Users:        users,
		Preprocessor: imageprocessor.Preprocessor{},
		Engine:       engine,
		Uploads:      uploads,
		Processed:    processed,
		Publisher:    publisher,
		Cache:        cache,
	}, usecase.ClassificationOptions{
		InferenceTimeout: cfg.InferenceTimeout,
		HistoryLimit:     cfg.HistoryLimit,
		HistoryTTL:       cfg.HistoryCacheTTL,
	}, logger)
	accounts := usecase.NewAccountUseCase(users, tokens, usecase.AdminCredentials{
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
	}, logger)
	admin := usecase.NewAdminUseCase(users, records, logger)

	r := gin.New()
	r.Use(gin.Recovery(), logging.GinMiddleware(logger))
	r.MaxMultipartMemory = handlers.MaxUploadSize

	deps := handlers.Dependencies{
		Classifier: classifier,
		Accounts:   accounts,
		Admin:      admin,
		Tokens:     tokens,
		Logger:     logger,
	}
	if cfg.ArtifactBackend == "fs" {
		deps.UploadDir, deps.ProcessedDir = cfg.UploadDir, cfg.ProcessedDir
	}
	handlers.RegisterRoutes(r, deps)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           withCORS(r, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("logo classification API listening", zap.String("addr", cfg.HTTPAddr))
	if err := serveHTTPServer(server, 15*time.Second, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func initRedis(ctx context.Context, addr string, zapLogger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	return client
}

func initArtifactStores(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) (artifacts.Store, artifacts.Store) {
	if cfg.ArtifactBackend != "s3" {
		return artifacts.NewFSStore(cfg.UploadDir, cfg.PublicBaseURL+"/uploads"),
			artifacts.NewFSStore(cfg.ProcessedDir, cfg.PublicBaseURL+"/processed")
	}

	s3cfg := artifacts.S3Config{
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	}
	s3cfg.Prefix = "uploads"
	uploads, err := artifacts.NewS3Store(ctx, s3cfg)
	if err != nil {
		zapLogger.Fatal("failed to configure upload bucket", zap.Error(err))
	}
	s3cfg.Prefix = "processed"
	processed, err := artifacts.NewS3Store(ctx, s3cfg)
	if err != nil {
		zapLogger.Fatal("failed to configure processed bucket", zap.Error(err))
	}
	return uploads, processed
}

func withCORS(h http.Handler, origins []string) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})(h)
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
