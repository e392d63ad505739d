package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"digiland/land-registry/land-registry-backend/internal/config"
	"digiland/land-registry/land-registry-backend/internal/landnft"
	"digiland/land-registry/land-registry-backend/internal/landnft/audit"
	"digiland/land-registry/land-registry-backend/internal/landnft/ledger"
	"digiland/land-registry/land-registry-backend/internal/landnft/ledger/hederaledger"
	"digiland/land-registry/land-registry-backend/internal/landnft/ledger/memledger"
	"digiland/land-registry/land-registry-backend/internal/landnft/metadata"
	"digiland/land-registry/land-registry-backend/internal/landnft/pipeline"
	"digiland/land-registry/land-registry-backend/pkg/storage"
)

type network interface {
	ledger.Client
	ledger.StateReader
}

func main() {
	// Initialize logger
	boot, _ := zap.NewDevelopment()

	// Load configuration
	cfg, err := config.LoadConfig("config.json", ".env")
	if err != nil {
		boot.Fatal("Failed to load configuration", zap.Error(err))
	}
	logger := newLogger(cfg.Logging, boot)
	defer logger.Sync()

	ctx := context.Background()

	client, signers, treasury, closeLedger := newLedger(cfg.Ledger, logger)
	defer closeLedger()

	store, err := newStore(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("Failed to create content store", zap.Error(err))
	}

	recorder, err := newRecorder(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create audit sinks", zap.Error(err))
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	pipe := pipeline.New(client, pipeline.Config{
		FreezeAttempts: cfg.Pipeline.FreezeAttempts,
		RetryBaseDelay: cfg.Pipeline.RetryBaseDelay,
		RetryMaxDelay:  cfg.Pipeline.RetryMaxDelay,
		RetryFactor:    cfg.Pipeline.RetryFactor,
		SubmitTimeout:  cfg.Pipeline.SubmitTimeout,
		ConfirmTimeout: cfg.Pipeline.ConfirmTimeout,
		PollInterval:   cfg.Pipeline.PollInterval,
		MaxPollDelay:   cfg.Pipeline.MaxPollDelay,
	}, pipeline.NewMetrics(registry), logger)

	metaCfg := metadata.DefaultConfig()
	metaCfg.Creator = cfg.Metadata.ServiceName
	metaCfg.Format = cfg.Metadata.Format
	metaCfg.Name = cfg.Metadata.Name
	metaCfg.Description = cfg.Metadata.Description
	metaCfg.Image = cfg.Metadata.Image
	metaCfg.ImageType = cfg.Metadata.ImageType
	publisher := metadata.NewPublisher(store, metaCfg, logger)

	// Initialize land token module
	service := landnft.NewService(landnft.Dependencies{
		Pipeline:  pipe,
		Publisher: publisher,
		Ledger:    client,
		Signers:   signers,
		States:    client,
		Audit:     recorder,
	}, &landnft.ServiceConfig{
		Treasury:            treasury,
		EnforceStateMachine: cfg.Ledger.EnforceStateMachine,
	}, logger)
	handler := landnft.NewHandler(service, logger)

	// Setup Router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Register Routes
	api := router.Group("/api/v1")
	{
		handler.RegisterRoutes(api)
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"ledger":    cfg.Ledger.Driver,
			"storage":   cfg.Storage.Driver,
			"audit":     recorder.Sinks(),
			"timestamp": time.Now(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("addr", srv.Addr),
		zap.String("ledger", cfg.Ledger.Driver),
		zap.String("storage", cfg.Storage.Driver))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func newLogger(cfg config.LoggingConfig, fallback *zap.Logger) *zap.Logger {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		fallback.Warn("Unknown log level, using info", zap.String("level", cfg.Level))
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zc.Level = level
	logger, err := zc.Build()
	if err != nil {
		fallback.Warn("Failed to build logger", zap.Error(err))
		return fallback
	}
	return logger
}

func newLedger(cfg config.LedgerConfig, logger *zap.Logger) (network, ledger.SignerProvider, string, func()) {
	if cfg.Driver == config.LedgerMemory {
		logger.Warn("Using in-memory ledger; state is lost on restart")
		l := memledger.New(cfg.AccountID)
		return l, l.Signers(), l.Operator(), func() {}
	}

	l, err := hederaledger.New(hederaledger.Config{
		Network:         cfg.Network,
		OperatorID:      cfg.AccountID,
		OperatorKey:     cfg.PrivateKey,
		AdminKey:        cfg.AdminPrivateKey,
		MaxTransaction:  cfg.MaxTransactionFee,
		MaxQueryPayment: cfg.MaxQueryPayment,
		RequestTimeout:  cfg.RequestTimeout,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect ledger client", zap.Error(err))
	}
	return l, l.Signers(), l.Operator(), func() {
		if err := l.Close(); err != nil {
			logger.Warn("Failed to close ledger client", zap.Error(err))
		}
	}
}

func newStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.ContentStore, error) {
	switch cfg.Driver {
	case config.StoragePinata:
		return storage.NewIPFSClient(storage.IPFSConfig{
			APIURL:  cfg.PinataAPIURL,
			JWT:     cfg.PinataJWT,
			Gateway: cfg.PinataGateway,
		}), nil
	case config.StorageS3:
		return storage.NewS3Client(ctx, storage.S3Config{
			Bucket:   cfg.S3Bucket,
			Prefix:   cfg.S3Prefix,
			Region:   cfg.AWSRegion,
			Endpoint: cfg.S3Endpoint,

			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	default:
		logger.Warn("Using in-memory content store; published metadata is lost on restart")
		return storage.NewMemoryStore(), nil
	}
}

func newRecorder(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*audit.Recorder, error) {
	recorder := audit.NewRecorder(logger).
		WithTimeout(cfg.Audit.SinkTimeout).
		Add("log", audit.NewLogSink(logger))

	if len(cfg.Audit.ElasticsearchURLs) > 0 {
		es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.Audit.ElasticsearchURLs})
		if err != nil {
			return nil, err
		}
		recorder.Add("elasticsearch", audit.NewElasticsearchSink(es, cfg.Audit.ElasticsearchIndex))
	}

	if cfg.Audit.DynamoDBTable == "" && cfg.Audit.SNSTopicARN == "" {
		return recorder, nil
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Storage.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Storage.AWSRegion))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.Audit.DynamoDBTable != "" {
		recorder.Add("dynamodb", audit.NewDynamoDBSink(dynamodb.NewFromConfig(awsCfg), cfg.Audit.DynamoDBTable))
	}
	if cfg.Audit.SNSTopicARN != "" {
		recorder.Add("sns", audit.NewSNSSink(sns.NewFromConfig(awsCfg), cfg.Audit.SNSTopicARN))
	}
	return recorder, nil
}
