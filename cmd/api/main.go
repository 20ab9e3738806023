package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nimasrn/farm-ledger/internal/auth"
	"github.com/nimasrn/farm-ledger/internal/cache"
	"github.com/nimasrn/farm-ledger/internal/config"
	"github.com/nimasrn/farm-ledger/internal/events"
	gateway "github.com/nimasrn/farm-ledger/internal/gateways"
	"github.com/nimasrn/farm-ledger/internal/handlers"
	"github.com/nimasrn/farm-ledger/internal/idcrypt"
	"github.com/nimasrn/farm-ledger/internal/ledger"
	"github.com/nimasrn/farm-ledger/internal/queue"
	"github.com/nimasrn/farm-ledger/internal/repository"
	"github.com/nimasrn/farm-ledger/internal/services"
	xhttp "github.com/nimasrn/farm-ledger/pkg/http"
	"github.com/nimasrn/farm-ledger/pkg/logger"
	"github.com/nimasrn/farm-ledger/pkg/pg"
	"github.com/nimasrn/farm-ledger/pkg/prom"
	"github.com/nimasrn/farm-ledger/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	defer logger.Sync()

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	if err := cfg.ValidateSecrets(); err != nil {
		logger.Error("invalid config", "error", err)
		return
	}
	logger.Info("starting farm-ledger api", "version", version, "commit", commit, "date", date, "env", cfg.AppEnv)

	db, err := pg.CreateReadWrite(cfg.PostgresRead(), cfg.PostgresWrite(), cfg.AppDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, cfg.RedisOptions("api"))
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	q, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:              cfg.QueueName,
		ConsumerGroup:     cfg.QueueConsumerGroup,
		ConsumerName:      cfg.QueueConsumerName,
		MaxRetries:        cfg.QueueMaxRetries,
		VisibilityTimeout: cfg.QueueVisibilityTimeout,
		PollInterval:      cfg.QueuePollInterval,
		BatchSize:         cfg.QueueBatchSize,
		MaxLen:            cfg.QueueMaxLen,
		EnableDLQ:         cfg.QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating queue", "error", err)
		return
	}

	publisher := events.NewMulti().Add("stream", events.NewStreamPublisher(q))
	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		kp, err := events.NewKafkaPublisher(brokers, cfg.KafkaTopic)
		if err != nil {
			logger.Error("failed creating kafka publisher", "error", err)
			return
		}
		publisher.Add("kafka", kp)
	}
	defer publisher.Close()

	cipher, err := idcrypt.New(cfg.NationalIDKey)
	if err != nil {
		logger.Error("failed creating national id cipher", "error", err)
		return
	}
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		logger.Error("failed creating token service", "error", err)
		return
	}

	// the service takes an interface, a nil *Client must not reach it
	var scanner services.Scanner
	if urls := cfg.ScannerURLList(); len(urls) > 0 {
		client, err := gateway.NewClient(gateway.Config{URLs: urls, Timeout: cfg.ScannerTimeout})
		if err != nil {
			logger.Error("failed creating scanner client", "error", err)
			return
		}
		defer client.Close()
		scanner = client
	}

	summaries := cache.NewSummaryCache(redisAdap, cfg.SummaryCacheTTL)

	userRepo := repository.NewUserRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)

	// services
	authService := services.NewAuthService(userRepo, tokens)
	customerService := services.NewCustomerService(customerRepo, cipher, summaries, scanner, publisher)
	projectService := services.NewProjectService(projectRepo, customerRepo, summaries, publisher, cfg.DefaultProjectName)
	transactionService := services.NewTransactionService(transactionRepo, customerRepo, projectRepo, ledger.NewScopeLocks(), summaries, publisher)
	healthService := services.NewHealthService(db, redisAdap)

	handlers.HideInternalErrors(cfg.IsProduction())
	guard := handlers.NewGuard(authService)

	opts := xhttp.DefaultServerOption
	opts.Name = cfg.AppName
	if cfg.HttpServerReadBufferSize > 0 {
		opts.ReadBufferSize = cfg.HttpServerReadBufferSize
	}
	if cfg.HttpServerWriteBufferSize > 0 {
		opts.WriteBufferSize = cfg.HttpServerWriteBufferSize
	}
	if cfg.HttpServerReadTimeout > 0 {
		opts.ReadTimeout = time.Duration(cfg.HttpServerReadTimeout) * time.Second
	}
	if cfg.HttpServerWriteTimeout > 0 {
		opts.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeout) * time.Second
	}
	s := xhttp.NewServer(opts)
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.CORSMiddleware(cfg.CorsOrigins()))
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(cfg.HttpRequestTimeout))

	g := s.Router.Group("/api")
	handlers.RegisterAuthRoutes(g, handlers.NewAuthHandler(authService), guard)
	handlers.RegisterCustomerRoutes(g, handlers.NewCustomerHandler(customerService), guard)
	handlers.RegisterProjectRoutes(g, handlers.NewProjectHandler(projectService), guard)
	handlers.RegisterTransactionRoutes(g, handlers.NewTransactionHandler(transactionService), guard)
	handlers.RegisterHealthRoutes(g, handlers.NewHealthHandler(healthService))

	if cfg.AppDebugMetricsAddr != "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		if err := prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
			logger.Error("failed to create prometheus metrics", "error", err)
			return
		}
		go prom.ListenAndServer(cfg.AppDebugMetricsAddr, cfg.AppDebugMetricsURI)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := s.ListenAndServe(cfg.HttpListenAddr); err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	s.Shutdown()
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.HasPrefix(v, "--env=") {
			path := strings.TrimPrefix(v, "--env=")
			if _, err := os.Stat(path); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return path
		}
	}
	return ""
}
