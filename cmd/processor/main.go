package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nimasrn/farm-ledger/internal/cache"
	"github.com/nimasrn/farm-ledger/internal/config"
	"github.com/nimasrn/farm-ledger/internal/events"
	"github.com/nimasrn/farm-ledger/internal/ledger"
	"github.com/nimasrn/farm-ledger/internal/processor"
	"github.com/nimasrn/farm-ledger/internal/queue"
	"github.com/nimasrn/farm-ledger/internal/repository"
	"github.com/nimasrn/farm-ledger/internal/services"
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
	logger.Info("starting farm-ledger processor", "version", version, "commit", commit, "date", date, "env", cfg.AppEnv)

	db, err := pg.CreateReadWrite(cfg.PostgresRead(), cfg.PostgresWrite(), cfg.AppDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, cfg.RedisOptions("processor"))
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	qc := queue.QueueConfig{
		Name:              cfg.QueueName,
		ConsumerGroup:     cfg.QueueConsumerGroup,
		ConsumerName:      cfg.QueueConsumerName,
		MaxRetries:        cfg.QueueMaxRetries,
		VisibilityTimeout: cfg.QueueVisibilityTimeout,
		PollInterval:      cfg.QueuePollInterval,
		BatchSize:         cfg.QueueBatchSize,
		MaxLen:            cfg.QueueMaxLen,
		EnableDLQ:         cfg.QueueEnableDLQ,
	}

	// repairs announce themselves on the same stream
	q, err := queue.NewQueue(redisAdap, qc)
	if err != nil {
		logger.Error("failed creating queue", "error", err)
		return
	}
	publisher := events.NewMulti().Add("stream", events.NewStreamPublisher(q))

	transactionService := services.NewTransactionService(
		repository.NewTransactionRepository(db),
		repository.NewCustomerRepository(db),
		repository.NewProjectRepository(db),
		ledger.NewScopeLocks(),
		cache.NewSummaryCache(redisAdap, cfg.SummaryCacheTTL),
		publisher,
	)

	idempotencyService := processor.NewIdempotencyService(redisAdap, processor.DefaultIdempotencyConfig())

	service := processor.NewProcessorService(redisAdap, processor.ServiceConfig{
		Queue:     qc,
		Consumers: cfg.QueueConsumers,
		Workers:   cfg.QueueWorkers,
	})
	service.RegisterProcessor(processor.NewLedgerEventProcessor(
		repository.NewActivityLogRepository(db),
		transactionService,
		idempotencyService,
	))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err := prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	go prom.ListenAndServer(":9100", "/metrics")

	if err := service.Start(); err != nil {
		logger.Error("failed to start processor", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	service.Stop()
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
