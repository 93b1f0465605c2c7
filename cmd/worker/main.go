package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tewereus/prime-property/internal/config"
	"github.com/tewereus/prime-property/internal/processor"
	"github.com/tewereus/prime-property/internal/repository"
	"github.com/tewereus/prime-property/internal/services"
	"github.com/tewereus/prime-property/internal/sweeper"
	"github.com/tewereus/prime-property/pkg/logger"
	"github.com/tewereus/prime-property/pkg/pg"
	"github.com/tewereus/prime-property/pkg/prom"
	"github.com/tewereus/prime-property/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill, os.Interrupt, syscall.SIGTERM)

	propertyRepo := repository.NewPropertyRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)

	// The worker never initiates payments, no provider client is wired.
	lifecycle := services.NewListingLifecycle(propertyRepo, transactionRepo, nil, services.LifecycleConfig{
		FeeCents:      config.Get().ListingFeeCents,
		Currency:      config.Get().ListingCurrency,
		ExpiryTimeout: config.Get().PaymentExpiryTimeout,
	})

	idempotencyService := processor.NewIdempotencyService(redisAdap, processor.DefaultIdempotencyConfig())

	service, err := processor.NewProcessorService(redisAdap)
	if err != nil {
		logger.Error("failed to create the processor", "error", err)
		return
	}
	service.RegisterProcessor(processor.NewPaymentCallbackProcessor(lifecycle, idempotencyService))

	expirySweeper := sweeper.New(lifecycle, config.Get().SweepInterval)

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	go func() {
		if err := service.Start(); err != nil {
			logger.Error("failed to start processor", "error", err)
		}
	}()

	expirySweeper.Start()

	select {
	case <-c:
		expirySweeper.Stop()
		service.Stop()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
