package main

import (
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/tewereus/prime-property/internal/config"
	"github.com/tewereus/prime-property/internal/gateways"
	"github.com/tewereus/prime-property/internal/handlers"
	"github.com/tewereus/prime-property/internal/model"
	"github.com/tewereus/prime-property/internal/queue"
	"github.com/tewereus/prime-property/internal/repository"
	"github.com/tewereus/prime-property/internal/services"
	xhttp "github.com/tewereus/prime-property/pkg/http"
	"github.com/tewereus/prime-property/pkg/logger"
	"github.com/tewereus/prime-property/pkg/pg"
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

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

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

	callbackQueue, err := queue.New(redisAdap, queue.Config{
		Stream:       config.Get().QueueName,
		Group:        config.Get().QueueConsumerGroup,
		Consumer:     config.Get().QueueConsumerName,
		MaxAttempts:  config.Get().QueueMaxRetries,
		ClaimIdle:    config.Get().QueueVisibilityTimeout,
		PollInterval: config.Get().QueuePollInterval,
		BatchSize:    config.Get().QueueBatchSize,
		MaxLen:       config.Get().QueueMaxLen,
		DeadLetter:   config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating callback queue", "error", err)
		return
	}

	provider, err := gateways.NewClient(&gateways.Config{
		Endpoints:   providerEndpoints(),
		CallbackURL: config.Get().ProviderCallbackUrl,
		ReturnURL:   config.Get().ProviderReturnUrl,
		Timeout:     config.Get().ProviderTimeout,
		MaxRetries:  config.Get().ProviderMaxRetries,
		RetryDelay:  config.Get().ProviderRetryDelay,
		MaxConns:    config.Get().ProviderMaxConns,
	})
	if err != nil {
		logger.Error("failed creating payment provider client", "error", err)
		return
	}

	propertyRepo := repository.NewPropertyRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	wishlistRepo := repository.NewWishlistRepository(db)

	// services
	propertyService := services.NewPropertyService(propertyRepo)
	viewCounter := services.NewViewCounter(propertyRepo)
	wishlistService := services.NewWishlistService(wishlistRepo, propertyRepo)
	lifecycle := services.NewListingLifecycle(propertyRepo, transactionRepo, provider, services.LifecycleConfig{
		FeeCents:      config.Get().ListingFeeCents,
		Currency:      config.Get().ListingCurrency,
		ExpiryTimeout: config.Get().PaymentExpiryTimeout,
	})
	healthService := services.NewHealthService()

	// v1 handlers
	propertyHandler := handlers.NewPropertyHandler(propertyService, viewCounter)
	paymentHandler := handlers.NewPaymentHandler(lifecycle, callbackQueue, config.Get().ProviderSecret)
	wishlistHandler := handlers.NewWishlistHandler(wishlistService)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterPropertyRoutes(g, propertyHandler)
	handlers.RegisterPaymentRoutes(g, paymentHandler)
	handlers.RegisterWishlistRoutes(g, wishlistHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
	}
}

func providerEndpoints() map[model.PaymentMethod]string {
	endpoints := make(map[model.PaymentMethod]string)
	if v := config.Get().ProviderTelebirrUrl; v != "" {
		endpoints[model.PaymentMethodTelebirr] = v
	}
	if v := config.Get().ProviderCBEUrl; v != "" {
		endpoints[model.PaymentMethodCBE] = v
	}
	if v := config.Get().ProviderCashUrl; v != "" {
		endpoints[model.PaymentMethodCash] = v
	}
	return endpoints
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
