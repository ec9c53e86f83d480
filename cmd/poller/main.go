package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ikimina/tontine-gateway/internal/config"
	"github.com/ikimina/tontine-gateway/internal/events"
	"github.com/ikimina/tontine-gateway/internal/gateway"
	"github.com/ikimina/tontine-gateway/internal/poller"
	"github.com/ikimina/tontine-gateway/internal/repository"
	"github.com/ikimina/tontine-gateway/internal/services"
	"github.com/ikimina/tontine-gateway/pkg/logger"
	"github.com/ikimina/tontine-gateway/pkg/pg"
	"github.com/ikimina/tontine-gateway/pkg/prom"
	"github.com/ikimina/tontine-gateway/pkg/redis"
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

	gw, err := gateway.NewClient(&gateway.Config{
		BaseURL:         config.Get().GatewayBaseURL,
		APIKey:          config.Get().GatewayAPIKey,
		APISecret:       config.Get().GatewayAPISecret,
		InitiateTimeout: config.Get().GatewayInitiateTimeout,
		StatusTimeout:   config.Get().GatewayStatusTimeout,
	})
	if err != nil {
		logger.Error("failed to create gateway client", "error", err)
		return
	}

	paymentRepo := repository.NewPaymentRepository(db)
	pollJobRepo := repository.NewPollJobRepository(db)
	loanRepo := repository.NewLoanRepository(db)
	penaltyRepo := repository.NewPenaltyRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notifier := events.NewNotifier(redisAdap)

	paymentService := services.NewPaymentService(
		paymentRepo, pollJobRepo, loanRepo, penaltyRepo, notificationRepo,
		gw, notifier,
		services.PollConfig{
			InitialDelay: config.Get().PollerInitialDelay,
			MaxAttempts:  config.Get().PollerMaxAttempts,
		},
	)

	p := poller.New(pollJobRepo, gw, paymentService, poller.Config{
		Interval:     config.Get().PollerInterval,
		TickInterval: config.Get().PollerTickInterval,
		BatchSize:    config.Get().PollerBatchSize,
		Workers:      config.Get().PollerWorkers,
	})

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
		prom.ListenAndServer(":9101", "/metrics")
	}()

	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
	}()

	logger.Info("status poller starting",
		"interval", config.Get().PollerInterval,
		"tick", config.Get().PollerTickInterval,
		"workers", config.Get().PollerWorkers,
	)
	if err := p.Run(ctx); err != nil {
		logger.Error("poller stopped", "error", err)
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
