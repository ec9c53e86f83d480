package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ikimina/tontine-gateway/internal/config"
	"github.com/ikimina/tontine-gateway/internal/events"
	"github.com/ikimina/tontine-gateway/internal/gateway"
	"github.com/ikimina/tontine-gateway/internal/handlers"
	"github.com/ikimina/tontine-gateway/internal/poller"
	"github.com/ikimina/tontine-gateway/internal/repository"
	"github.com/ikimina/tontine-gateway/internal/services"
	xhttp "github.com/ikimina/tontine-gateway/pkg/http"
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

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 65))
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

	// services
	paymentService := services.NewPaymentService(
		paymentRepo, pollJobRepo, loanRepo, penaltyRepo, notificationRepo,
		gw, notifier,
		services.PollConfig{
			InitialDelay: config.Get().PollerInitialDelay,
			MaxAttempts:  config.Get().PollerMaxAttempts,
		},
	)
	reconciler := poller.NewReconciler(paymentService, gw, paymentService, redisAdap, time.Minute)

	// v1 handlers
	paymentHandler := handlers.NewPaymentHandler(paymentService, reconciler)
	healthHandler := handlers.NewHealthHandler(config.Get().AppName)

	g := s.Router.Group("/api/v1")
	handlers.RegisterPaymentRoutes(g, paymentHandler)
	handlers.RegisterHealthRoutes(s.Router, healthHandler)

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

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

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
