package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gurleenkaurbp/gk-edge-sip2/internal/admin"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/backend"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/backend/tokencache"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/circulation"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/events"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/feefines"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/item"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/patron"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/platform/config"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/platform/httpserver"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/platform/logger"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/platform/metrics"
	platformredis "github.com/gurleenkaurbp/gk-edge-sip2/internal/platform/redis"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/transport/tcp"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/users"
	"github.com/gurleenkaurbp/gk-edge-sip2/internal/verification"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Protocol and business logic live in the internal packages.
func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New("info", false)
		bootLog.Fatal().Err(err).Msg("configuration invalid")
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	m := metrics.New()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("redis unavailable")
	}

	var tokens tokencache.Cache = tokencache.NewMemoryCache()
	if redisClient != nil {
		tokens = tokencache.NewRedisCache(redisClient.Client)
		defer redisClient.Close()
	}

	login := backend.NewLoginService(cfg.Backend.BaseURL, nil,
		cfg.Backend.Username, cfg.Backend.Password, tokens, log)
	provider := backend.NewHTTPProvider(cfg.Backend.BaseURL,
		&http.Client{Timeout: cfg.Backend.Timeout}, login, m, log)

	userRepo := users.NewRepository(provider, log)
	verifier := verification.NewVerifier(userRepo, login, log)
	circulationRepo := circulation.NewRepository(provider, verifier, log)
	feeRepo := feefines.NewRepository(provider, userRepo, log)
	itemRepo := item.NewRepository(provider, log)
	patronRepo := patron.NewRepository(circulationRepo, feeRepo, verifier, log)

	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var eventInbox chan events.Event
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Fatal().Err(err).Msg("kafka unavailable")
		}
		defer publisher.Close()
		eventInbox = make(chan events.Event, 256)
		go func() {
			if err := events.NewWorker(publisher, eventInbox).Run(ctx); err != nil &&
				ctx.Err() == nil {
				log.Error().Err(err).Msg("event worker stopped")
			}
		}()
	}

	checks := map[string]admin.HealthChecker{}
	if redisClient != nil {
		checks["redis"] = redisClient
	}
	adminSrv := httpserver.New(cfg.AdminAddr, admin.NewRouter(checks))
	go func() {
		log.Info().Str("addr", cfg.AdminAddr).Msg("admin server listening")
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("admin server failed")
		}
	}()

	server := tcp.NewServer(cfg, tcp.Handlers{
		Circulation: circulationRepo,
		Patron:      patronRepo,
		FeeFines:    feeRepo,
		Item:        itemRepo,
		Login:       login,
	}, m, eventInbox, log)

	go func() {
		if err := server.ListenAndServe(ctx); err != nil {
			log.Fatal().Err(err).Msg("wire server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	server.Shutdown()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("admin shutdown failed")
	}
}
