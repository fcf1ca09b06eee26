package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gobwas/ws"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Samane-mnejad/real-time-trading/cmd/server/internal/api"
	"github.com/Samane-mnejad/real-time-trading/cmd/server/internal/auth"
	"github.com/Samane-mnejad/real-time-trading/cmd/server/internal/export"
	"github.com/Samane-mnejad/real-time-trading/cmd/server/internal/gateway"
	"github.com/Samane-mnejad/real-time-trading/cmd/server/internal/hub"
	"github.com/Samane-mnejad/real-time-trading/cmd/server/internal/market"
	"github.com/Samane-mnejad/real-time-trading/cmd/server/internal/metrics"
	"github.com/Samane-mnejad/real-time-trading/pkg/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := config.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	sessions, err := newSessionStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize session store", zap.Error(err))
	}

	rnd := market.RealRand{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
	feed := market.NewFeed(logger, market.DefaultInstruments(), cfg.Market.TickInterval,
		cfg.Market.HistoryDays, market.RealClock{}, rnd)

	wsHub := hub.NewHub(logger)
	feed.Subscribe(wsHub.BroadcastPrice)

	var publisher *export.Publisher
	if cfg.Kafka.Enabled {
		publisher = export.NewPublisher(export.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), logger)
		feed.Subscribe(publisher.Publish)
		logger.Info("Kafka export enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	feed.Start()

	mux := http.NewServeMux()
	api.NewHandler(sessions, feed, logger).Register(mux)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		token := gateway.ExtractToken(r)
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}
		gateway.NewClient(conn, wsHub, sessions, feed, logger).Start(token)
	})

	srv := &http.Server{Addr: cfg.App.Port, Handler: mux}

	go func() {
		logger.Info("Server Started", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("Shutdown signal received")

	feed.Stop()
	wsHub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("Error closing Kafka writer", zap.Error(err))
		}
	}
	if err := sessions.Close(); err != nil {
		logger.Error("Error closing session store", zap.Error(err))
	}

	logger.Info("Shutdown Complete")
}

func newSessionStore(cfg *config.Config, logger *zap.Logger) (auth.Store, error) {
	creds := auth.DemoCredentials()

	switch cfg.Session.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		logger.Info("Using redis session backend", zap.String("addr", cfg.Redis.Addr))
		return auth.NewRedisStore(rdb, creds, cfg.Session.TTL), nil
	default:
		return auth.NewMemoryStore(creds), nil
	}
}
