package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/SergeyBogomolovv/checkout-service/internal/app"
	"github.com/SergeyBogomolovv/checkout-service/internal/backend"
	"github.com/SergeyBogomolovv/checkout-service/internal/carrier"
	"github.com/SergeyBogomolovv/checkout-service/internal/checkout"
	"github.com/SergeyBogomolovv/checkout-service/internal/config"
	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/internal/events"
	"github.com/SergeyBogomolovv/checkout-service/internal/handler"
	"github.com/SergeyBogomolovv/checkout-service/internal/payment"
	"github.com/SergeyBogomolovv/checkout-service/internal/postgres"
	"github.com/SergeyBogomolovv/checkout-service/internal/recaptcha"
	"github.com/SergeyBogomolovv/checkout-service/internal/regions"
	"github.com/SergeyBogomolovv/checkout-service/internal/session"
	"github.com/SergeyBogomolovv/checkout-service/pkg/cache"
	"github.com/SergeyBogomolovv/checkout-service/pkg/trm"

	"github.com/joho/godotenv"
)

func main() {
	conf := config.New()
	logger := newLogger(conf.Env)
	panicIfErr("invalid config", conf.Validate())

	db, err := postgres.New(conf.Postgres)
	panicIfErr("failed to connect to db", err)
	defer db.Close()
	logger.Info("postgres connected")

	backendClient := backend.New(logger, backend.Config{
		BaseURL: conf.Backend.BaseURL,
		Timeout: conf.Backend.Timeout,
	})

	sessionStore := session.NewStore(db)
	txManager := trm.NewManager(db)
	carrierStore := carrier.NewStore(logger, backendClient, txManager, db)

	broadcaster := events.NewKafkaBroadcaster(events.KafkaConfig{
		Brokers:      conf.Kafka.Brokers,
		Topic:        conf.Kafka.EventsTopic,
		BatchTimeout: conf.Kafka.BatchTimeout,
	})
	defer broadcaster.Close()

	regionCache := cache.NewLRUCache(conf.Cache.Capacity, conf.Cache.TTL)
	regionDirectory := regions.NewDirectory(logger, backendClient, regionCache)

	coordinator := checkout.NewCoordinator(logger, backendClient, carrierStore, sessionStore, broadcaster)
	strategies := payment.NewRegistry(
		payment.NewStandardStrategy(logger, backendClient),
		payment.NewBridgeStrategy(logger, backendClient),
	)

	scriptLoader := recaptchaLoader(conf.Recaptcha.ScriptURL)
	machines := checkout.NewManager(sessionStore, func(deviceID string, sess entities.CartSession) *checkout.Machine {
		return checkout.NewMachine(logger, deviceID, sess, checkout.Deps{
			Backend:     backendClient,
			Regions:     regionDirectory,
			Strategies:  strategies,
			Gate:        recaptcha.NewGate(scriptLoader, conf.Recaptcha.TokenTTL),
			Coordinator: coordinator,
		})
	})

	httpHandler := handler.NewHTTPHandler(logger, machines, carrierStore)
	bridgeHandler := handler.NewBridgeHandler(logger, backendClient, conf.Bridge.RateLimit)
	kafkaHandler := handler.NewKafkaHandler(logger, conf.Kafka, sessionStore, backendClient, machines, broadcaster)
	handler.RegisterMetrics()

	app := app.New(logger, conf)
	app.SetHTTPHandlers(httpHandler, bridgeHandler)
	app.SetConsumers(kafkaHandler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	regionCache.StartJanitor(ctx)
	app.Start(ctx)
	<-ctx.Done()
	app.Stop()
}

func init() {
	godotenv.Load()
}

// recaptchaLoader checks the third-party script once per gate lifetime.
func recaptchaLoader(url string) recaptcha.Loader {
	return func() error {
		res, err := http.Head(url)
		if err != nil {
			return fmt.Errorf("failed to reach verification script: %w", err)
		}
		res.Body.Close()
		if res.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("verification script unavailable: %s", res.Status)
		}
		return nil
	}
}

func newLogger(env string) *slog.Logger {
	switch env {
	case "production":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

func panicIfErr(prefix string, err error) {
	if err != nil {
		panic(prefix + ": " + err.Error())
	}
}
