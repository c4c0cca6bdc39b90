package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Michaelch2406/MascotaLink-sub003/config"
	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) (err error) {
	db, err := config.NewPostgres(cfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, db.Close()) }()

	amqpConn, err := config.NewRabbitMQ(cfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, amqpConn.Close()) }()

	mqttClient, err := config.NewMQTT(cfg, logger)
	if err != nil {
		return err
	}
	defer mqttClient.Disconnect(250)

	trackingModule, err := tracking.Build(db, amqpConn, mqttClient, tracking.Options{
		Pipeline:         cfg.Pipeline,
		LiveTransport:    cfg.LiveTransport,
		RabbitMQURL:      cfg.RabbitMQURL,
		LiveWebsocketURL: cfg.LiveWebsocketURL,
		AMQPConfig:       config.AMQPConfig(cfg),
	}, logger)
	if err != nil {
		return err
	}

	if err := trackingModule.StartSubscribers(); err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	health := config.NewHealthChecker(db, amqpConn, mqttClient, trackingModule.LiveConnected)
	health.Register(r)

	trackingModule.RegisterRoutes(&r.RouterGroup)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("live_transport", cfg.LiveTransport))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return multierr.Combine(
			srv.Shutdown(shutdownCtx),
			trackingModule.Shutdown(),
		)
	})

	return g.Wait()
}
