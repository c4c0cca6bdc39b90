package tracking

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	handler "github.com/Michaelch2406/MascotaLink-sub003/module/tracking/internal/handler/http"
	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/internal/handler/subscriber"
	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/internal/repository/database/postgres"
	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/internal/repository/publisher"
	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/internal/repository/publisher/rabbitmq"
	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/internal/repository/publisher/websocket"
	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/service"
)

const (
	LiveRabbitMQ  = "rabbitmq"
	LiveWebsocket = "websocket"

	liveConnectTimeout = 5 * time.Second
)

// Options selects the live transport and tunes the pipeline.
type Options struct {
	Pipeline         service.Config
	LiveTransport    string
	RabbitMQURL      string
	LiveWebsocketURL string

	// AMQPConfig is used when the RabbitMQ live transport redials.
	AMQPConfig amqp.Config
}

// liveTransport is a publisher.LiveTransport the module owns and closes.
type liveTransport interface {
	publisher.LiveTransport
	io.Closer
}

type Module struct {
	Sessions    *service.Manager
	Permissions *service.PermissionRegistry
	LocationSvc *service.LocationService

	live        liveTransport
	registry    *prometheus.Registry
	positions   *handler.PositionHandler
	sessions    *handler.SessionHandler
	permissions *subscriber.PermissionSubscriber
}

func Build(db *sql.DB, amqpConn *amqp.Connection, mqttClient mqtt.Client, opts Options, logger *zap.Logger) (*Module, error) {
	if err := opts.Pipeline.Validate(); err != nil {
		return nil, fmt.Errorf("tracking config: %w", err)
	}

	live, err := newLiveTransport(amqpConn, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("live transport: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := service.NewMetrics(registry)

	positionRepo := postgres.NewPositionRepo(db)
	clk := clock.New()
	dispatcher := service.NewDispatcher(live, positionRepo, opts.Pipeline.Dispatcher, clk, metrics, logger)

	perms := service.NewPermissionRegistry()
	manager := service.NewManager(service.SessionDeps{
		Config:      opts.Pipeline,
		Source:      subscriber.NewFixSource(mqttClient, logger),
		Permissions: perms,
		Dispatcher:  dispatcher,
		Clock:       clk,
		Metrics:     metrics,
		Logger:      logger,
	}, perms)
	locationSvc := service.NewLocationService(positionRepo)

	return &Module{
		Sessions:    manager,
		Permissions: perms,
		LocationSvc: locationSvc,
		live:        live,
		registry:    registry,
		positions:   handler.NewPositionHandler(locationSvc),
		sessions:    handler.NewSessionHandler(manager, perms),
		permissions: subscriber.NewPermissionSubscriber(mqttClient, perms, logger),
	}, nil
}

func newLiveTransport(amqpConn *amqp.Connection, opts Options, logger *zap.Logger) (liveTransport, error) {
	switch opts.LiveTransport {
	case LiveRabbitMQ, "":
		return rabbitmq.NewLiveTransportFromConn(opts.RabbitMQURL, amqpConn, opts.AMQPConfig)
	case LiveWebsocket:
		t := websocket.NewLiveTransport(opts.LiveWebsocketURL)
		ctx, cancel := context.WithTimeout(context.Background(), liveConnectTimeout)
		defer cancel()
		// A relay that is down at boot is retried by the dispatcher.
		if err := t.Connect(ctx); err != nil {
			logger.Warn("live relay unavailable at startup",
				zap.String("url", opts.LiveWebsocketURL),
				zap.Error(err),
			)
		}
		return t, nil
	}
	return nil, fmt.Errorf("unknown live transport %q", opts.LiveTransport)
}

func (m *Module) RegisterRoutes(r *gin.RouterGroup) {
	m.positions.Register(r)
	m.sessions.Register(r)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})))
}

func (m *Module) StartSubscribers() error {
	return m.permissions.Start()
}

// LiveConnected reports whether the live transport is currently usable.
func (m *Module) LiveConnected() bool {
	return m.live.Connected()
}

// Shutdown stops every session, waits for issued sink writes and closes
// the live transport.
func (m *Module) Shutdown() error {
	m.Sessions.StopAll()
	return m.live.Close()
}

func FixTopic(sessionID string) string {
	return subscriber.FixTopic(sessionID)
}

func PermissionTopic(sessionID string) string {
	return subscriber.PermissionTopic(sessionID)
}
