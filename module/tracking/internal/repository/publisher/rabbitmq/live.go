package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/domain"
	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/internal/repository/publisher"
)

var _ publisher.LiveTransport = (*LiveTransport)(nil)

const ExchangeName = "tracking.live"

type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

type connection interface {
	Channel() (channel, error)
	IsClosed() bool
	Close() error
}

type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) Channel() (channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

type dialFunc func(url string, cfg amqp.Config) (connection, error)

func dialAMQP(url string, cfg amqp.Config) (connection, error) {
	conn, err := amqp.DialConfig(url, cfg)
	if err != nil {
		return nil, err
	}
	return amqpConnection{conn}, nil
}

// LiveTransport publishes live positions to a fanout exchange. Connect
// reopens the channel while the connection is alive and redials once it is
// gone. Only connections the transport dialed itself are closed by it.
type LiveTransport struct {
	url  string
	cfg  amqp.Config
	dial dialFunc

	mu       sync.Mutex
	conn     connection
	ownsConn bool
	ch       channel
}

func NewLiveTransport(url string, cfg amqp.Config) *LiveTransport {
	return &LiveTransport{url: url, cfg: cfg, dial: dialAMQP}
}

// NewLiveTransportFromConn reuses an already dialled connection.
func NewLiveTransportFromConn(url string, conn *amqp.Connection, cfg amqp.Config) (*LiveTransport, error) {
	t := NewLiveTransport(url, cfg)
	if err := t.open(amqpConnection{conn}, false); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *LiveTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil && !t.conn.IsClosed() && t.ch != nil && !t.ch.IsClosed()
}

func (t *LiveTransport) Connect(_ context.Context) error {
	t.mu.Lock()
	conn, owned := t.conn, t.ownsConn
	t.mu.Unlock()

	if conn != nil && !conn.IsClosed() {
		return t.open(conn, owned)
	}

	conn, err := t.dial(t.url, t.cfg)
	if err != nil {
		return fmt.Errorf("rabbitmq connect: %w", err)
	}
	if err := t.open(conn, true); err != nil {
		_ = conn.Close()
		return err
	}
	return nil
}

// open declares the exchange on a new channel of conn and swaps it in,
// releasing the previous channel and any previous connection we own.
func (t *LiveTransport) open(conn connection, owned bool) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(ExchangeName, "fanout", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}

	t.mu.Lock()
	oldConn, oldOwned, oldCh := t.conn, t.ownsConn, t.ch
	t.conn, t.ownsConn, t.ch = conn, owned, ch
	t.mu.Unlock()

	if oldCh != nil {
		_ = oldCh.Close()
	}
	if oldConn != nil && oldOwned && oldConn != conn {
		_ = oldConn.Close()
	}
	return nil
}

type liveMessage struct {
	SessionID string  `json:"session_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

func (t *LiveTransport) Send(ctx context.Context, pos *domain.LivePosition) error {
	t.mu.Lock()
	ch := t.ch
	t.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("rabbitmq: not connected")
	}

	body, err := json.Marshal(liveMessage{
		SessionID: pos.SessionID,
		Latitude:  pos.Lat,
		Longitude: pos.Lon,
		Accuracy:  pos.Accuracy,
	})
	if err != nil {
		return fmt.Errorf("marshal live position: %w", err)
	}

	return ch.PublishWithContext(ctx, ExchangeName, pos.SessionID, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

func (t *LiveTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ch != nil {
		_ = t.ch.Close()
		t.ch = nil
	}
	if t.conn == nil || !t.ownsConn {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
