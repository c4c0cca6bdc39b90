package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/domain"
	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/internal/repository/publisher"
)

var _ publisher.LiveTransport = (*LiveTransport)(nil)

const writeWait = 5 * time.Second

// LiveTransport streams live positions over a single websocket to a relay.
// A failed write drops the connection; the dispatcher reconnects later.
type LiveTransport struct {
	url    string
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewLiveTransport(url string) *LiveTransport {
	return &LiveTransport{url: url, dialer: websocket.DefaultDialer}
}

func (t *LiveTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

func (t *LiveTransport) Connect(ctx context.Context) error {
	conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial %s: %w", t.url, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		_ = t.conn.Close()
	}
	t.conn = conn
	return nil
}

type liveMessage struct {
	Type      string  `json:"type"`
	SessionID string  `json:"session_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

func (t *LiveTransport) Send(_ context.Context, pos *domain.LivePosition) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return fmt.Errorf("websocket: not connected")
	}

	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := t.conn.WriteJSON(liveMessage{
		Type:      "location",
		SessionID: pos.SessionID,
		Latitude:  pos.Lat,
		Longitude: pos.Lon,
		Accuracy:  pos.Accuracy,
	})
	if err != nil {
		_ = t.conn.Close()
		t.conn = nil
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

func (t *LiveTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
