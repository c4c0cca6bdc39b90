package subscriber

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/domain"
)

const (
	fixTopicFormat    = "/walk/session/%s/fix"
	defaultBufferSize = 32
)

func FixTopic(sessionID string) string {
	return fmt.Sprintf(fixTopicFormat, sessionID)
}

type fixMessage struct {
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Accuracy    float64  `json:"accuracy"`
	Speed       *float64 `json:"speed,omitempty"`
	TimestampMs int64    `json:"timestamp_ms"`
}

// FixSource is the MQTT positioning source: each session's device
// publishes its fixes on its own topic.
type FixSource struct {
	client     mqtt.Client
	logger     *zap.Logger
	bufferSize int
}

func NewFixSource(client mqtt.Client, logger *zap.Logger) *FixSource {
	return &FixSource{
		client:     client,
		logger:     logger.Named("fix_source"),
		bufferSize: defaultBufferSize,
	}
}

// Subscribe streams the session's fixes until ctx is cancelled, after which
// the topic is unsubscribed and the channel closed.
func (s *FixSource) Subscribe(ctx context.Context, sessionID string) (<-chan domain.PositionFix, error) {
	stream := &fixStream{
		out:    make(chan domain.PositionFix, s.bufferSize),
		logger: s.logger.With(zap.String("session_id", sessionID)),
	}

	topic := FixTopic(sessionID)
	token := s.client.Subscribe(topic, 1, stream.handleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}

	go func() {
		<-ctx.Done()
		if token := s.client.Unsubscribe(topic); token.Wait() && token.Error() != nil {
			stream.logger.Warn("mqtt unsubscribe failed", zap.Error(token.Error()))
		}
		stream.close()
	}()

	return stream.out, nil
}

type fixStream struct {
	out    chan domain.PositionFix
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

func (s *fixStream) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var raw fixMessage
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		s.logger.Warn("invalid fix message", zap.Error(err))
		return
	}

	if err := validateFixMessage(&raw); err != nil {
		s.logger.Warn("fix validation error", zap.Error(err))
		return
	}

	fix := domain.PositionFix{
		Lat:        raw.Latitude,
		Lon:        raw.Longitude,
		Accuracy:   raw.Accuracy,
		Speed:      raw.Speed,
		CapturedAt: time.UnixMilli(raw.TimestampMs),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.out <- fix:
	default:
		s.logger.Warn("fix buffer full, dropping fix")
	}
}

func (s *fixStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
}

func validateFixMessage(msg *fixMessage) error {
	if msg.Latitude < -90 || msg.Latitude > 90 {
		return fmt.Errorf("latitude: must be between -90 and 90")
	}
	if msg.Longitude < -180 || msg.Longitude > 180 {
		return fmt.Errorf("longitude: must be between -180 and 180")
	}
	if msg.Accuracy < 0 {
		return fmt.Errorf("accuracy: must not be negative")
	}
	if msg.Speed != nil && *msg.Speed < 0 {
		return fmt.Errorf("speed: must not be negative")
	}
	if msg.TimestampMs <= 0 {
		return fmt.Errorf("timestamp_ms: must be positive")
	}
	return nil
}
