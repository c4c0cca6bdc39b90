package subscriber

import (
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	permissionTopicFormat  = "/walk/session/%s/permission"
	permissionTopicPattern = "/walk/session/+/permission"
)

func PermissionTopic(sessionID string) string {
	return fmt.Sprintf(permissionTopicFormat, sessionID)
}

type permissionSetter interface {
	Set(sessionID string, granted bool)
}

type permissionMessage struct {
	Granted bool `json:"granted"`
}

// PermissionSubscriber relays location-permission changes reported by the
// walker's device.
type PermissionSubscriber struct {
	client mqtt.Client
	perms  permissionSetter
	logger *zap.Logger
}

func NewPermissionSubscriber(client mqtt.Client, perms permissionSetter, logger *zap.Logger) *PermissionSubscriber {
	return &PermissionSubscriber{
		client: client,
		perms:  perms,
		logger: logger.Named("permission_subscriber"),
	}
}

func (s *PermissionSubscriber) Start() error {
	token := s.client.Subscribe(permissionTopicPattern, 1, s.handleMessage)
	token.Wait()
	return token.Error()
}

func (s *PermissionSubscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	sessionID := sessionFromTopic(msg.Topic())
	if sessionID == "" {
		s.logger.Warn("permission message on unexpected topic", zap.String("topic", msg.Topic()))
		return
	}

	var raw permissionMessage
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		s.logger.Warn("invalid permission message", zap.Error(err))
		return
	}

	s.perms.Set(sessionID, raw.Granted)
	s.logger.Info("location permission changed",
		zap.String("session_id", sessionID),
		zap.Bool("granted", raw.Granted),
	)
}

// sessionFromTopic extracts the session id from /walk/session/<id>/<kind>.
func sessionFromTopic(topic string) string {
	parts := strings.Split(strings.TrimPrefix(topic, "/"), "/")
	if len(parts) != 4 || parts[0] != "walk" || parts[1] != "session" {
		return ""
	}
	return parts[2]
}
