package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"powersense/internal/logger"
	"powersense/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ClientConfig holds MQTT connection settings.
type ClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// Topic may contain {user_id}.
	Topic string
}

const publishTimeout = 5 * time.Second

// MQTTNotifier publishes alerts as JSON to a per-user topic.
type MQTTNotifier struct {
	client mqtt.Client
	topic  string
	log    *logger.Logger
}

// Connect dials the broker and returns a notifier bound to it.
func Connect(cfg ClientConfig, log *logger.Logger) (*MQTTNotifier, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is not configured")
	}
	if log == nil {
		log = logger.Nop()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Infow("mqtt_connected", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warnw("mqtt_connection_lost", "error", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return NewMQTTNotifier(client, cfg.Topic, log), nil
}

// NewMQTTNotifier wraps an already connected client.
func NewMQTTNotifier(client mqtt.Client, topic string, log *logger.Logger) *MQTTNotifier {
	if log == nil {
		log = logger.Nop()
	}
	return &MQTTNotifier{client: client, topic: topic, log: log}
}

type alertPayload struct {
	UserID     int       `json:"user_id"`
	DeviceID   string    `json:"device_id,omitempty"`
	Level      string    `json:"level"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notify publishes the alert with QoS 1.
func (n *MQTTNotifier) Notify(ctx context.Context, a models.Alert) error {
	payload, err := json.Marshal(alertPayload{
		UserID:     a.OwnerID,
		DeviceID:   a.DeviceID,
		Level:      a.Level,
		Title:      a.Title,
		Message:    a.Message,
		OccurredAt: a.OccurredAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	topic := FormatTopic(n.topic, a.OwnerID)
	token := n.client.Publish(topic, 1, false, payload)

	wait := publishTimeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d < wait {
			wait = d
		}
	}
	if !token.WaitTimeout(wait) {
		return fmt.Errorf("publish alert to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish alert to %s: %w", topic, err)
	}
	n.log.Debugw("alert_published", "topic", topic, "level", a.Level)
	return nil
}

// Close disconnects from the broker.
func (n *MQTTNotifier) Close() {
	n.client.Disconnect(250)
}

// FormatTopic replaces the {user_id} placeholder.
func FormatTopic(pattern string, userID int) string {
	return strings.ReplaceAll(pattern, "{user_id}", strconv.Itoa(userID))
}
