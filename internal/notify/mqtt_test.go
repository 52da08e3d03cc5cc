package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"powersense/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeToken is a completed paho token.
type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient records publishes; the embedded interface panics on anything else.
type fakeClient struct {
	mqtt.Client
	sent []published
	err  error
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.sent = append(c.sent, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return &fakeToken{err: c.err}
}

func TestFormatTopic(t *testing.T) {
	assert.Equal(t, "powersense/alerts/42", FormatTopic("powersense/alerts/{user_id}", 42))
	assert.Equal(t, "static", FormatTopic("static", 1))
}

func TestMQTTNotifier_Notify(t *testing.T) {
	client := &fakeClient{}
	n := NewMQTTNotifier(client, "powersense/alerts/{user_id}", nil)
	at := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

	err := n.Notify(context.Background(), models.Alert{
		OwnerID:    7,
		DeviceID:   "r-1",
		Level:      models.AlertWarning,
		Title:      "Abnormal: Kettle",
		Message:    "Usage > 1000.00W.",
		OccurredAt: at,
	})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)
	assert.Equal(t, "powersense/alerts/7", client.sent[0].topic)
	assert.Equal(t, byte(1), client.sent[0].qos)

	var got alertPayload
	require.NoError(t, json.Unmarshal(client.sent[0].payload, &got))
	assert.Equal(t, 7, got.UserID)
	assert.Equal(t, "r-1", got.DeviceID)
	assert.True(t, got.OccurredAt.Equal(at))
}

func TestMQTTNotifier_PublishError(t *testing.T) {
	client := &fakeClient{err: errors.New("not connected")}
	n := NewMQTTNotifier(client, "a/{user_id}", nil)

	err := n.Notify(context.Background(), models.Alert{OwnerID: 1})
	assert.ErrorContains(t, err, "not connected")
}

func TestConnect_RequiresBroker(t *testing.T) {
	_, err := Connect(ClientConfig{}, nil)
	assert.Error(t, err)
}
