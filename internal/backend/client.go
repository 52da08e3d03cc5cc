package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"powersense/internal/models"
)

var ErrBlankEndpoint = errors.New("relay control endpoint is blank")

// StatusError is returned for any non-200 answer.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

// Observer receives one call per backend round-trip.
type Observer interface {
	ObserveBackend(op string, d time.Duration, err error)
}

type Config struct {
	BaseURL       string
	Timeout       time.Duration
	ToggleTimeout time.Duration
}

// Client talks to the sensor REST backend.
type Client struct {
	baseURL       string
	http          *http.Client
	toggleTimeout time.Duration
	observer      Observer
}

func NewClient(cfg Config, httpClient *http.Client, observer Observer) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.ToggleTimeout <= 0 {
		cfg.ToggleTimeout = 5 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		http:          httpClient,
		toggleTimeout: cfg.ToggleTimeout,
		observer:      observer,
	}
}

func (c *Client) LatestReadings(ctx context.Context) (models.SensorData, error) {
	var out models.SensorData
	err := c.getJSON(ctx, "latest", "/api/sensors/latest", nil, &out)
	return out, err
}

// History returns chart data covering the last `hours` hours.
func (c *Client) History(ctx context.Context, hours int) (models.HistoricalSensorData, error) {
	var out models.HistoricalSensorData
	q := url.Values{"interval": {strconv.Itoa(hours)}}
	err := c.getJSON(ctx, "history", "/api/sensor-data", q, &out)
	return out, err
}

func (c *Client) RelayUsage(ctx context.Context, hours int) (models.RelayUsage, error) {
	var out models.RelayUsage
	q := url.Values{"interval": {strconv.Itoa(hours)}}
	err := c.getJSON(ctx, "relay_usage", "/api/relay-usage", q, &out)
	return out, err
}

type toggleRequest struct {
	State bool `json:"state"`
}

// SetRelayState asks the backend to switch a relay. Only HTTP 200 is success.
func (c *Client) SetRelayState(ctx context.Context, endpoint string, on bool) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return ErrBlankEndpoint
	}
	ctx, cancel := context.WithTimeout(ctx, c.toggleTimeout)
	defer cancel()
	return c.postJSON(ctx, "toggle", "/api/relays/"+url.PathEscape(endpoint)+"/toggle", toggleRequest{State: on})
}

type configRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SyncRelayConfig pushes a relay's display name to the backend.
func (c *Client) SyncRelayConfig(ctx context.Context, endpoint, name, description string) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return ErrBlankEndpoint
	}
	return c.postJSON(ctx, "config", "/api/relays/"+url.PathEscape(endpoint)+"/config",
		configRequest{Name: name, Description: description})
}

func (c *Client) getJSON(ctx context.Context, op, path string, q url.Values, out any) (err error) {
	defer c.observe(op, time.Now(), &err)

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(op, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, body any) (err error) {
	defer c.observe(op, time.Now(), &err)

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(op, resp)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return nil
}

func statusError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}

func (c *Client) observe(op string, start time.Time, err *error) {
	if c.observer != nil {
		c.observer.ObserveBackend(op, time.Since(start), *err)
	}
}
