package weather

import (
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

var ErrNoResult = errors.New("no result")

type Config struct {
	ForecastURL  string
	GeocodingURL string
	ReverseURL   string
	UserAgent    string
	Timeout      time.Duration
}

// Client queries Open-Meteo for weather and geocoding, and a Nominatim
// compatible endpoint for reverse geocoding.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "powersense"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: httpClient}
}

type forecastResponse struct {
	CurrentWeather *struct {
		Temperature float64 `json:"temperature"`
	} `json:"current_weather"`
}

func (c *Client) CurrentTemperature(ctx context.Context, lat, lon float64) (float64, error) {
	q := url.Values{
		"latitude":        {formatCoord(lat)},
		"longitude":       {formatCoord(lon)},
		"current_weather": {"true"},
	}
	var out forecastResponse
	if err := c.getJSON(ctx, c.cfg.ForecastURL, q, &out); err != nil {
		return 0, err
	}
	if out.CurrentWeather == nil {
		return 0, fmt.Errorf("forecast: %w", ErrNoResult)
	}
	return out.CurrentWeather.Temperature, nil
}

type reverseResponse struct {
	Address struct {
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
		County       string `json:"county"`
	} `json:"address"`
}

// LocationName returns the city (or nearest named place) at a point.
func (c *Client) LocationName(ctx context.Context, lat, lon float64) (string, error) {
	if c.cfg.ReverseURL == "" {
		return "", ErrNoResult
	}
	q := url.Values{
		"format": {"jsonv2"},
		"lat":    {formatCoord(lat)},
		"lon":    {formatCoord(lon)},
	}
	var out reverseResponse
	if err := c.getJSON(ctx, c.cfg.ReverseURL, q, &out); err != nil {
		return "", err
	}
	a := out.Address
	for _, name := range []string{a.City, a.Town, a.Village, a.Municipality, a.County} {
		if strings.TrimSpace(name) != "" {
			return name, nil
		}
	}
	return "", ErrNoResult
}

type searchResponse struct {
	Results []models.Place `json:"results"`
}

// Search resolves a place name to at most count matches.
func (c *Client) Search(ctx context.Context, name string, count int) ([]models.Place, error) {
	q := url.Values{
		"name":     {name},
		"count":    {strconv.Itoa(count)},
		"language": {"en"},
		"format":   {"json"},
	}
	var out searchResponse
	if err := c.getJSON(ctx, c.cfg.GeocodingURL, q, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) getJSON(ctx context.Context, base string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("GET %s: status %d: %s", base, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decode: %w", base, err)
	}
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
