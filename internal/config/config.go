package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the typed view of configs/config.yml plus POWERSENSE_* env overrides.
type Config struct {
	Port     string
	LogLevel string

	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration

	DBPath string

	JWTSigningKey string
	TokenTTL      time.Duration

	BackendURL     string
	BackendTimeout time.Duration
	ToggleTimeout  time.Duration

	WeatherURL   string
	GeocodingURL string
	ReverseURL   string

	MQTTBroker      string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTAlertTopic  string
	MonitorInterval time.Duration
	HistoryRefresh  time.Duration
	TimerTick       time.Duration
}

const envPrefix = "POWERSENSE"

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("db.path", "powersense.db")
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("backend.url", "https://backend.powersense.site")
	v.SetDefault("backend.timeout", 15*time.Second)
	v.SetDefault("backend.toggle_timeout", 5*time.Second)
	v.SetDefault("weather.url", "https://api.open-meteo.com/v1/forecast")
	v.SetDefault("weather.geocoding_url", "https://geocoding-api.open-meteo.com/v1/search")
	v.SetDefault("weather.reverse_url", "https://nominatim.openstreetmap.org/reverse")
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "powersense")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.alert_topic", "powersense/alerts/{user_id}")
	v.SetDefault("monitor.interval", 3*time.Second)
	v.SetDefault("monitor.history_refresh", 15*time.Second)
	v.SetDefault("timer.tick", time.Second)
}

// Load reads an optional .env file, then the config file found in paths,
// then environment variables. A missing config file is not an error.
func Load(paths ...string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:            v.GetString("port"),
		LogLevel:        strings.ToLower(v.GetString("log.level")),

		ReadHeaderTimeout: v.GetDuration("server.read_header_timeout"),
		WriteTimeout:      v.GetDuration("server.write_timeout"),
		IdleTimeout:       v.GetDuration("server.idle_timeout"),
		ShutdownTimeout:   v.GetDuration("server.shutdown_timeout"),

		DBPath:          v.GetString("db.path"),
		JWTSigningKey:   v.GetString("auth.signing_key"),
		TokenTTL:        v.GetDuration("auth.token_ttl"),
		BackendURL:      strings.TrimRight(v.GetString("backend.url"), "/"),
		BackendTimeout:  v.GetDuration("backend.timeout"),
		ToggleTimeout:   v.GetDuration("backend.toggle_timeout"),
		WeatherURL:      v.GetString("weather.url"),
		GeocodingURL:    v.GetString("weather.geocoding_url"),
		ReverseURL:      v.GetString("weather.reverse_url"),
		MQTTBroker:      v.GetString("mqtt.broker"),
		MQTTClientID:    v.GetString("mqtt.client_id"),
		MQTTUsername:    v.GetString("mqtt.username"),
		MQTTPassword:    v.GetString("mqtt.password"),
		MQTTAlertTopic:  v.GetString("mqtt.alert_topic"),
		MonitorInterval: v.GetDuration("monitor.interval"),
		HistoryRefresh:  v.GetDuration("monitor.history_refresh"),
		TimerTick:       v.GetDuration("timer.tick"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSigningKey == "" {
		return errors.New("auth.signing_key must be set")
	}
	if c.BackendURL == "" {
		return errors.New("backend.url must be set")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive, got %s", c.TokenTTL)
	}
	if c.MonitorInterval <= 0 || c.TimerTick <= 0 {
		return errors.New("monitor.interval and timer.tick must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive, got %s", c.ShutdownTimeout)
	}
	return nil
}
