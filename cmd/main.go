package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "powersense/docs"
	"powersense/internal/backend"
	"powersense/internal/config"
	"powersense/internal/handlers"
	"powersense/internal/logger"
	"powersense/internal/metrics"
	"powersense/internal/notify"
	"powersense/internal/repository"
	"powersense/internal/repository/db"
	"powersense/internal/server"
	"powersense/internal/service"
	"powersense/internal/weather"
)

// @title                       PowerSense API
// @version                     1.0
// @description                 Relay control, timers, live readings and cost estimates for PowerSense.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	// load configs/config.yml, .env and POWERSENSE_* overrides
	cfg, err := config.Load("configs", ".")
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Get(cfg.LogLevel)

	// open DB
	conn, err := openDB(cfg, log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	m := metrics.New()

	// external clients
	sensors := backend.NewClient(backend.Config{
		BaseURL:       cfg.BackendURL,
		Timeout:       cfg.BackendTimeout,
		ToggleTimeout: cfg.ToggleTimeout,
	}, nil, m)
	weatherClient := weather.NewClient(weather.Config{
		ForecastURL:  cfg.WeatherURL,
		GeocodingURL: cfg.GeocodingURL,
		ReverseURL:   cfg.ReverseURL,
	}, nil)

	deps := service.Deps{
		Backend:        sensors,
		Controller:     sensors,
		Weather:        weatherClient,
		Telemetry:      m,
		Log:            log,
		SigningKey:     cfg.JWTSigningKey,
		TokenTTL:       cfg.TokenTTL,
		ToggleTimeout:  cfg.ToggleTimeout,
		HistoryRefresh: cfg.HistoryRefresh,
		TimerTick:      cfg.TimerTick,
	}
	notifier := connectNotifier(cfg, log)
	if notifier != nil {
		deps.Notifier = notifier
		defer notifier.Close()
	}

	// wire dependencies
	repos := repository.NewRepository(conn)
	services := service.NewService(repos, deps)
	defer services.Close()
	apiHandler := handlers.NewHandler(services, log, m)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// start live monitor
	go services.Monitor.Run(ctx, cfg.MonitorInterval)

	// start HTTP server
	srv := server.New(server.Options{
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	})
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, cfg.ShutdownTimeout, log)
}

// openDB initializes the SQLite database using configuration.
func openDB(cfg *config.Config, log *logger.Logger) (*sql.DB, error) {
	if cfg.DBPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "powersense.db")
		cfg.DBPath = "powersense.db"
	}
	return db.InitDB(cfg.DBPath)
}

// connectNotifier returns nil when no broker is configured or it cannot be reached;
// alerts are then only logged.
func connectNotifier(cfg *config.Config, log *logger.Logger) *notify.MQTTNotifier {
	if cfg.MQTTBroker == "" {
		log.Infow("mqtt.broker not set; alerts are logged only")
		return nil
	}
	n, err := notify.Connect(notify.ClientConfig{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientID,
		Username: cfg.MQTTUsername,
		Password: cfg.MQTTPassword,
		Topic:    cfg.MQTTAlertTopic,
	}, log)
	if err != nil {
		log.Errorw("mqtt_connect_failed", "broker", cfg.MQTTBroker, "err", err)
		return nil
	}
	return n
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		log.Infow("http_listening", "port", port)
		if err := srv.Run(port, handler.InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, timeout time.Duration, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
