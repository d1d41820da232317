// ABOUTME: Entry point for the ScanRelay SonarQube webhook relay service.
// ABOUTME: Handles initialization, configuration parsing, and starts the HTTP server.

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jfeddern/ScanRelay/internal/config"
	"github.com/jfeddern/ScanRelay/internal/engine"
	"github.com/jfeddern/ScanRelay/internal/metrics"
	"github.com/jfeddern/ScanRelay/internal/providers"
	"github.com/jfeddern/ScanRelay/internal/server"

	"github.com/sirupsen/logrus"
)

func main() {
	// Set up structured logging
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	configFile, overrides, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		logger.WithError(err).Fatal("Failed to parse flags")
	}

	cfg, err := config.Load(configFile, overrides)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	logger.SetLevel(parseLogLevel(cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Received shutdown signal")
		cancel()
	}()

	if err := providers.LoadClusterCredentials(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("Failed to load cluster credentials")
	}

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	relay, err := NewRelay(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create relay")
	}

	if err := relay.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start relay")
	}
}

// parseFlags reads command line flags. Only flags that were passed explicitly
// become overrides, so unset flags never mask environment values.
func parseFlags(fs *flag.FlagSet, args []string) (string, config.Overrides, error) {
	var (
		overrides  config.Overrides
		configFile string
		mode       string
		port       int
		mock       bool
	)

	fs.StringVar(&configFile, "config", "", "Path to a YAML config file")
	fs.StringVar(&mode, "mode", config.ModeLocal, "Operation mode: cluster or local")
	fs.IntVar(&port, "port", 3000, "Port to listen on")
	fs.BoolVar(&mock, "mock", false, "Enable mock mode for local testing (no external API calls)")

	if err := fs.Parse(args); err != nil {
		return "", overrides, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			overrides.Mode = &mode
		case "port":
			overrides.Port = &port
		case "mock":
			overrides.MockMode = &mock
		}
	})

	return configFile, overrides, nil
}

func parseLogLevel(level string) logrus.Level {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}

type Relay struct {
	config  *config.Config
	logger  *logrus.Logger
	engine  *engine.Engine
	metrics *metrics.Metrics
}

func NewRelay(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Relay, error) {
	logger.WithFields(logrus.Fields{
		"mode":      cfg.Mode,
		"port":      cfg.Port,
		"mock_mode": cfg.MockMode,
	}).Info("Initializing ScanRelay")

	m := metrics.NewMetrics(logger)

	// Create providers using factory
	set, err := providers.CreateProviders(ctx, providers.NewProviderConfig(cfg, m), logger)
	if err != nil {
		return nil, err
	}

	fields := logrus.Fields{}
	for role, name := range set.Names() {
		fields[role] = name
	}
	logger.WithFields(fields).Info("Providers initialized")

	return &Relay{
		config:  cfg,
		logger:  logger,
		engine:  engine.NewEngine(set.Source, set.Forwarder, set.Store, logger, engine.WithRecorder(m)),
		metrics: m,
	}, nil
}

func (r *Relay) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(server.WebhookPath, r.securityMiddleware(
		server.CreateWebhookHandler(r.engine, r.config.Webhook.RateLimitPerMin, r.config.Webhook.MaxBodyBytes, r.logger),
		http.MethodPost))
	mux.HandleFunc("/metrics", r.securityMiddleware(metrics.CreateMetricsHandler(r.metrics), http.MethodGet, http.MethodHead))
	mux.HandleFunc("/health", r.securityMiddleware(r.healthHandler, http.MethodGet, http.MethodHead))
	mux.HandleFunc("/", r.securityMiddleware(server.NotFoundHandler))
	return mux
}

func (r *Relay) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", r.config.Port),
		Handler:           r.routes(),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// Webhook processing waits on SonarQube and the submission API
		WriteTimeout:   2*r.config.HTTPTimeout + 10*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	go func() {
		<-ctx.Done()
		r.logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	r.logger.WithFields(logrus.Fields{
		"port": r.config.Port,
		"mode": r.config.Mode,
	}).Info("Starting HTTP server")

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}

	return nil
}

// securityMiddleware sets security headers and rejects methods outside allowed.
// With no allowed methods every request reaches next.
func (r *Relay) securityMiddleware(next http.HandlerFunc, allowed ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		// Security headers
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; script-src 'none'; object-src 'none'; frame-ancestors 'none'")

		if len(allowed) > 0 && !methodAllowed(req.Method, allowed) {
			server.WriteError(w, http.StatusMethodNotAllowed, server.MethodNotAllowedMessage)
			return
		}

		// Log the request
		r.logger.WithFields(logrus.Fields{
			"method":     req.Method,
			"path":       req.URL.Path,
			"remote_ip":  req.RemoteAddr,
			"user_agent": req.UserAgent(),
		}).Debug("HTTP request received")

		next(w, req)
	}
}

func methodAllowed(method string, allowed []string) bool {
	for _, m := range allowed {
		if method == m {
			return true
		}
	}
	return false
}

func (r *Relay) healthHandler(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok"}`)
}
