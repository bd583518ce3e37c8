package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"slackmcp/internal/cache"
	"slackmcp/internal/metrics"
	"slackmcp/internal/render"
	"slackmcp/internal/slack"
	"slackmcp/internal/tools"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	envConfigFile  = "SLACKMCP_CONFIG_FILE"
	envTransport   = "MCP_TRANSPORT"
	envWebToken    = "SLACK_XOXC_TOKEN"
	envCookieToken = "SLACK_XOXD_TOKEN"
	envLogsChannel = "LOGS_CHANNEL_ID"
	envOutputMode  = "SLACK_OUTPUT_MODE"

	defaultConfigFilePath   = "config/server.json"
	alternateConfigFilePath = "bin/config/server.json"
	defaultListenAddress    = ":8000"
	defaultUserCachePath    = "slack_users_cache.json"
	defaultRequestTimeout   = 30 * time.Second
	defaultShutdownTimeout  = 10 * time.Second

	serverName    = "slack"
	serverVersion = "0.3.0"

	transportStdio = "stdio"
	transportHTTP  = "http"
)

type appConfig struct {
	logLevel slog.Level

	transport      string
	listenAddress  string
	metricsAddress string

	outputMode     render.Mode
	logsChannelID  string
	userCachePath  string
	slackBaseURL   string
	requestTimeout time.Duration

	credentials slack.Credentials
}

type fileConfig struct {
	LogLevel       string `json:"log_level"`
	Transport      string `json:"transport"`
	ListenAddress  string `json:"listen_address"`
	MetricsAddress string `json:"metrics_address"`
	OutputMode     string `json:"output_mode"`
	LogsChannelID  string `json:"logs_channel_id"`
	UserCachePath  string `json:"user_cache_path"`
	SlackBaseURL   string `json:"slack_base_url"`
	RequestTimeout string `json:"request_timeout"`
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Stdout carries the stdio MCP transport; diagnostics go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.logLevel}))
	slog.SetDefault(logger)

	service, err := buildToolService(cfg, logger)
	if err != nil {
		return err
	}

	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	service.Register(server)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cfg.transport {
	case transportStdio:
		return runStdio(ctx, logger, cfg, server)
	case transportHTTP:
		return runHTTP(ctx, logger, cfg, server)
	default:
		return fmt.Errorf("unsupported transport %q", cfg.transport)
	}
}

func buildToolService(cfg appConfig, logger *slog.Logger) (*tools.Service, error) {
	clientOpts := []slack.ClientOption{
		slack.WithClientCredentials(cfg.credentials),
		slack.WithRequestTimeout(cfg.requestTimeout),
		slack.WithClientLogger(logger),
	}
	if cfg.slackBaseURL != "" {
		clientOpts = append(clientOpts, slack.WithBaseURL(cfg.slackBaseURL))
	}
	client := slack.NewClient(clientOpts...)

	pager, err := slack.NewPager(client, slack.WithPagerLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("build pager: %w", err)
	}

	channels, err := cache.NewChannels(client, cache.WithChannelsLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("build channel cache: %w", err)
	}

	store, err := cache.NewStore(cfg.userCachePath)
	if err != nil {
		return nil, fmt.Errorf("build user cache store: %w", err)
	}
	users, err := cache.NewUsers(client, cache.WithUsersStore(store), cache.WithUsersLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("build user cache: %w", err)
	}

	projector, err := render.NewProjector(users, cfg.outputMode, render.WithProjectorLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("build projector: %w", err)
	}

	service, err := tools.NewService(tools.Deps{
		Messenger:     client,
		Pager:         pager,
		Channels:      channels,
		Users:         users,
		Projector:     projector,
		Metrics:       metrics.NewToolMetrics(),
		Logger:        logger,
		LogsChannelID: cfg.logsChannelID,
	})
	if err != nil {
		return nil, fmt.Errorf("build tool service: %w", err)
	}

	return service, nil
}

func runStdio(ctx context.Context, logger *slog.Logger, cfg appConfig, server *mcp.Server) error {
	if cfg.metricsAddress != "" {
		metricsServer := &http.Server{Addr: cfg.metricsAddress, Handler: metricsMux()}
		go func() {
			logger.Info("metrics listener starting", "address", cfg.metricsAddress)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics listener failed", "error", err)
			}
		}()
		defer shutdownHTTPServer(logger, metricsServer)
	}

	logger.Info("serving MCP over stdio")
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run stdio server: %w", err)
	}

	return nil
}

func runHTTP(ctx context.Context, logger *slog.Logger, cfg appConfig, server *mcp.Server) error {
	streamHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", slack.CredentialMiddleware(streamHandler))

	httpServer := &http.Server{Addr: cfg.listenAddress, Handler: mux}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("serving MCP over HTTP", "address", cfg.listenAddress)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("run http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownHTTPServer(logger, httpServer)
		return nil
	}
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func shutdownHTTPServer(logger *slog.Logger, server *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown failed", "error", err)
	}
}

func loadConfig() (appConfig, error) {
	cfg := defaultAppConfig()

	configFile, found, err := resolveConfigFilePath()
	if err != nil {
		return appConfig{}, err
	}
	if found {
		if err := applyConfigFile(&cfg, configFile); err != nil {
			return appConfig{}, err
		}
	}

	applyEnvOverrides(&cfg)

	if err := validateAppConfig(&cfg); err != nil {
		return appConfig{}, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func defaultAppConfig() appConfig {
	return appConfig{
		logLevel:       slog.LevelInfo,
		transport:      transportStdio,
		listenAddress:  defaultListenAddress,
		outputMode:     render.ModeCompact,
		userCachePath:  defaultUserCachePath,
		requestTimeout: defaultRequestTimeout,
	}
}

func resolveConfigFilePath() (string, bool, error) {
	if configFile := strings.TrimSpace(os.Getenv(envConfigFile)); configFile != "" {
		return configFile, true, nil
	}

	candidates := []string{defaultConfigFilePath, alternateConfigFilePath}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", false, fmt.Errorf("config file %s is a directory", candidate)
			}
			return candidate, true, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("stat config file %s: %w", candidate, err)
		}
	}

	// The config file is optional; environment variables cover the
	// credentials-only deployment shape.
	return "", false, nil
}

func applyConfigFile(cfg *appConfig, path string) error {
	if cfg == nil {
		return fmt.Errorf("apply config file: nil config")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed fileConfig
	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if rawLevel := strings.TrimSpace(parsed.LogLevel); rawLevel != "" {
		level, err := parseLogLevel(rawLevel)
		if err != nil {
			return fmt.Errorf("parse log_level: %w", err)
		}
		cfg.logLevel = level
	}
	if rawTransport := strings.TrimSpace(parsed.Transport); rawTransport != "" {
		cfg.transport = strings.ToLower(rawTransport)
	}
	if rawAddress := strings.TrimSpace(parsed.ListenAddress); rawAddress != "" {
		cfg.listenAddress = rawAddress
	}
	if rawAddress := strings.TrimSpace(parsed.MetricsAddress); rawAddress != "" {
		cfg.metricsAddress = rawAddress
	}
	if rawMode := strings.TrimSpace(parsed.OutputMode); rawMode != "" {
		mode, err := render.ParseMode(rawMode)
		if err != nil {
			return fmt.Errorf("parse output_mode: %w", err)
		}
		cfg.outputMode = mode
	}
	if rawChannel := strings.TrimSpace(parsed.LogsChannelID); rawChannel != "" {
		cfg.logsChannelID = rawChannel
	}
	if rawPath := strings.TrimSpace(parsed.UserCachePath); rawPath != "" {
		cfg.userCachePath = rawPath
	}
	if rawURL := strings.TrimSpace(parsed.SlackBaseURL); rawURL != "" {
		cfg.slackBaseURL = rawURL
	}
	if rawTimeout := strings.TrimSpace(parsed.RequestTimeout); rawTimeout != "" {
		timeout, err := time.ParseDuration(rawTimeout)
		if err != nil {
			return fmt.Errorf("parse request_timeout: %w", err)
		}
		if timeout <= 0 {
			return fmt.Errorf("parse request_timeout: must be > 0")
		}
		cfg.requestTimeout = timeout
	}

	return nil
}

func applyEnvOverrides(cfg *appConfig) {
	if rawTransport := strings.TrimSpace(os.Getenv(envTransport)); rawTransport != "" {
		cfg.transport = strings.ToLower(rawTransport)
	}
	if rawChannel := strings.TrimSpace(os.Getenv(envLogsChannel)); rawChannel != "" {
		cfg.logsChannelID = rawChannel
	}
	if rawMode := strings.TrimSpace(os.Getenv(envOutputMode)); rawMode != "" {
		if mode, err := render.ParseMode(rawMode); err == nil {
			cfg.outputMode = mode
		}
	}

	cfg.credentials = slack.Credentials{
		Token:  strings.TrimSpace(os.Getenv(envWebToken)),
		Cookie: strings.TrimSpace(os.Getenv(envCookieToken)),
	}
}

func validateAppConfig(cfg *appConfig) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	switch cfg.transport {
	case transportStdio:
		// Stdio has no per-request headers, so process credentials are
		// mandatory.
		if !cfg.credentials.Valid() {
			return fmt.Errorf("stdio transport requires %s and %s", envWebToken, envCookieToken)
		}
	case transportHTTP:
		if cfg.listenAddress == "" {
			return fmt.Errorf("http transport requires a listen address")
		}
	default:
		return fmt.Errorf("unsupported transport %q", cfg.transport)
	}

	return nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported level %q", raw)
	}
}
