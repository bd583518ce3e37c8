package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"slackmcp/internal/render"
	"slackmcp/internal/slack"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want slog.Level
	}{
		{raw: "debug", want: slog.LevelDebug},
		{raw: "info", want: slog.LevelInfo},
		{raw: "warn", want: slog.LevelWarn},
		{raw: "warning", want: slog.LevelWarn},
		{raw: "error", want: slog.LevelError},
		{raw: " ERROR ", want: slog.LevelError},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			level, err := parseLogLevel(tc.raw)
			if err != nil {
				t.Fatalf("parse log level %q: %v", tc.raw, err)
			}
			if level != tc.want {
				t.Fatalf("parse log level %q = %v, want %v", tc.raw, level, tc.want)
			}
		})
	}

	if _, err := parseLogLevel("loud"); err == nil {
		t.Fatal("expected error for unsupported level")
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "server.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	return path
}

func TestApplyConfigFile(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `{
		"log_level": "debug",
		"transport": "HTTP",
		"listen_address": ":9000",
		"metrics_address": ":9100",
		"output_mode": "structured",
		"logs_channel_id": "C_LOGS",
		"user_cache_path": "/tmp/users.json",
		"slack_base_url": "https://slack.example.com/api",
		"request_timeout": "45s"
	}`)

	cfg := defaultAppConfig()
	if err := applyConfigFile(&cfg, path); err != nil {
		t.Fatalf("apply config file: %v", err)
	}

	if cfg.logLevel != slog.LevelDebug {
		t.Fatalf("log level = %v, want debug", cfg.logLevel)
	}
	if cfg.transport != transportHTTP {
		t.Fatalf("transport = %q, want http", cfg.transport)
	}
	if cfg.listenAddress != ":9000" || cfg.metricsAddress != ":9100" {
		t.Fatalf("addresses = %q/%q, want :9000/:9100", cfg.listenAddress, cfg.metricsAddress)
	}
	if cfg.outputMode != render.ModeStructured {
		t.Fatalf("output mode = %v, want structured", cfg.outputMode)
	}
	if cfg.logsChannelID != "C_LOGS" {
		t.Fatalf("logs channel = %q, want C_LOGS", cfg.logsChannelID)
	}
	if cfg.userCachePath != "/tmp/users.json" {
		t.Fatalf("user cache path = %q", cfg.userCachePath)
	}
	if cfg.slackBaseURL != "https://slack.example.com/api" {
		t.Fatalf("base url = %q", cfg.slackBaseURL)
	}
	if cfg.requestTimeout != 45*time.Second {
		t.Fatalf("request timeout = %v, want 45s", cfg.requestTimeout)
	}
}

func TestApplyConfigFileKeepsDefaultsForOmittedFields(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `{"log_level": "warn"}`)

	cfg := defaultAppConfig()
	if err := applyConfigFile(&cfg, path); err != nil {
		t.Fatalf("apply config file: %v", err)
	}

	if cfg.transport != transportStdio {
		t.Fatalf("transport = %q, want the stdio default", cfg.transport)
	}
	if cfg.listenAddress != defaultListenAddress {
		t.Fatalf("listen address = %q, want %q", cfg.listenAddress, defaultListenAddress)
	}
	if cfg.requestTimeout != defaultRequestTimeout {
		t.Fatalf("request timeout = %v, want the default", cfg.requestTimeout)
	}
}

func TestApplyConfigFileRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `{"log_level": "info", "unknown_knob": true}`)

	cfg := defaultAppConfig()
	if err := applyConfigFile(&cfg, path); err == nil {
		t.Fatal("expected error for unknown config field")
	}
}

func TestApplyConfigFileRejectsBadValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "bad log level", content: `{"log_level": "loud"}`},
		{name: "bad output mode", content: `{"output_mode": "verbose"}`},
		{name: "bad timeout", content: `{"request_timeout": "soon"}`},
		{name: "negative timeout", content: `{"request_timeout": "-5s"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			path := writeConfigFile(t, tc.content)
			cfg := defaultAppConfig()
			if err := applyConfigFile(&cfg, path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(envTransport, "HTTP")
	t.Setenv(envWebToken, "xoxc-token")
	t.Setenv(envCookieToken, "xoxd-cookie")
	t.Setenv(envLogsChannel, "C_LOGS")
	t.Setenv(envOutputMode, "structured")

	cfg := defaultAppConfig()
	applyEnvOverrides(&cfg)

	if cfg.transport != transportHTTP {
		t.Fatalf("transport = %q, want http", cfg.transport)
	}
	if cfg.credentials.Token != "xoxc-token" || cfg.credentials.Cookie != "xoxd-cookie" {
		t.Fatalf("credentials = %+v, want the env tokens", cfg.credentials)
	}
	if cfg.logsChannelID != "C_LOGS" {
		t.Fatalf("logs channel = %q, want C_LOGS", cfg.logsChannelID)
	}
	if cfg.outputMode != render.ModeStructured {
		t.Fatalf("output mode = %v, want structured", cfg.outputMode)
	}
}

func TestValidateAppConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*appConfig)
		wantErr bool
	}{
		{
			name: "stdio with credentials",
			mutate: func(cfg *appConfig) {
				cfg.credentials = slack.Credentials{Token: "xoxc", Cookie: "xoxd"}
			},
		},
		{
			name:    "stdio without credentials",
			mutate:  func(*appConfig) {},
			wantErr: true,
		},
		{
			name: "stdio with token only",
			mutate: func(cfg *appConfig) {
				cfg.credentials = slack.Credentials{Token: "xoxc"}
			},
			wantErr: true,
		},
		{
			name: "http without credentials",
			mutate: func(cfg *appConfig) {
				cfg.transport = transportHTTP
			},
		},
		{
			name: "http without listen address",
			mutate: func(cfg *appConfig) {
				cfg.transport = transportHTTP
				cfg.listenAddress = ""
			},
			wantErr: true,
		},
		{
			name: "unsupported transport",
			mutate: func(cfg *appConfig) {
				cfg.transport = "websocket"
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := defaultAppConfig()
			tc.mutate(&cfg)

			err := validateAppConfig(&cfg)
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("validate: %v", err)
			}
		})
	}
}

func TestResolveConfigFilePathFromEnv(t *testing.T) {
	path := writeConfigFile(t, `{}`)
	t.Setenv(envConfigFile, path)

	resolved, found, err := resolveConfigFilePath()
	if err != nil {
		t.Fatalf("resolve config file path: %v", err)
	}
	if !found || resolved != path {
		t.Fatalf("resolved = %q found = %v, want %q", resolved, found, path)
	}
}
