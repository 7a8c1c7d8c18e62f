package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/pders01/restodash/internal/mutation"
	"github.com/spf13/viper"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	SetDefaults()
	t.Cleanup(viper.Reset)
}

func TestLoadDefaults(t *testing.T) {
	resetViper(t)

	s, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.API.URL != "http://localhost:3333" {
		t.Errorf("unexpected api url: %s", s.API.URL)
	}
	if s.API.Timeout != 10*time.Second {
		t.Errorf("unexpected timeout: %s", s.API.Timeout)
	}
	if s.Mutation.Policy != "concurrent" {
		t.Errorf("unexpected policy: %s", s.Mutation.Policy)
	}
	if s.DevServer.Latency != 0 {
		t.Errorf("unexpected latency: %s", s.DevServer.Latency)
	}
	if s.API.Headers != nil {
		t.Errorf("expected no headers, got %v", s.API.Headers)
	}
}

func TestLoadOverrides(t *testing.T) {
	resetViper(t)

	viper.Set("api.timeout", "250ms")
	viper.Set("api.headers", map[string]any{"X-Tenant": "pizza-shop", "X-Version": 2})
	viper.Set("devserver.latency", "1s")
	viper.Set("devserver.watch", "a.toml,b.toml")
	viper.Set("ui.locale", "pt-BR")
	viper.Set("telemetry.trace", "true")

	s, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.API.Timeout != 250*time.Millisecond {
		t.Errorf("unexpected timeout: %s", s.API.Timeout)
	}
	// viper lowercases map keys; header names are case-insensitive anyway
	if s.API.Headers["x-tenant"] != "pizza-shop" || s.API.Headers["x-version"] != "2" {
		t.Errorf("unexpected headers: %v", s.API.Headers)
	}
	if s.DevServer.Latency != time.Second {
		t.Errorf("unexpected latency: %s", s.DevServer.Latency)
	}
	if len(s.DevServer.Watch) != 2 || s.DevServer.Watch[1] != "b.toml" {
		t.Errorf("unexpected watch list: %v", s.DevServer.Watch)
	}
	if !s.Telemetry.Trace || s.Telemetry.Metrics {
		t.Errorf("unexpected telemetry settings: %+v", s.Telemetry)
	}
	if s.UI.Locale != "pt-BR" {
		t.Errorf("unexpected locale: %s", s.UI.Locale)
	}
}

func TestInvalidHeaders(t *testing.T) {
	resetViper(t)
	viper.Set("api.headers", "not a map")

	if _, err := Load(); err == nil {
		t.Error("expected error for malformed headers")
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		name    string
		want    mutation.Policy
		wantErr bool
	}{
		{name: "", want: mutation.PolicyConcurrent},
		{name: "concurrent", want: mutation.PolicyConcurrent},
		{name: "Serialized", want: mutation.PolicySerialized},
		{name: "serial", want: mutation.PolicySerialized},
		{name: "queue", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePolicy(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    slog.Level
		wantErr bool
	}{
		{name: "debug", want: slog.LevelDebug},
		{name: "INFO", want: slog.LevelInfo},
		{name: "warn", want: slog.LevelWarn},
		{name: "loud", want: slog.LevelWarn, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLogLevel(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
