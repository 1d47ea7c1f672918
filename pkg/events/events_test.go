package events_test

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/JaimeStill/accord/pkg/events"
)

func TestFinalizeDefaults(t *testing.T) {
	cfg := events.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.Enabled {
		t.Error("events should be disabled by default")
	}
	if cfg.Addr != "localhost:6379" {
		t.Errorf("addr = %s, want localhost:6379", cfg.Addr)
	}
	if cfg.ChannelPrefix != "accord" {
		t.Errorf("channel_prefix = %s, want accord", cfg.ChannelPrefix)
	}
}

func TestFinalizeEnvOverrides(t *testing.T) {
	t.Setenv("TEST_EVENTS_ENABLED", "true")
	t.Setenv("TEST_EVENTS_ADDR", "redis:6380")
	t.Setenv("TEST_EVENTS_DB", "3")

	cfg := events.Config{}
	err := cfg.Finalize(&events.Env{
		Enabled: "TEST_EVENTS_ENABLED",
		Addr:    "TEST_EVENTS_ADDR",
		DB:      "TEST_EVENTS_DB",
	})
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if !cfg.Enabled || cfg.Addr != "redis:6380" || cfg.DB != 3 {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestFinalizeRejectsNegativeDB(t *testing.T) {
	cfg := events.Config{DB: -1}
	err := cfg.Finalize(nil)
	if err == nil || !strings.Contains(err.Error(), "invalid db") {
		t.Fatalf("Finalize() error = %v, want invalid db", err)
	}
}

func TestChannel(t *testing.T) {
	tests := []struct {
		prefix, topic, want string
	}{
		{"accord", "runs.progress", "accord:runs.progress"},
		{"", "runs.progress", "runs.progress"},
	}

	for _, tt := range tests {
		if got := events.Channel(tt.prefix, tt.topic); got != tt.want {
			t.Errorf("Channel(%q, %q) = %q, want %q", tt.prefix, tt.topic, got, tt.want)
		}
	}
}

func TestDisabledPublishIsNoop(t *testing.T) {
	sys := events.New(&events.Config{}, slog.Default())

	if err := sys.Publish(context.Background(), "runs.progress", map[string]int{"completed": 1}); err != nil {
		t.Errorf("Publish() error = %v, want nil", err)
	}
}

func TestEnabledPublishRejectsUnencodable(t *testing.T) {
	sys := events.New(&events.Config{Enabled: true, Addr: "127.0.0.1:1"}, slog.Default())

	err := sys.Publish(context.Background(), "bad", make(chan int))
	if err == nil || !strings.Contains(err.Error(), "encode event") {
		t.Errorf("Publish() error = %v, want encode failure", err)
	}
}
