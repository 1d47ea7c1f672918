// Package events publishes JSON notifications to Redis pub/sub channels.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/JaimeStill/accord/pkg/lifecycle"
)

// System publishes events to topic channels.
type System interface {
	// Start registers a connectivity check and client shutdown with the coordinator.
	Start(lc *lifecycle.Coordinator) error
	// Publish encodes payload as JSON and sends it on the channel for topic.
	Publish(ctx context.Context, topic string, payload any) error
}

// New returns a Redis-backed System, or a no-op System when cfg is disabled.
func New(cfg *Config, logger *slog.Logger) System {
	logger = logger.With("system", "events")
	if !cfg.Enabled {
		return &noop{logger: logger}
	}

	return &publisher{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		prefix: cfg.ChannelPrefix,
		logger: logger,
	}
}

// Channel returns the channel name used for topic.
func Channel(prefix, topic string) string {
	if prefix == "" {
		return topic
	}
	return prefix + ":" + topic
}

type publisher struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

func (p *publisher) Start(lc *lifecycle.Coordinator) error {
	p.logger.Info("starting event publisher")

	lc.OnStartup("events", func() error {
		if err := p.client.Ping(lc.Context()).Err(); err != nil {
			p.logger.Error("redis ping failed", "error", err)
			return fmt.Errorf("redis ping: %w", err)
		}
		p.logger.Info("event publisher connected")
		return nil
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if err := p.client.Close(); err != nil {
			p.logger.Error("redis close failed", "error", err)
			return
		}
		p.logger.Info("event publisher closed")
	})

	return nil
}

func (p *publisher) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", topic, err)
	}

	ch := Channel(p.prefix, topic)
	if err := p.client.Publish(ctx, ch, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ch, err)
	}
	return nil
}

type noop struct {
	logger *slog.Logger
}

func (n *noop) Start(lc *lifecycle.Coordinator) error {
	n.logger.Info("event publishing disabled")
	return nil
}

func (n *noop) Publish(ctx context.Context, topic string, payload any) error {
	return nil
}
