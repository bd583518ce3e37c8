package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"slackmcp/internal/slack"

	"golang.org/x/sync/singleflight"
)

// ChannelLister fetches the full non-archived channel directory.
type ChannelLister interface {
	ListChannels(ctx context.Context) ([]slack.Channel, error)
}

// ChannelsOption mutates channel cache configuration.
type ChannelsOption func(*channelsConfig)

type channelsConfig struct {
	logger *slog.Logger
}

// WithChannelsLogger configures structured logging for channel cache
// operations.
func WithChannelsLogger(logger *slog.Logger) ChannelsOption {
	return func(cfg *channelsConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// Channels maps channel names to channel IDs.
//
// The mapping is rebuilt wholesale from the remote directory on each reload;
// a failed reload preserves the previous contents. Lookups and reloads are
// safe across concurrent tool invocations, and concurrent miss-triggered
// reloads collapse into one remote fetch.
type Channels struct {
	api    ChannelLister
	logger *slog.Logger

	mu     sync.RWMutex
	byName map[string]string

	reload singleflight.Group
}

// NewChannels creates an empty channel cache over one directory collaborator.
func NewChannels(api ChannelLister, opts ...ChannelsOption) (*Channels, error) {
	if api == nil {
		return nil, fmt.Errorf("new channel cache: nil api")
	}

	cfg := channelsConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Channels{
		api:    api,
		logger: cfg.logger,
		byName: make(map[string]string),
	}, nil
}

// Resolve maps a channel name to its ID.
//
// A leading '#' is stripped before lookup. A miss triggers one directory
// reload and a single retry; a still-missing name resolves to the empty
// string.
func (c *Channels) Resolve(ctx context.Context, name string) string {
	key := strings.TrimPrefix(strings.TrimSpace(name), "#")
	if key == "" {
		return ""
	}

	c.mu.RLock()
	id, found := c.byName[key]
	c.mu.RUnlock()
	if found {
		return id
	}

	c.Refresh(ctx)

	c.mu.RLock()
	id, found = c.byName[key]
	c.mu.RUnlock()
	if !found {
		c.logger.Warn("channel name not found after reload", "channel", key)
		return ""
	}

	return id
}

// Refresh rebuilds the cache from the remote directory and reports whether
// the reload succeeded. A failed reload leaves the previous contents intact.
func (c *Channels) Refresh(ctx context.Context) bool {
	refreshed, _, _ := c.reload.Do("reload", func() (any, error) {
		channels, err := c.api.ListChannels(ctx)
		if err != nil {
			c.logger.Warn("channel directory reload failed, keeping previous cache", "error", err)
			return false, nil
		}

		byName := make(map[string]string, len(channels))
		for _, channel := range channels {
			if channel.ID == "" || channel.Name == "" {
				continue
			}
			byName[channel.Name] = channel.ID
		}

		c.mu.Lock()
		c.byName = byName
		c.mu.Unlock()

		return true, nil
	})

	ok, _ := refreshed.(bool)
	return ok
}

// Entries returns a copy of the current name-to-ID mapping.
func (c *Channels) Entries() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make(map[string]string, len(c.byName))
	for name, id := range c.byName {
		entries[name] = id
	}

	return entries
}

// Len returns the current entry count.
func (c *Channels) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.byName)
}
