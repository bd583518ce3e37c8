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

// UserFetcher fetches one user profile by ID.
type UserFetcher interface {
	FetchUser(ctx context.Context, userID string) (slack.User, error)
}

// UsersOption mutates user cache configuration.
type UsersOption func(*usersConfig)

type usersConfig struct {
	store  *Store
	logger *slog.Logger
}

// WithUsersStore configures durable persistence for the user cache.
//
// Without a store the cache lives only in memory.
func WithUsersStore(store *Store) UsersOption {
	return func(cfg *usersConfig) {
		cfg.store = store
	}
}

// WithUsersLogger configures structured logging for user cache operations.
func WithUsersLogger(logger *slog.Logger) UsersOption {
	return func(cfg *usersConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// Users maps user IDs to display handles.
//
// Entries are only ever added or cleared in full. A failed remote lookup is
// cached as a negative entry (the ID maps to itself) so it is not retried
// within the process lifetime. When a store is configured, the full mapping
// is rewritten after every insertion, and the persisted form seeds the cache
// at construction time.
type Users struct {
	api    UserFetcher
	store  *Store
	logger *slog.Logger

	mu   sync.RWMutex
	byID map[string]string

	flight singleflight.Group
}

// NewUsers creates a user cache over one profile collaborator, seeded from
// the configured store when possible.
//
// An unparseable persisted form resets the cache to empty instead of failing
// construction.
func NewUsers(api UserFetcher, opts ...UsersOption) (*Users, error) {
	if api == nil {
		return nil, fmt.Errorf("new user cache: nil api")
	}

	cfg := usersConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	byID := map[string]string{}
	if cfg.store != nil {
		seeded, err := cfg.store.Load()
		if err != nil {
			cfg.logger.Warn("user cache load failed, starting empty", "error", err)
		} else {
			byID = seeded
		}
	}

	return &Users{
		api:    api,
		store:  cfg.store,
		logger: cfg.logger,
		byID:   byID,
	}, nil
}

// Resolve maps a user ID to a display handle.
//
// An empty ID resolves to the empty string without any lookup. A miss fetches
// the profile at most once per ID per process lifetime; concurrent misses on
// the same ID collapse into one remote fetch.
func (u *Users) Resolve(ctx context.Context, userID string) string {
	id := strings.TrimSpace(userID)
	if id == "" {
		return ""
	}

	u.mu.RLock()
	handle, found := u.byID[id]
	u.mu.RUnlock()
	if found {
		return handle
	}

	resolved, _, _ := u.flight.Do(id, func() (any, error) {
		// A previous flight for this ID may have completed between the
		// caller's miss and this entry.
		u.mu.RLock()
		cached, exists := u.byID[id]
		u.mu.RUnlock()
		if exists {
			return cached, nil
		}

		handle := u.fetchHandle(ctx, id)
		u.insert(id, handle)

		return handle, nil
	})

	handle, _ = resolved.(string)
	return handle
}

// Len returns the current entry count.
func (u *Users) Len() int {
	u.mu.RLock()
	defer u.mu.RUnlock()

	return len(u.byID)
}

// Clear empties the cache, deletes the persisted form, and returns the prior
// entry count. A failed deletion is logged and the in-memory clear still
// takes effect.
func (u *Users) Clear() int {
	u.mu.Lock()
	cleared := len(u.byID)
	u.byID = make(map[string]string)
	u.mu.Unlock()

	if u.store != nil {
		if err := u.store.Delete(); err != nil {
			u.logger.Warn("user cache file deletion failed", "error", err)
		}
	}

	return cleared
}

func (u *Users) fetchHandle(ctx context.Context, id string) string {
	user, err := u.api.FetchUser(ctx, id)
	if err != nil {
		u.logger.Warn("user lookup failed, caching id as handle", "user", id, "error", err)
		return id
	}

	handle := user.Handle()
	if handle == "" {
		return id
	}

	return handle
}

func (u *Users) insert(id string, handle string) {
	if id == "" || handle == "" {
		return
	}

	u.mu.Lock()
	u.byID[id] = handle
	snapshot := make(map[string]string, len(u.byID))
	for key, value := range u.byID {
		snapshot[key] = value
	}
	u.mu.Unlock()

	if u.store == nil {
		return
	}
	if err := u.store.Save(snapshot); err != nil {
		u.logger.Warn("user cache persistence failed", "error", err)
	}
}
