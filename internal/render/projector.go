package render

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"slackmcp/internal/slack"

	"golang.org/x/sync/errgroup"
)

const defaultResolveConcurrency = 4

// Mode selects the process-wide projection output shape.
type Mode string

const (
	// ModeCompact renders each message as one formatted line.
	ModeCompact Mode = "compact"
	// ModeStructured renders the batch as a JSON array of records.
	ModeStructured Mode = "structured"
)

// ParseMode validates a raw output mode value. An empty value selects
// ModeCompact.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeCompact:
		return ModeCompact, nil
	case ModeStructured:
		return ModeStructured, nil
	default:
		return "", fmt.Errorf("parse output mode: unsupported mode %q", raw)
	}
}

// Record is one structured-mode projected message.
type Record struct {
	// Text is the message text with mention tokens rewritten to handles.
	Text string `json:"text"`
	// User is the author's resolved display handle.
	User string `json:"user"`
	// TS is the canonical message timestamp.
	TS string `json:"ts"`
	// ThreadTS is the parent thread timestamp when present.
	ThreadTS string `json:"thread_ts,omitempty"`
}

// HandleResolver maps one user ID to a display handle.
type HandleResolver interface {
	Resolve(ctx context.Context, userID string) string
}

// mentionPattern matches inline user mention tokens, with or without a label
// part.
var mentionPattern = regexp.MustCompile(`<@([A-Z0-9]+)(?:\|[^>]*)?>`)

// ProjectorOption mutates projector configuration.
type ProjectorOption func(*projectorConfig)

type projectorConfig struct {
	concurrency int
	logger      *slog.Logger
}

// WithResolveConcurrency bounds how many user resolutions run in parallel
// during one projection.
func WithResolveConcurrency(concurrency int) ProjectorOption {
	return func(cfg *projectorConfig) {
		if concurrency > 0 {
			cfg.concurrency = concurrency
		}
	}
}

// WithProjectorLogger configures structured logging for projection
// operations.
func WithProjectorLogger(logger *slog.Logger) ProjectorOption {
	return func(cfg *projectorConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// Projector rewrites raw message batches into the configured output shape,
// resolving each referenced user at most once per batch.
type Projector struct {
	users       HandleResolver
	mode        Mode
	concurrency int
	logger      *slog.Logger
}

// NewProjector creates a projector bound to one handle resolver and one
// process-wide output mode.
func NewProjector(users HandleResolver, mode Mode, opts ...ProjectorOption) (*Projector, error) {
	if users == nil {
		return nil, fmt.Errorf("new projector: nil handle resolver")
	}
	switch mode {
	case ModeCompact, ModeStructured:
	default:
		return nil, fmt.Errorf("new projector: unsupported mode %q", mode)
	}

	cfg := projectorConfig{
		concurrency: defaultResolveConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Projector{
		users:       users,
		mode:        mode,
		concurrency: cfg.concurrency,
		logger:      cfg.logger,
	}, nil
}

// Project renders one message batch.
//
// Every unique user referenced as an author or inline mention is resolved
// exactly once; resolution runs with bounded parallelism. Compact mode yields
// newline-joined lines, structured mode a JSON array.
func (p *Projector) Project(ctx context.Context, messages []slack.Message) string {
	handles := p.resolveReferencedUsers(ctx, messages)

	if p.mode == ModeStructured {
		return p.renderStructured(messages, handles)
	}

	return renderCompact(messages, handles)
}

func (p *Projector) resolveReferencedUsers(ctx context.Context, messages []slack.Message) map[string]string {
	seen := make(map[string]struct{})
	ids := make([]string, 0, len(messages))
	collect := func(id string) {
		if id == "" {
			return
		}
		if _, exists := seen[id]; exists {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	for _, message := range messages {
		collect(strings.TrimSpace(message.User))
		for _, match := range mentionPattern.FindAllStringSubmatch(message.Text, -1) {
			collect(match[1])
		}
	}
	sort.Strings(ids)

	handles := make(map[string]string, len(ids))
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.concurrency)
	for _, id := range ids {
		group.Go(func() error {
			handle := p.users.Resolve(groupCtx, id)
			mu.Lock()
			handles[id] = handle
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	return handles
}

func (p *Projector) renderStructured(messages []slack.Message, handles map[string]string) string {
	records := make([]Record, 0, len(messages))
	for _, message := range messages {
		records = append(records, Record{
			Text:     rewriteMentions(message.Text, handles),
			User:     handleFor(message.User, handles),
			TS:       message.TS,
			ThreadTS: message.ThreadTS,
		})
	}

	encoded, err := json.Marshal(records)
	if err != nil {
		p.logger.Warn("structured projection encoding failed, falling back to compact", "error", err)
		return renderCompact(messages, handles)
	}

	return string(encoded)
}

func renderCompact(messages []slack.Message, handles map[string]string) string {
	lines := make([]string, 0, len(messages))
	for _, message := range messages {
		line := fmt.Sprintf("[%s] @%s: %s",
			message.TS,
			handleFor(message.User, handles),
			rewriteMentions(message.Text, handles),
		)
		if message.ThreadTS != "" && message.ThreadTS != message.TS {
			line += fmt.Sprintf(" [thread:%s]", message.ThreadTS)
		}
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}

func rewriteMentions(text string, handles map[string]string) string {
	return mentionPattern.ReplaceAllStringFunc(text, func(token string) string {
		id := mentionPattern.FindStringSubmatch(token)[1]
		return "@" + handleFor(id, handles)
	})
}

func handleFor(userID string, handles map[string]string) string {
	id := strings.TrimSpace(userID)
	if handle, found := handles[id]; found && handle != "" {
		return handle
	}

	return id
}
