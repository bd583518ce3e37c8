// Package tools exposes the Slack tool surface over the Model Context
// Protocol.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"slackmcp/internal/metrics"
	"slackmcp/internal/slack"
)

// Messenger covers the direct Web API operations used by tool handlers.
type Messenger interface {
	PostMessage(ctx context.Context, channelID string, text string, threadTS string) (string, error)
	AddReaction(ctx context.Context, channelID string, messageTS string, reaction string) error
	AuthTest(ctx context.Context) (slack.Identity, error)
}

// MessagePager assembles bounded message sets from paginated responses.
type MessagePager interface {
	CollectHistory(ctx context.Context, request slack.HistoryRequest) []slack.Message
	CollectSearch(ctx context.Context, request slack.SearchRequest) []slack.Message
}

// ChannelDirectory resolves channel names and manages the channel cache.
type ChannelDirectory interface {
	Resolve(ctx context.Context, name string) string
	Refresh(ctx context.Context) bool
	Entries() map[string]string
	Len() int
}

// UserHandleCache exposes the user cache management surface.
type UserHandleCache interface {
	Clear() int
}

// MessageProjector renders raw message batches into tool results.
type MessageProjector interface {
	Project(ctx context.Context, messages []slack.Message) string
}

// Deps carries the collaborators one tool service is built from.
type Deps struct {
	// Messenger performs direct Web API operations.
	Messenger Messenger
	// Pager assembles paginated result sets.
	Pager MessagePager
	// Channels resolves channel names to IDs.
	Channels ChannelDirectory
	// Users is the user handle cache management surface.
	Users UserHandleCache
	// Projector renders message batches.
	Projector MessageProjector
	// Metrics records per-tool request metrics; defaults to the process
	// recorder when nil.
	Metrics *metrics.ToolMetrics
	// Logger receives tool diagnostics; defaults to slog.Default when nil.
	Logger *slog.Logger
	// LogsChannelID optionally selects a channel notified on each tool
	// invocation.
	LogsChannelID string
}

func (d Deps) validate() error {
	if d.Messenger == nil {
		return fmt.Errorf("nil messenger")
	}
	if d.Pager == nil {
		return fmt.Errorf("nil pager")
	}
	if d.Channels == nil {
		return fmt.Errorf("nil channel directory")
	}
	if d.Users == nil {
		return fmt.Errorf("nil user cache")
	}
	if d.Projector == nil {
		return fmt.Errorf("nil projector")
	}

	return nil
}

// Service implements the Slack tool surface.
type Service struct {
	messenger     Messenger
	pager         MessagePager
	channels      ChannelDirectory
	users         UserHandleCache
	projector     MessageProjector
	metrics       *metrics.ToolMetrics
	logger        *slog.Logger
	logsChannelID string
}

// NewService creates the tool service.
func NewService(deps Deps) (*Service, error) {
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("new tool service: %w", err)
	}

	if deps.Metrics == nil {
		deps.Metrics = metrics.NewToolMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Service{
		messenger:     deps.Messenger,
		pager:         deps.Pager,
		channels:      deps.Channels,
		users:         deps.Users,
		projector:     deps.Projector,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		logsChannelID: strings.TrimSpace(deps.LogsChannelID),
	}, nil
}

// channelIDPattern matches raw channel IDs so they bypass name resolution.
var channelIDPattern = regexp.MustCompile(`^[CDG][A-Z0-9]{6,}$`)

// resolveChannelRef maps a tool-supplied channel reference, either a raw ID
// or a (possibly '#'-prefixed) name, to a channel ID. Empty means
// unresolvable.
func (s *Service) resolveChannelRef(ctx context.Context, ref string) string {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return ""
	}
	if !strings.HasPrefix(trimmed, "#") && channelIDPattern.MatchString(trimmed) {
		return trimmed
	}

	return s.channels.Resolve(ctx, trimmed)
}

// notifyLogsChannel posts one best-effort notice to the configured logs
// channel. Failures are diagnostics, never propagated.
func (s *Service) notifyLogsChannel(ctx context.Context, message string) {
	if s.logsChannelID == "" || message == "" {
		return
	}

	if _, err := s.messenger.PostMessage(ctx, s.logsChannelID, message, ""); err != nil {
		s.logger.Warn("logs channel notification failed", "channel", s.logsChannelID, "error", err)
	}
}
