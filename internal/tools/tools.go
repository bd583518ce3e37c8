package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"slackmcp/internal/render"
	"slackmcp/internal/slack"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// GetChannelHistoryInput selects one bounded channel history read.
type GetChannelHistoryInput struct {
	// Channel is a channel ID or a (possibly '#'-prefixed) channel name.
	Channel string `json:"channel"`
	// Limit bounds the returned message count; defaults to 1000.
	Limit int `json:"limit,omitempty"`
	// Oldest optionally filters to messages at or after this date, date-time,
	// or raw timestamp.
	Oldest string `json:"oldest,omitempty"`
	// Latest optionally filters to messages at or before this date,
	// date-time, or raw timestamp.
	Latest string `json:"latest,omitempty"`
}

// SearchMessagesInput selects one bounded workspace message search.
type SearchMessagesInput struct {
	// Query is the Slack search expression.
	Query string `json:"query"`
	// Limit bounds the returned match count; defaults to 1000.
	Limit int `json:"limit,omitempty"`
	// Sort selects result ordering; defaults to timestamp.
	Sort string `json:"sort,omitempty"`
}

// PostMessageInput posts one message.
type PostMessageInput struct {
	// Channel is a channel ID or a (possibly '#'-prefixed) channel name.
	Channel string `json:"channel"`
	// Text is the message text.
	Text string `json:"text"`
	// ThreadTS optionally posts into an existing thread.
	ThreadTS string `json:"thread_ts,omitempty"`
}

// AddReactionInput adds one emoji reaction.
type AddReactionInput struct {
	// Channel is a channel ID or a (possibly '#'-prefixed) channel name.
	Channel string `json:"channel"`
	// Timestamp is the target message timestamp.
	Timestamp string `json:"timestamp"`
	// Reaction is the emoji name, with or without surrounding colons.
	Reaction string `json:"reaction"`
}

// EmptyInput is for tools taking no arguments.
type EmptyInput struct{}

// Register adds every Slack tool to the MCP server.
func (s *Service) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_channel_history",
		Description: "Get the recent message history of a channel. Accepts a channel ID or name, an optional message limit, and optional oldest/latest time filters.",
	}, instrument(s, "get_channel_history", func(input GetChannelHistoryInput) string {
		return fmt.Sprintf("Getting history of channel %s", input.Channel)
	}, s.handleGetChannelHistory))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_messages",
		Description: "Search messages across the workspace using Slack search syntax, with an optional result limit.",
	}, instrument(s, "search_messages", func(input SearchMessagesInput) string {
		return fmt.Sprintf("Searching messages: %s", input.Query)
	}, s.handleSearchMessages))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "post_message",
		Description: "Post a message to a channel, optionally as a thread reply.",
	}, instrument(s, "post_message", func(input PostMessageInput) string {
		return fmt.Sprintf("Posting message to channel %s: %s", input.Channel, input.Text)
	}, s.handlePostMessage))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_reaction",
		Description: "Add an emoji reaction to a message.",
	}, instrument(s, "add_reaction", func(input AddReactionInput) string {
		return fmt.Sprintf("Adding reaction %s to message %s in channel %s", input.Reaction, input.Timestamp, input.Channel)
	}, s.handleAddReaction))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "whoami",
		Description: "Checks authentication & identity.",
	}, instrument(s, "whoami", func(EmptyInput) string {
		return "Checking authentication & identity"
	}, s.handleWhoami))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_channels",
		Description: "List known channel names and IDs.",
	}, instrument(s, "list_channels", nil, s.handleListChannels))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "refresh_channels",
		Description: "Reload the channel directory, picking up channels created since the last reload.",
	}, instrument(s, "refresh_channels", nil, s.handleRefreshChannels))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_user_cache",
		Description: "Clear all cached user handles, including the persisted cache file.",
	}, instrument(s, "clear_user_cache", nil, s.handleClearUserCache))
}

func (s *Service) handleGetChannelHistory(ctx context.Context, _ *mcp.CallToolRequest, input GetChannelHistoryInput) (*mcp.CallToolResult, any, error) {
	channelID := s.resolveChannelRef(ctx, input.Channel)
	if channelID == "" {
		return nil, nil, fmt.Errorf("unknown channel %q", input.Channel)
	}

	return textResult(s.projector.Project(ctx, s.pager.CollectHistory(ctx, slack.HistoryRequest{
		Channel: channelID,
		Limit:   input.Limit,
		Oldest:  s.normalizeTimeFilter(input.Oldest, "oldest", false),
		Latest:  s.normalizeTimeFilter(input.Latest, "latest", true),
	}))), nil, nil
}

func (s *Service) handleSearchMessages(ctx context.Context, _ *mcp.CallToolRequest, input SearchMessagesInput) (*mcp.CallToolResult, any, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, nil, fmt.Errorf("empty search query")
	}

	sortOrder := strings.TrimSpace(input.Sort)
	if sortOrder == "" {
		sortOrder = "timestamp"
	}

	return textResult(s.projector.Project(ctx, s.pager.CollectSearch(ctx, slack.SearchRequest{
		Query: query,
		Sort:  sortOrder,
		Limit: input.Limit,
	}))), nil, nil
}

func (s *Service) handlePostMessage(ctx context.Context, _ *mcp.CallToolRequest, input PostMessageInput) (*mcp.CallToolResult, any, error) {
	channelID := s.resolveChannelRef(ctx, input.Channel)
	if channelID == "" {
		return nil, nil, fmt.Errorf("unknown channel %q", input.Channel)
	}

	ts, err := s.messenger.PostMessage(ctx, channelID, input.Text, input.ThreadTS)
	if err != nil {
		return nil, nil, fmt.Errorf("post message: %w", err)
	}

	return textResult(fmt.Sprintf("posted message %s to channel %s", ts, channelID)), nil, nil
}

func (s *Service) handleAddReaction(ctx context.Context, _ *mcp.CallToolRequest, input AddReactionInput) (*mcp.CallToolResult, any, error) {
	channelID := s.resolveChannelRef(ctx, input.Channel)
	if channelID == "" {
		return nil, nil, fmt.Errorf("unknown channel %q", input.Channel)
	}

	if err := s.messenger.AddReaction(ctx, channelID, input.Timestamp, input.Reaction); err != nil {
		return nil, nil, fmt.Errorf("add reaction: %w", err)
	}

	return textResult("reaction added"), nil, nil
}

func (s *Service) handleWhoami(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, any, error) {
	identity, err := s.messenger.AuthTest(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("auth test: %w", err)
	}

	return textResult(fmt.Sprintf("%s (%s) in team %s", identity.User, identity.UserID, identity.Team)), nil, nil
}

func (s *Service) handleListChannels(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, any, error) {
	entries := s.channels.Entries()
	if len(entries) == 0 {
		s.channels.Refresh(ctx)
		entries = s.channels.Entries()
	}
	if len(entries) == 0 {
		return textResult("no channels found"), nil, nil
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("#%s (%s)", name, entries[name]))
	}

	return textResult(strings.Join(lines, "\n")), nil, nil
}

func (s *Service) handleRefreshChannels(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, any, error) {
	if !s.channels.Refresh(ctx) {
		return textResult("channel cache refresh failed; previous entries kept"), nil, nil
	}

	return textResult(fmt.Sprintf("refreshed channel cache: %d channels", s.channels.Len())), nil, nil
}

func (s *Service) handleClearUserCache(_ context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, any, error) {
	return textResult(fmt.Sprintf("cleared %d cached user handles", s.users.Clear())), nil, nil
}

// normalizeTimeFilter converts one user-supplied time filter, dropping
// unparseable values with a diagnostic so the fetch proceeds unfiltered.
func (s *Service) normalizeTimeFilter(raw string, field string, endOfRange bool) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	normalized := render.NormalizeTimestamp(trimmed, endOfRange)
	if normalized == "" {
		s.logger.Warn("unparseable time filter ignored", "field", field, "value", trimmed)
	}

	return normalized
}
