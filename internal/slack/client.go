package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the Slack Web API base.
	DefaultBaseURL = "https://slack.com/api"

	defaultRequestTimeout = 30 * time.Second

	// channelListPageSize bounds one conversations.list page during a
	// wholesale directory reload.
	channelListPageSize = 200

	channelListTypes = "public_channel,private_channel"
)

// ClientOption mutates client configuration.
type ClientOption func(*clientConfig)

type clientConfig struct {
	baseURL        string
	creds          Credentials
	requestTimeout time.Duration
	httpClient     *http.Client
	logger         *slog.Logger
}

// WithBaseURL overrides the Slack Web API base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(cfg *clientConfig) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			cfg.baseURL = trimmed
		}
	}
}

// WithClientCredentials configures fallback credentials used when the request
// context carries none.
func WithClientCredentials(creds Credentials) ClientOption {
	return func(cfg *clientConfig) {
		cfg.creds = creds
	}
}

// WithRequestTimeout configures a timeout bound for each Web API call.
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(cfg *clientConfig) {
		if timeout > 0 {
			cfg.requestTimeout = timeout
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(cfg *clientConfig) {
		if httpClient != nil {
			cfg.httpClient = httpClient
		}
	}
}

// WithClientLogger configures structured logging for Web API operations.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(cfg *clientConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// Client calls the Slack Web API with bearer-token plus cookie authentication
// and decodes each response into its typed per-method result at the boundary.
type Client struct {
	cfg clientConfig
}

// NewClient creates a Slack Web API client.
func NewClient(opts ...ClientOption) *Client {
	cfg := clientConfig{
		baseURL:        DefaultBaseURL,
		requestTimeout: defaultRequestTimeout,
		httpClient:     &http.Client{},
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Client{cfg: cfg}
}

// ListChannels fetches the full non-archived channel directory, walking
// conversations.list cursors until exhausted.
func (c *Client) ListChannels(ctx context.Context) ([]Channel, error) {
	channels := make([]Channel, 0, channelListPageSize)
	cursor := ""

	for {
		payload := map[string]any{
			"exclude_archived": true,
			"types":            channelListTypes,
			"limit":            channelListPageSize,
		}
		if cursor != "" {
			payload["cursor"] = cursor
		}

		var decoded listChannelsResponse
		if err := c.call(ctx, "conversations.list", payload, &decoded); err != nil {
			return nil, fmt.Errorf("list channels: %w", err)
		}

		channels = append(channels, decoded.Channels...)
		cursor = strings.TrimSpace(decoded.ResponseMetadata.NextCursor)
		if cursor == "" {
			return channels, nil
		}
	}
}

// FetchUser fetches one user profile by ID.
func (c *Client) FetchUser(ctx context.Context, userID string) (User, error) {
	trimmedID := strings.TrimSpace(userID)
	if trimmedID == "" {
		return User{}, fmt.Errorf("fetch user: empty user id")
	}

	var decoded userInfoResponse
	if err := c.call(ctx, "users.info", map[string]any{"user": trimmedID}, &decoded); err != nil {
		return User{}, fmt.Errorf("fetch user %s: %w", trimmedID, err)
	}

	return decoded.User, nil
}

// HistoryPage fetches one conversations.history page.
func (c *Client) HistoryPage(ctx context.Context, request HistoryPageRequest) (HistoryPage, error) {
	if strings.TrimSpace(request.Channel) == "" {
		return HistoryPage{}, fmt.Errorf("history page: empty channel")
	}
	if request.Limit <= 0 {
		return HistoryPage{}, fmt.Errorf("history page: limit must be > 0")
	}

	payload := map[string]any{
		"channel": request.Channel,
		"limit":   request.Limit,
	}
	if request.Oldest != "" {
		payload["oldest"] = request.Oldest
	}
	if request.Latest != "" {
		payload["latest"] = request.Latest
	}
	if request.Cursor != "" {
		payload["cursor"] = request.Cursor
	}

	var decoded historyResponse
	if err := c.call(ctx, "conversations.history", payload, &decoded); err != nil {
		return HistoryPage{}, fmt.Errorf("history page: %w", err)
	}

	return HistoryPage{
		Messages:   decoded.Messages,
		NextCursor: strings.TrimSpace(decoded.ResponseMetadata.NextCursor),
	}, nil
}

// SearchPage fetches one search.messages page.
func (c *Client) SearchPage(ctx context.Context, request SearchPageRequest) (SearchPage, error) {
	if strings.TrimSpace(request.Query) == "" {
		return SearchPage{}, fmt.Errorf("search page: empty query")
	}
	if request.Count <= 0 {
		return SearchPage{}, fmt.Errorf("search page: count must be > 0")
	}
	if request.Page <= 0 {
		return SearchPage{}, fmt.Errorf("search page: page must be > 0")
	}

	payload := map[string]any{
		"query": request.Query,
		"sort":  request.Sort,
		"count": request.Count,
		"page":  request.Page,
	}

	var decoded searchResponse
	if err := c.call(ctx, "search.messages", payload, &decoded); err != nil {
		return SearchPage{}, fmt.Errorf("search page: %w", err)
	}

	return SearchPage{
		Matches:   decoded.Messages.Matches,
		PageCount: decoded.Messages.Pagination.PageCount,
	}, nil
}

// PostMessage posts one message to a channel, optionally into a thread, and
// returns the posted message timestamp.
func (c *Client) PostMessage(ctx context.Context, channelID string, text string, threadTS string) (string, error) {
	if strings.TrimSpace(channelID) == "" {
		return "", fmt.Errorf("post message: empty channel")
	}

	payload := map[string]any{
		"channel": channelID,
		"text":    text,
	}
	if trimmed := strings.TrimSpace(threadTS); trimmed != "" {
		payload["thread_ts"] = trimmed
	}

	var decoded postMessageResponse
	if err := c.call(ctx, "chat.postMessage", payload, &decoded); err != nil {
		return "", fmt.Errorf("post message: %w", err)
	}

	return decoded.TS, nil
}

// AddReaction adds one emoji reaction to a message.
func (c *Client) AddReaction(ctx context.Context, channelID string, messageTS string, reaction string) error {
	if strings.TrimSpace(channelID) == "" {
		return fmt.Errorf("add reaction: empty channel")
	}
	if strings.TrimSpace(messageTS) == "" {
		return fmt.Errorf("add reaction: empty message timestamp")
	}

	name := strings.Trim(strings.TrimSpace(reaction), ":")
	if name == "" {
		return fmt.Errorf("add reaction: empty reaction name")
	}

	var decoded struct{ apiEnvelope }
	if err := c.call(ctx, "reactions.add", map[string]any{
		"channel":   channelID,
		"name":      name,
		"timestamp": messageTS,
	}, &decoded); err != nil {
		return fmt.Errorf("add reaction: %w", err)
	}

	return nil
}

// AuthTest checks authentication and returns the caller identity.
func (c *Client) AuthTest(ctx context.Context) (Identity, error) {
	var decoded authTestResponse
	if err := c.call(ctx, "auth.test", nil, &decoded); err != nil {
		return Identity{}, fmt.Errorf("auth test: %w", err)
	}

	return Identity{
		User:   decoded.User,
		UserID: decoded.UserID,
		Team:   decoded.Team,
	}, nil
}

type envelopeCarrier interface {
	envelope() apiEnvelope
}

func (e apiEnvelope) envelope() apiEnvelope {
	return e
}

func (c *Client) call(ctx context.Context, method string, payload map[string]any, target envelopeCarrier) error {
	creds, ok := CredentialsFromContext(ctx)
	if !ok {
		creds = c.cfg.creds
	}
	if !creds.Valid() {
		return fmt.Errorf("call %s: missing credentials", method)
	}

	body := []byte("{}")
	if len(payload) > 0 {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("call %s: encode payload: %w", method, err)
		}
		body = encoded
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.requestTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.cfg.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("call %s: build request: %w", method, err)
	}
	request.Header.Set("Authorization", "Bearer "+creds.Token)
	request.Header.Set("Content-Type", "application/json")
	request.AddCookie(&http.Cookie{Name: "d", Value: creds.Cookie})

	response, err := c.cfg.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, response.Body)
		_ = response.Body.Close()
	}()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("call %s: unexpected status %d", method, response.StatusCode)
	}

	if err := json.NewDecoder(response.Body).Decode(target); err != nil {
		return fmt.Errorf("call %s: decode response: %w", method, err)
	}

	if envelope := target.envelope(); !envelope.OK {
		return &APIError{Method: method, Code: envelope.Error}
	}

	return nil
}
