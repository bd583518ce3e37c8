package slack

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const (
	// DefaultFetchLimit bounds a fetch when the caller supplies no limit.
	DefaultFetchLimit = 1000

	// historyPageCap bounds one conversations.history page request.
	historyPageCap = 200
	// searchPageCap bounds one search.messages page request.
	searchPageCap = 100
)

// PageAPI is the page-producing collaborator driven by the pager.
type PageAPI interface {
	// HistoryPage fetches one cursor-paginated channel history page.
	HistoryPage(ctx context.Context, request HistoryPageRequest) (HistoryPage, error)
	// SearchPage fetches one page-counted search result page.
	SearchPage(ctx context.Context, request SearchPageRequest) (SearchPage, error)
}

// PagerOption mutates pager configuration.
type PagerOption func(*pagerConfig)

type pagerConfig struct {
	logger *slog.Logger
}

// WithPagerLogger configures structured logging for pagination diagnostics.
func WithPagerLogger(logger *slog.Logger) PagerOption {
	return func(cfg *pagerConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// HistoryRequest describes one bounded channel history fetch.
type HistoryRequest struct {
	// Channel is the channel ID to read.
	Channel string
	// Limit bounds the accumulated item count; DefaultFetchLimit when <= 0.
	Limit int
	// Oldest optionally bounds results to timestamps at or after this value.
	Oldest string
	// Latest optionally bounds results to timestamps at or before this value.
	Latest string
}

// SearchRequest describes one bounded message search.
type SearchRequest struct {
	// Query is the search expression.
	Query string
	// Sort selects the result ordering.
	Sort string
	// Limit bounds the accumulated item count; DefaultFetchLimit when <= 0.
	Limit int
}

// Pager assembles bounded result sets by walking paginated Web API responses.
//
// A failed page request stops accumulation and the items gathered so far are
// returned; pagination failures are diagnostics, not caller errors.
type Pager struct {
	api    PageAPI
	logger *slog.Logger
}

// NewPager creates a pager over one page-producing collaborator.
func NewPager(api PageAPI, opts ...PagerOption) (*Pager, error) {
	if api == nil {
		return nil, fmt.Errorf("new pager: nil api")
	}

	cfg := pagerConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Pager{api: api, logger: cfg.logger}, nil
}

// CollectHistory walks conversations.history cursors until the limit is met,
// a page fails, or no continuation cursor remains.
func (p *Pager) CollectHistory(ctx context.Context, request HistoryRequest) []Message {
	limit := normalizeFetchLimit(request.Limit)
	messages := make([]Message, 0, min(limit, historyPageCap))
	cursor := ""

	for len(messages) < limit {
		page, err := p.api.HistoryPage(ctx, HistoryPageRequest{
			Channel: request.Channel,
			Limit:   min(historyPageCap, limit-len(messages)),
			Oldest:  request.Oldest,
			Latest:  request.Latest,
			Cursor:  cursor,
		})
		if err != nil {
			p.logger.Warn("channel history page failed, returning partial results",
				"channel", request.Channel,
				"accumulated", len(messages),
				"error", err,
			)
			break
		}

		messages = append(messages, page.Messages...)
		cursor = strings.TrimSpace(page.NextCursor)
		if cursor == "" {
			break
		}
	}

	return messages
}

// CollectSearch walks numbered search.messages pages until the limit is met,
// a page fails, a page comes back empty, or the reported page count is
// reached.
func (p *Pager) CollectSearch(ctx context.Context, request SearchRequest) []Message {
	limit := normalizeFetchLimit(request.Limit)
	matches := make([]Message, 0, min(limit, searchPageCap))

	for page := 1; len(matches) < limit; page++ {
		result, err := p.api.SearchPage(ctx, SearchPageRequest{
			Query: request.Query,
			Sort:  request.Sort,
			Count: min(searchPageCap, limit-len(matches)),
			Page:  page,
		})
		if err != nil {
			p.logger.Warn("search page failed, returning partial results",
				"query", request.Query,
				"page", page,
				"accumulated", len(matches),
				"error", err,
			)
			break
		}
		if len(result.Matches) == 0 {
			break
		}

		matches = append(matches, result.Matches...)
		if page >= result.PageCount {
			break
		}
	}

	return matches
}

func normalizeFetchLimit(limit int) int {
	if limit <= 0 {
		return DefaultFetchLimit
	}

	return limit
}
