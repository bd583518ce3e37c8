package slack

import "strings"

// Channel is one conversation container from the Slack channel directory.
type Channel struct {
	// ID is the stable channel identifier.
	ID string `json:"id"`
	// Name is the human-readable channel name without the leading '#'.
	Name string `json:"name"`
}

// User is the subset of a Slack user profile consumed by handle resolution.
type User struct {
	// ID is the opaque user identifier.
	ID string `json:"id"`
	// Name is the account name.
	Name string `json:"name"`
	// RealName is the profile real name.
	RealName string `json:"real_name"`
	// Profile carries nested profile fields.
	Profile Profile `json:"profile"`
}

// Profile carries the nested profile fields consumed by handle resolution.
type Profile struct {
	// DisplayName is the preferred display name.
	DisplayName string `json:"display_name"`
}

// Handle returns the preferred human-readable handle for the user.
//
// Priority is display name, then real name, then account name. An empty
// string means no usable handle is present.
func (u User) Handle() string {
	if handle := strings.TrimSpace(u.Profile.DisplayName); handle != "" {
		return handle
	}
	if handle := strings.TrimSpace(u.RealName); handle != "" {
		return handle
	}

	return strings.TrimSpace(u.Name)
}

// Message is one raw channel or search message with only the consumed fields.
//
// Slack returns a superset of fields; everything else is dropped at decode
// time.
type Message struct {
	// Text is the raw message text with mention tokens intact.
	Text string `json:"text"`
	// User is the author user ID.
	User string `json:"user"`
	// TS is the canonical fractional-second message timestamp.
	TS string `json:"ts"`
	// ThreadTS is the parent thread timestamp when the message is threaded.
	ThreadTS string `json:"thread_ts,omitempty"`
}

// Identity is the caller identity reported by auth.test.
type Identity struct {
	// User is the account name of the authenticated user.
	User string `json:"user"`
	// UserID is the opaque user ID of the authenticated user.
	UserID string `json:"user_id"`
	// Team is the workspace name.
	Team string `json:"team"`
}

// HistoryPage is one decoded conversations.history page.
type HistoryPage struct {
	// Messages are the page items in API order.
	Messages []Message
	// NextCursor is the continuation cursor; empty means the last page.
	NextCursor string
}

// SearchPage is one decoded search.messages page.
type SearchPage struct {
	// Matches are the page items in API order.
	Matches []Message
	// PageCount is the total page count reported by the API.
	PageCount int
}

// HistoryPageRequest identifies one conversations.history page.
type HistoryPageRequest struct {
	// Channel is the channel ID to read.
	Channel string
	// Limit is the requested page size.
	Limit int
	// Oldest optionally bounds results to timestamps at or after this value.
	Oldest string
	// Latest optionally bounds results to timestamps at or before this value.
	Latest string
	// Cursor is the continuation cursor from the previous page, if any.
	Cursor string
}

// SearchPageRequest identifies one search.messages page.
type SearchPageRequest struct {
	// Query is the search expression.
	Query string
	// Sort selects the result ordering.
	Sort string
	// Count is the requested page size.
	Count int
	// Page is the 1-based page number.
	Page int
}

type apiEnvelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type responseMetadata struct {
	NextCursor string `json:"next_cursor"`
}

type listChannelsResponse struct {
	apiEnvelope
	Channels         []Channel        `json:"channels"`
	ResponseMetadata responseMetadata `json:"response_metadata"`
}

type userInfoResponse struct {
	apiEnvelope
	User User `json:"user"`
}

type historyResponse struct {
	apiEnvelope
	Messages         []Message        `json:"messages"`
	ResponseMetadata responseMetadata `json:"response_metadata"`
}

type searchResponse struct {
	apiEnvelope
	Messages searchResults `json:"messages"`
}

type searchResults struct {
	Matches    []Message        `json:"matches"`
	Pagination searchPagination `json:"pagination"`
}

type searchPagination struct {
	PageCount int `json:"page_count"`
}

type postMessageResponse struct {
	apiEnvelope
	TS string `json:"ts"`
}

type authTestResponse struct {
	apiEnvelope
	User   string `json:"user"`
	UserID string `json:"user_id"`
	Team   string `json:"team"`
}
