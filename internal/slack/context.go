package slack

import (
	"context"
	"net/http"
	"strings"
)

// Request headers carrying per-request workspace credentials in HTTP
// transport mode.
const (
	HeaderWebToken    = "X-Slack-Web-Token"
	HeaderCookieToken = "X-Slack-Cookie-Token"
)

// Credentials authenticates requests against the Slack Web API.
type Credentials struct {
	// Token is the xoxc web token sent as a bearer token.
	Token string
	// Cookie is the xoxd cookie token sent as the "d" cookie.
	Cookie string
}

// Valid reports whether both credential parts are present.
func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.Token) != "" && strings.TrimSpace(c.Cookie) != ""
}

type credentialsContextKey struct{}

// WithCredentials returns a context carrying per-request credentials that
// override the client's configured credentials.
func WithCredentials(ctx context.Context, creds Credentials) context.Context {
	return context.WithValue(ctx, credentialsContextKey{}, creds)
}

// CredentialsFromContext extracts per-request credentials, if any.
func CredentialsFromContext(ctx context.Context) (Credentials, bool) {
	creds, ok := ctx.Value(credentialsContextKey{}).(Credentials)
	if !ok || !creds.Valid() {
		return Credentials{}, false
	}

	return creds, true
}

// CredentialMiddleware copies per-request credential headers into the request
// context before handing off to next.
//
// Requests without credential headers pass through unchanged and fall back to
// the client's configured credentials.
func CredentialMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creds := Credentials{
			Token:  strings.TrimSpace(r.Header.Get(HeaderWebToken)),
			Cookie: strings.TrimSpace(r.Header.Get(HeaderCookieToken)),
		}
		if creds.Valid() {
			r = r.WithContext(WithCredentials(r.Context(), creds))
		}

		next.ServeHTTP(w, r)
	})
}
