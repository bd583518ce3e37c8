package slack

import "fmt"

// APIError is a remote-reported application error (ok:false with an error
// code) from one Slack Web API method.
type APIError struct {
	// Method is the API method that reported the error.
	Method string
	// Code is the error code reported by the API.
	Code string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e == nil {
		return "slack api error"
	}
	if e.Code == "" {
		return fmt.Sprintf("slack %s: request not ok", e.Method)
	}

	return fmt.Sprintf("slack %s: %s", e.Method, e.Code)
}
