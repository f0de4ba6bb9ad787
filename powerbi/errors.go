// ABOUTME: Typed errors returned by the Power BI client.
// ABOUTME: Callers branch with errors.As / errors.Is instead of parsing message text.

package powerbi

import (
	"errors"
	"fmt"
)

// ErrNoRefreshHistory is returned when a dataset has never been refreshed.
var ErrNoRefreshHistory = errors.New("no refresh history")

// AuthError means no access token could be obtained.
type AuthError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to retrieve access token: %d - %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("failed to retrieve access token: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// APIError is a non-success HTTP status from the REST API.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: Power BI API error: %d - %s", e.Op, e.StatusCode, e.Body)
}

// QueryError is a DAX failure reported inside an otherwise successful response.
type QueryError struct {
	Code    string
	Message string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("Query failed. %s : %s", e.Code, e.Message)
}
