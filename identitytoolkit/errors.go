package identitytoolkit

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"

	"github.com/arloliu/fanout/types"
)

// APIError is a non-2xx response from the API.
//
// It unwraps to the underlying *googleapi.Error, to types.ErrTransient for
// throttling and server errors, and to types.ErrPrincipalExists when the API
// reports a duplicate email.
type APIError struct {
	StatusCode int
	Message    string

	cause *googleapi.Error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity toolkit: %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() []error {
	var errs []error
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	if e.Transient() {
		errs = append(errs, types.ErrTransient)
	}
	if e.EmailExists() {
		errs = append(errs, types.ErrPrincipalExists)
	}

	return errs
}

// Transient reports whether the request may succeed when retried.
func (e *APIError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// EmailExists reports whether the API rejected a duplicate email.
func (e *APIError) EmailExists() bool {
	return strings.HasPrefix(e.Message, "EMAIL_EXISTS") ||
		strings.HasPrefix(e.Message, "DUPLICATE_EMAIL")
}

// IsRateLimited reports whether err is a 429 from the API. A throttled
// request was rejected before any side effect, so it is always safe to retry.
func IsRateLimited(err error) bool {
	var apiErr *APIError

	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// classify turns a service call error into an APIError. Errors without an
// HTTP response (connection resets, timeouts) are transient.
func classify(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return errors.Join(types.ErrTransient, err)
	}

	msg := gerr.Message
	if msg == "" {
		msg = strings.TrimSpace(gerr.Body)
	}
	if msg == "" {
		msg = http.StatusText(gerr.Code)
	}

	return &APIError{StatusCode: gerr.Code, Message: msg, cause: gerr}
}
