package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from the GitHub REST API.
type APIError struct {
	StatusCode       int
	Message          string
	DocumentationURL string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: HTTP %d: %s", e.StatusCode, e.Message)
}

func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}

	var wire struct {
		Message          string `json:"message"`
		DocumentationURL string `json:"documentation_url"`
	}
	if json.Unmarshal(body, &wire) == nil && wire.Message != "" {
		apiErr.Message = wire.Message
		apiErr.DocumentationURL = wire.DocumentationURL
	} else if len(body) > 0 {
		apiErr.Message = strings.TrimSpace(string(body))
	} else {
		apiErr.Message = http.StatusText(statusCode)
	}
	return apiErr
}

// AsAPIError unwraps err to an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// ErrorKind is the closed classification of remote failures shared by
// every caller of the client.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindPermissionDenied
	KindTransient
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Classify maps an error returned by the client to an ErrorKind.
//
// 404 is NotFound. 403 is PermissionDenied unless GitHub says it is a
// rate limit, which is Transient along with 429, 5xx, timeouts and
// network failures. Everything else is Unknown.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	if apiErr, ok := AsAPIError(err); ok {
		switch {
		case apiErr.StatusCode == http.StatusNotFound:
			return KindNotFound
		case apiErr.StatusCode == http.StatusForbidden && isRateLimitMessage(apiErr.Message):
			return KindTransient
		case apiErr.StatusCode == http.StatusForbidden:
			return KindPermissionDenied
		case apiErr.StatusCode == http.StatusTooManyRequests, apiErr.StatusCode >= 500:
			return KindTransient
		default:
			return KindUnknown
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	return KindUnknown
}

func IsNotFound(err error) bool {
	return Classify(err) == KindNotFound
}

func isRateLimitMessage(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "rate limit") || strings.Contains(lower, "abuse detection")
}
