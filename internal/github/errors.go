package github

import (
	"fmt"
	"net/http"
)

// InvalidURLError reports an endpoint that could not be built or a
// provider-supplied URL that is not well formed.
type InvalidURLError struct {
	URL    string
	Reason string
	Err    error
}

func (e *InvalidURLError) Error() string {
	msg := fmt.Sprintf("invalid url %q", e.URL)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidURLError) Unwrap() error { return e.Err }

// TransportError reports that the API host could not be reached or the
// exchange was cut short (DNS, connect, timeout, body read).
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("requesting %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError reports that the API answered with an error status.
type StatusError struct {
	URL        string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("GitHub API returned %d %s for %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// DecodeError reports a response body that does not have the expected shape.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding response from %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
