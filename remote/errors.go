package remote

import (
	"fmt"
	"strings"
)

// TransportError reports a request that failed on the wire or returned a
// non-success status. StatusCode is zero when no response arrived. For status
// failures the message carries the server's status text.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Status     string
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: request failed: %v", e.Op, e.URL, e.Err)
	}
	status := strings.TrimSpace(strings.TrimPrefix(e.Status, fmt.Sprint(e.StatusCode)))
	if status == "" {
		status = fmt.Sprint(e.StatusCode)
	}
	return "Request failed. " + status
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports a response body that was not the expected JSON.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
