package memory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ConfigurationError reports an unusable configuration, such as a missing
// API key. It is fatal at startup.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// ValidationError reports a request rejected before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// FailureKind classifies a remote failure.
type FailureKind string

const (
	FailureTimeout   FailureKind = "timeout"
	FailureNetwork   FailureKind = "network"
	FailureStatus    FailureKind = "status"
	FailureMalformed FailureKind = "malformed"
)

// RemoteServiceError reports a failed call to the memory service.
// It is always recoverable; callers decide whether to degrade or surface it.
type RemoteServiceError struct {
	Op         string // "search" or "store"
	Kind       FailureKind
	StatusCode int // Set when Kind is FailureStatus
	Err        error
}

func (e *RemoteServiceError) Error() string {
	switch {
	case e.Kind == FailureStatus && e.Err != nil:
		return fmt.Sprintf("memory service %s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	case e.Kind == FailureStatus:
		return fmt.Sprintf("memory service %s: HTTP %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("memory service %s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("memory service %s: %s", e.Op, e.Kind)
	}
}

func (e *RemoteServiceError) Unwrap() error {
	return e.Err
}

// ClassifyTransportError maps an error returned by an HTTP round trip to a
// FailureKind.
func ClassifyTransportError(err error) FailureKind {
	if err == nil {
		return FailureNetwork
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return FailureTimeout
	}
	return FailureNetwork
}

// Reason renders err as the short, user-facing reason embedded in tool replies.
func Reason(err error) string {
	var remote *RemoteServiceError
	if errors.As(err, &remote) {
		switch remote.Kind {
		case FailureTimeout:
			return "request timed out"
		case FailureStatus:
			return fmt.Sprintf("service responded with HTTP %d", remote.StatusCode)
		case FailureMalformed:
			return "service returned an unreadable response"
		}
		if remote.Err != nil {
			return remote.Err.Error()
		}
	}
	return err.Error()
}
