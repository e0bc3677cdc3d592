package reliability

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// StatusError is a non-2xx reply from an upstream HTTP backend.
type StatusError struct {
	Backend string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: upstream status %d", e.Backend, e.Status)
	}
	return fmt.Sprintf("%s: upstream status %d: %s", e.Backend, e.Status, e.Body)
}

func (e *StatusError) Retryable() bool { return IsRetryableHTTPStatus(e.Status) }

// IsRetryable reports whether err wraps a StatusError worth retrying.
func IsRetryable(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Retryable()
}

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsRetryableRealtimeMessageType classifies retryable upstream realtime errors.
func IsRetryableRealtimeMessageType(messageType string) bool {
	switch messageType {
	case "rate_limited", "resource_exhausted", "queue_overflow", "error":
		return true
	default:
		return false
	}
}

// Error kinds reported by Classify.
const (
	KindTimeout     = "timeout"
	KindCanceled    = "canceled"
	KindRateLimited = "rate_limited"
	KindUpstream    = "upstream"
	KindRejected    = "rejected"
	KindNetwork     = "network"
	KindUnknown     = "unknown"
)

// Classify buckets a backend error into a small label set for metrics and logs.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Status == 429:
			return KindRateLimited
		case se.Status >= 500:
			return KindUpstream
		default:
			return KindRejected
		}
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	return KindUnknown
}
