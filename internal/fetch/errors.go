package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies fetch failures so downstream policy can treat them
// differently (timeouts are downgraded to empty success by the batch
// processor, everything else is a per-URL error).
type Kind string

// Failure classes.
const (
	KindTimeout    Kind = "timeout"
	KindConnection Kind = "connection"
	KindTooLarge   Kind = "too_large"
	KindOther      Kind = "other"
)

// Error wraps a fetch failure with its classification and the URL involved.
type Error struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a timeout-class fetch failure.
func IsTimeout(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == KindTimeout
}

// Classify maps a raw transport error onto a failure Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	msg := err.Error()
	if strings.Contains(msg, "Client.Timeout") || strings.Contains(msg, "deadline exceeded") {
		return KindTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}
	if strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "connection reset") {
		return KindConnection
	}
	return KindOther
}

func wrap(url string, err error) error {
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return &Error{Kind: Classify(err), URL: url, Err: err}
}
