package fetch

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

type timeoutNetError struct{}

func (timeoutNetError) Error() string   { return "i/o timeout" }
func (timeoutNetError) Timeout() bool   { return true }
func (timeoutNetError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindOther},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"net timeout", timeoutNetError{}, KindTimeout},
		{"client timeout text", errors.New("Get \"x\": context deadline exceeded (Client.Timeout exceeded while awaiting headers)"), KindTimeout},
		{"dns", &net.DNSError{Err: "no such host", Name: "nope.invalid"}, KindConnection},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, KindConnection},
		{"refused text", errors.New("dial tcp: connection refused"), KindConnection},
		{"other", errors.New("unexpected EOF"), KindOther},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestIsTimeout(t *testing.T) {
	t.Parallel()

	require.True(t, IsTimeout(&Error{Kind: KindTimeout, URL: "x", Err: context.DeadlineExceeded}))
	require.False(t, IsTimeout(&Error{Kind: KindConnection, URL: "x", Err: errors.New("refused")}))
	require.False(t, IsTimeout(errors.New("plain")))
}

func TestErrorUnwrap(t *testing.T) {
	t.Parallel()

	inner := errors.New("boom")
	err := &Error{Kind: KindOther, URL: "https://example.com", Err: inner}
	require.ErrorIs(t, err, inner)
	require.Contains(t, err.Error(), "https://example.com")
	require.Contains(t, err.Error(), "other")
}
