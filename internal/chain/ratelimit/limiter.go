package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/getclave/activity-indexer/internal/metrics"
)

// Limiter is the token bucket in front of the chain RPC endpoint.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter allows rps requests per second with a burst of burst tokens.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until one token is available or ctx is done. Reserve is
// used instead of the limiter's own Wait so that exactly one token is
// consumed per call and a cancelled wait returns its token.
func (l *Limiter) Wait(ctx context.Context) error {
	r := l.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate: cannot reserve token")
	}
	if delay := r.Delay(); delay > 0 {
		metrics.RPCRateLimitWaits.Inc()
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			r.Cancel()
			return ctx.Err()
		}
	}
	return nil
}

// RecordRPCCall counts one RPC outcome under its classified status.
func RecordRPCCall(method string, err error) {
	metrics.RPCCallsTotal.WithLabelValues(method, ClassifyRPCError(err)).Inc()
}

// errClasses is matched in order; timeout must win over the generic
// network markers ("eof" appears in both kinds of failure text).
var errClasses = []struct {
	status  string
	markers []string
}{
	{"timeout", []string{"timeout", "deadline exceeded"}},
	{"rate_limited", []string{"rate limit", "429", "too many requests"}},
	{"server_error", []string{"500", "502", "503", "internal server error"}},
	{"network_error", []string{
		"connection refused", "connection reset", "network is unreachable",
		"no such host", "broken pipe", "eof",
	}},
}

// ClassifyRPCError maps an RPC error onto a coarse status label for
// metrics. Unrecognized errors count as client errors.
func ClassifyRPCError(err error) string {
	if err == nil {
		return "ok"
	}
	msg := strings.ToLower(err.Error())
	for _, c := range errClasses {
		for _, marker := range c.markers {
			if strings.Contains(msg, marker) {
				return c.status
			}
		}
	}
	return "client_error"
}
