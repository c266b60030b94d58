package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"gazette-monitor/internal/shared/telemetry"
	"gazette-monitor/internal/shared/util"
)

var retryBaseDelay = 300 * time.Millisecond

type retrying struct {
	base  Client
	runID string
}

// NewRetrying wraps base with one delayed retry on transient failures.
func NewRetrying(base Client, runID string) Client {
	if base == nil {
		return nil
	}
	return retrying{base: base, runID: runID}
}

func (r retrying) Summarize(ctx context.Context, input SummarizeInput) (Summary, error) {
	out, err := r.base.Summarize(ctx, input)
	if err == nil || !ShouldRetry(err) {
		return out, err
	}

	telemetry.Warn("llm.retry", map[string]any{
		"attempt": 1,
		"run_id":  r.runID,
		"error":   sanitizeError(err),
	})
	select {
	case <-time.After(retryBaseDelay):
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	}
	return r.base.Summarize(ctx, input)
}

// ShouldRetry reports whether err looks like a timeout, a 5xx or a dropped connection.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "server_error") || strings.Contains(msg, "http status 429") {
		return true
	}
	if strings.Contains(msg, "timeout") && (strings.Contains(msg, "openai") || strings.Contains(msg, "llm") || strings.Contains(msg, "client.timeout")) {
		return true
	}
	for _, marker := range []string{"connection reset", "connection refused", "connection closed", "broken pipe", "tls handshake timeout", "eof"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func sanitizeError(err error) string {
	msg := strings.Join(strings.Fields(err.Error()), " ")
	return util.TruncateUTF8(msg, 300)
}
