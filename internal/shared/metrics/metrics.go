package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	runsStartedTotal          atomic.Uint64
	runsCompletedTotal        atomic.Uint64
	runsFailedTotal           atomic.Uint64
	runsSkippedTotal          atomic.Uint64
	notificationsSentTotal    atomic.Uint64
	notificationsFailedTotal  atomic.Uint64
	runJobsReceivedTotal      atomic.Uint64
	runJobsDeletedUnrecovered atomic.Uint64

	runDuration = newHistogram([]float64{1000, 5000, 10000, 30000, 60000, 120000, 300000, 600000})
)

// IncRunsStarted increments the started counter.
func IncRunsStarted() {
	runsStartedTotal.Add(1)
}

// IncRunsCompleted increments the completed counter.
func IncRunsCompleted() {
	runsCompletedTotal.Add(1)
}

// IncRunsFailed increments the failed counter.
func IncRunsFailed() {
	runsFailedTotal.Add(1)
}

// IncRunsSkipped counts runs that found an already notified edition.
func IncRunsSkipped() {
	runsSkippedTotal.Add(1)
}

// IncNotificationsSent counts successful deliveries, one per notifier.
func IncNotificationsSent() {
	notificationsSentTotal.Add(1)
}

// IncNotificationsFailed counts failed deliveries, one per notifier.
func IncNotificationsFailed() {
	notificationsFailedTotal.Add(1)
}

// IncRunJobsReceived counts queue messages picked up by a worker.
func IncRunJobsReceived() {
	runJobsReceivedTotal.Add(1)
}

// IncRunJobsDeletedUnrecoverable counts queue messages dropped as undecodable.
func IncRunJobsDeletedUnrecoverable() {
	runJobsDeletedUnrecovered.Add(1)
}

// ObserveRunDurationMs records a run duration in milliseconds.
func ObserveRunDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	runDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "runs_started_total", "Total monitor runs started", runsStartedTotal.Load())
	writeCounter(&buf, "runs_completed_total", "Total monitor runs completed", runsCompletedTotal.Load())
	writeCounter(&buf, "runs_failed_total", "Total monitor runs failed", runsFailedTotal.Load())
	writeCounter(&buf, "runs_skipped_total", "Total monitor runs skipped as already notified", runsSkippedTotal.Load())
	writeCounter(&buf, "notifications_sent_total", "Total notifications delivered", notificationsSentTotal.Load())
	writeCounter(&buf, "notifications_failed_total", "Total notifications that failed", notificationsFailedTotal.Load())
	writeCounter(&buf, "run_jobs_received_total", "Total run requests received from the queue", runJobsReceivedTotal.Load())
	writeCounter(&buf, "run_jobs_deleted_unrecoverable_total", "Total run requests dropped as unrecoverable", runJobsDeletedUnrecovered.Load())
	writeHistogram(&buf, "run_duration_ms", "Monitor run duration in milliseconds", runDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	// Observe already counts each value into every bucket it fits.
	for i, bound := range snap.buckets {
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), snap.counts[i])
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
