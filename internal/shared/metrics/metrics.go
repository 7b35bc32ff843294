package metrics

import (
	"bytes"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
)

var (
	filesStoredTotal          atomic.Uint64
	filesFailedTotal          atomic.Uint64
	agentsCreatedTotal        atomic.Uint64
	qualityPointsCreatedTotal atomic.Uint64

	fileDuration = newHistogram([]float64{10, 25, 50, 100, 250, 500, 1000, 2000, 5000})
)

// IncFileStored increments the stored-file counter.
func IncFileStored() {
	filesStoredTotal.Add(1)
}

// IncFileFailed increments the failed-file counter.
func IncFileFailed() {
	filesFailedTotal.Add(1)
}

// IncAgentCreated increments the created-agent counter.
func IncAgentCreated() {
	agentsCreatedTotal.Add(1)
}

// AddQualityPointsCreated records n newly inserted quality points.
func AddQualityPointsCreated(n uint64) {
	qualityPointsCreatedTotal.Add(n)
}

// ObserveFileDurationMs records one file's ingest duration in milliseconds.
func ObserveFileDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	fileDuration.Observe(value)
}

// Render renders metrics in Prometheus text format for the run log.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "import_files_stored_total", "Total report files committed and marked stored", filesStoredTotal.Load())
	writeCounter(&buf, "import_files_failed_total", "Total report files rolled back and marked failed", filesFailedTotal.Load())
	writeCounter(&buf, "import_agents_created_total", "Total agent rows created", agentsCreatedTotal.Load())
	writeCounter(&buf, "import_quality_points_created_total", "Total quality point rows created", qualityPointsCreatedTotal.Load())
	writeHistogram(&buf, "import_file_duration_ms", "Per-file ingest duration in milliseconds", fileDuration.Snapshot())
	return buf.String()
}

// Reset zeroes all counters and histogram state. Tests only.
func Reset() {
	filesStoredTotal.Store(0)
	filesFailedTotal.Store(0)
	agentsCreatedTotal.Store(0)
	qualityPointsCreatedTotal.Store(0)
	fileDuration.reset()
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
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func (h *histogram) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts = make([]uint64, len(h.buckets))
	h.sum = 0
	h.count = 0
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
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
