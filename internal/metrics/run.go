package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run holds the metrics of a single invocation on its own registry, so a
// batch run can export them to a node_exporter textfile when it exits
type Run struct {
	Registry *prometheus.Registry

	// EntriesSeen counts entries dispatched to an operation
	EntriesSeen prometheus.Counter

	// EntriesSkipped counts entries the filter kept back, by reason
	EntriesSkipped *prometheus.CounterVec

	// WalkErrors counts entries the walk could not read
	WalkErrors prometheus.Counter

	// Matched counts entries an operation acted on, by operation
	Matched *prometheus.CounterVec

	// Failed counts matched entries whose move or rename failed
	Failed *prometheus.CounterVec

	// BytesQuarantined tracks bytes moved into the trash directory
	BytesQuarantined prometheus.Counter

	// MatchedFileBytes is the size distribution of matched files
	MatchedFileBytes prometheus.Histogram

	// ActionDuration tracks how long single moves and renames take
	ActionDuration prometheus.Histogram

	// RunDuration records the wall-clock time of the run
	RunDuration prometheus.Histogram

	// Workers is the size of the worker pool
	Workers prometheus.Gauge

	// RootFreeBytes is the free space on the root's filesystem at start
	RootFreeBytes prometheus.Gauge

	// LastRunTimestamp records when the run finished (Unix epoch seconds)
	LastRunTimestamp prometheus.Gauge
}

// NewRun creates and registers all run metrics on a fresh registry
func NewRun() *Run {
	m := &Run{
		Registry: prometheus.NewRegistry(),
		EntriesSeen: NewCounter(
			"trashtrim_entries_seen_total",
			"Entries dispatched to an operation.",
		),
		EntriesSkipped: NewCounterVec(
			"trashtrim_entries_skipped_total",
			"Entries excluded by the path filter.",
			[]string{"reason"},
		),
		WalkErrors: NewCounter(
			"trashtrim_walk_errors_total",
			"Entries that could not be read during the walk.",
		),
		Matched: NewCounterVec(
			"trashtrim_entries_matched_total",
			"Entries an operation matched.",
			[]string{"op"},
		),
		Failed: NewCounterVec(
			"trashtrim_actions_failed_total",
			"Matched entries whose filesystem action failed.",
			[]string{"op"},
		),
		BytesQuarantined: NewCounter(
			"trashtrim_bytes_quarantined_total",
			"Bytes moved into the trash directory.",
		),
		MatchedFileBytes: NewHistogram(
			"trashtrim_matched_file_bytes",
			"Size of matched files in bytes.",
			BytesBuckets,
		),
		ActionDuration: NewHistogram(
			"trashtrim_action_duration_seconds",
			"Duration of a single move or rename in seconds.",
			ActionBuckets,
		),
		RunDuration: NewHistogram(
			"trashtrim_run_duration_seconds",
			"Wall-clock duration of the run in seconds.",
			DurationBuckets,
		),
		Workers: NewGauge(
			"trashtrim_workers",
			"Size of the worker pool.",
		),
		RootFreeBytes: NewGauge(
			"trashtrim_root_free_bytes",
			"Free bytes on the filesystem of the processed root when the run started.",
		),
		LastRunTimestamp: NewGauge(
			"trashtrim_last_run_timestamp",
			"Timestamp of the last completed run (Unix epoch seconds).",
		),
	}

	m.Registry.MustRegister(
		m.EntriesSeen,
		m.EntriesSkipped,
		m.WalkErrors,
		m.Matched,
		m.Failed,
		m.BytesQuarantined,
		m.MatchedFileBytes,
		m.ActionDuration,
		m.RunDuration,
		m.Workers,
		m.RootFreeBytes,
		m.LastRunTimestamp,
	)
	return m
}

// RecordSkip increments the skip counter for reason
func (m *Run) RecordSkip(reason string) {
	m.EntriesSkipped.WithLabelValues(reason).Inc()
}

// RecordAction records one matched entry
func (m *Run) RecordAction(op string, size int64, quarantined bool, failed bool, took time.Duration) {
	m.Matched.WithLabelValues(op).Inc()
	m.MatchedFileBytes.Observe(float64(size))
	m.ActionDuration.Observe(took.Seconds())
	if failed {
		m.Failed.WithLabelValues(op).Inc()
		return
	}
	if quarantined {
		m.BytesQuarantined.Add(float64(size))
	}
}

// Finish stamps the run duration and completion time
func (m *Run) Finish(elapsed time.Duration, now time.Time) {
	m.RunDuration.Observe(elapsed.Seconds())
	m.LastRunTimestamp.Set(float64(now.Unix()))
}

// WriteTextfile writes the registry in the text exposition format,
// atomically replacing path
func (m *Run) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
