package sim

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// Metrics is the logrus-backed counter/gauge sink described in §6.4. It is
// safe for concurrent use. The engine's main loop reports through it; the
// Repository implementations keep their own batch_commit_errors_total
// counters and do not call IncBatchCommitErrors.
type Metrics struct {
	queueLength          atomic.Int64
	batchCommitErrors    atomic.Int64
	simulationsActive    atomic.Int64

	mu           sync.Mutex
	actionsTotal map[actionKey]int64
	latencies    []float64 // event_latency_ms samples, bounded by latencyCap

	log *logrus.Entry
}

type actionKey struct {
	kind       EventKind
	level      PurchaseLevel
	profession Profession
}

// latencyCap bounds the in-memory event_latency_ms sample buffer; beyond it,
// the oldest sample is dropped to keep memory flat for long runs.
const latencyCap = 10000

// NewMetrics returns an empty Metrics sink.
func NewMetrics() *Metrics {
	return &Metrics{
		actionsTotal: make(map[actionKey]int64),
		log:          logrus.WithField("component", "metrics"),
	}
}

// SetQueueLength reports the current event queue depth (queue_length).
func (m *Metrics) SetQueueLength(n int) {
	m.queueLength.Store(int64(n))
}

// QueueLength returns the last reported queue_length.
func (m *Metrics) QueueLength() int64 {
	return m.queueLength.Load()
}

// ObserveEventLatency records one event_latency_ms sample: the wall-clock
// duration spent dispatching a single event.
func (m *Metrics) ObserveEventLatency(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.latencies) >= latencyCap {
		m.latencies = m.latencies[1:]
	}
	m.latencies = append(m.latencies, ms)
}

// EventLatencySnapshot returns count, mean, and max of the currently
// buffered event_latency_ms samples.
func (m *Metrics) EventLatencySnapshot() (count int, mean, max float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count = len(m.latencies)
	if count == 0 {
		return 0, 0, 0
	}
	sum := 0.0
	for _, v := range m.latencies {
		sum += v
		if v > max {
			max = v
		}
	}
	return count, sum / float64(count), max
}

// IncBatchCommitErrors increments batch_commit_errors_total.
func (m *Metrics) IncBatchCommitErrors() {
	m.batchCommitErrors.Add(1)
}

// BatchCommitErrorsTotal returns batch_commit_errors_total.
func (m *Metrics) BatchCommitErrorsTotal() int64 {
	return m.batchCommitErrors.Load()
}

// SetSimulationsActive reports simulations_active (0 or 1, per I5).
func (m *Metrics) SetSimulationsActive(n int64) {
	m.simulationsActive.Store(n)
}

// RecordAction increments actions_total{kind, level, profession}. level is
// empty for non-purchase kinds.
func (m *Metrics) RecordAction(kind EventKind, level PurchaseLevel, profession Profession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actionsTotal[actionKey{kind: kind, level: level, profession: profession}]++
}

// ActionsTotal returns the current count for one (kind, level, profession)
// triple; level may be "" for non-purchase kinds.
func (m *Metrics) ActionsTotal(kind EventKind, level PurchaseLevel, profession Profession) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.actionsTotal[actionKey{kind: kind, level: level, profession: profession}]
}

// LogEvent emits the structured per-event log line named in §6.4:
// {ts, level, sim_id, event_id, kind, duration_ms, msg}.
func (m *Metrics) LogEvent(ev *Event, duration time.Duration, msg string) {
	m.log.WithFields(logrus.Fields{
		"sim_id":      ev.SimulationID,
		"event_id":    ev.ID,
		"kind":        ev.Kind,
		"duration_ms": humanize.FtoaWithDigits(float64(duration)/float64(time.Millisecond), 3),
	}).Info(msg)
}

// LogCritical emits a CRITICAL-severity log line for unrecoverable
// conditions (retry exhaustion, fatal invariant violations) per §4.3/§4.8.
func (m *Metrics) LogCritical(msg string, fields logrus.Fields) {
	entry := m.log.WithField("severity", "critical")
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	entry.Error(msg)
}
