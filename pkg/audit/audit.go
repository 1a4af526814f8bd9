package audit

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/NeuralTrust/ReplyGuard/pkg/infra/prometheus"
	"github.com/NeuralTrust/ReplyGuard/pkg/types"
)

// Recorder accepts audit entries fire-and-forget. A failing or saturated
// recorder must never block or fail the validation call that produced the
// entry.
type Recorder interface {
	Record(entry types.AuditLogEntry)
}

// Sink persists entries. Implementations: JSONL file, postgres.
type Sink interface {
	Name() string
	Write(ctx context.Context, entry types.AuditLogEntry) error
}

const (
	queueSize          = 1000
	unhealthyThreshold = 10
)

// sinkState pairs a sink with its consecutive-failure streak. A streak only
// resets when that same sink succeeds, so one healthy sink cannot mask a
// sibling that is permanently down.
type sinkState struct {
	sink   Sink
	streak atomic.Int64
}

// Writer drains a bounded queue into its sinks with a small worker pool.
// When the queue is full the entry is dropped and counted; a repeated-drop
// or per-sink failure streak flips the health signal.
type Writer struct {
	sinks  []*sinkState
	queue  chan types.AuditLogEntry
	logger *logrus.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	drops  atomic.Int64
}

func NewWriter(sinks []Sink, logger *logrus.Logger, workers int) *Writer {
	if workers <= 0 {
		workers = 2
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Writer{
		queue:  make(chan types.AuditLogEntry, queueSize),
		logger: logger,
		cancel: cancel,
	}
	for _, sink := range sinks {
		w.sinks = append(w.sinks, &sinkState{sink: sink})
	}
	for i := 0; i < workers; i++ {
		w.wg.Add(1)
		go w.drain(ctx)
	}
	return w
}

func (w *Writer) Record(entry types.AuditLogEntry) {
	// The read lock keeps the enqueue and Shutdown's close of the queue
	// mutually exclusive.
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.queue <- entry:
		w.drops.Store(0)
	default:
		prometheus.AuditDroppedTotal.Inc()
		w.drops.Add(1)
		w.logger.Warn("audit queue full, dropping entry")
	}
}

// Healthy reports whether the writer is keeping up: no drop streak and no
// sink stuck in a failure streak.
func (w *Writer) Healthy() bool {
	if w.drops.Load() >= unhealthyThreshold {
		return false
	}
	for _, st := range w.sinks {
		if st.streak.Load() >= unhealthyThreshold {
			return false
		}
	}
	return true
}

// Shutdown stops the workers after draining what is already queued.
func (w *Writer) Shutdown() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	w.wg.Wait()
	w.cancel()
}

func (w *Writer) drain(ctx context.Context) {
	defer w.wg.Done()
	for entry := range w.queue {
		for _, st := range w.sinks {
			if err := st.sink.Write(ctx, entry); err != nil {
				prometheus.AuditWriteFailureTotal.WithLabelValues(st.sink.Name()).Inc()
				st.streak.Add(1)
				w.logger.WithError(err).WithField("sink", st.sink.Name()).Error("audit write failed")
				continue
			}
			st.streak.Store(0)
		}
	}
}

// Discard is a Recorder that drops everything; used in tests and when
// auditing is disabled.
type Discard struct{}

func (Discard) Record(types.AuditLogEntry) {}
