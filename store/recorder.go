// Package store persists harvested records. The Recorder keeps the two
// result sets on disk in step with the run: every commit triggers a full
// rewrite of each sink, performed by one background worker.
package store

import (
	"log/slog"
	"sync"

	"github.com/use-agent/qaharvest/metrics"
	"github.com/use-agent/qaharvest/models"
)

type snapshot struct {
	accepted    []models.Record
	nonAccepted []models.Record
}

// Recorder partitions committed records and flushes both result sets.
//
// Flushes never run concurrently: a single worker goroutine writes them in
// order. When commits outpace the disk, an unflushed snapshot is replaced by
// the newer one, which already contains every earlier record.
type Recorder struct {
	state *models.RunState
	sinks []Sink

	mu      sync.Mutex
	pending *snapshot
	closed  bool

	wake chan struct{}
	done chan struct{}
}

// NewRecorder starts the flush worker. Close must be called to stop it.
func NewRecorder(state *models.RunState, sinks ...Sink) *Recorder {
	r := &Recorder{
		state: state,
		sinks: sinks,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

// Commit appends rec to its partition and schedules a flush. It returns
// without waiting for the disk.
func (r *Recorder) Commit(rec models.Record) {
	accepted, nonAccepted := r.state.Append(rec)
	partition := "no_accepted"
	if rec.HasAcceptedAnswer {
		partition = "accepted"
	}
	metrics.RecordsCommitted.WithLabelValues(partition).Inc()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		slog.Warn("commit after recorder close, record kept in memory only", "url", rec.URL)
		return
	}
	r.pending = &snapshot{accepted: accepted, nonAccepted: nonAccepted}
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Close performs a final flush of the complete result sets and stops the
// worker. Output files are written even when nothing was committed, and a
// failed earlier flush is repaired here.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	close(r.wake)
	r.mu.Unlock()
	<-r.done
}

// Paths lists every file the sinks write.
func (r *Recorder) Paths() []string {
	var out []string
	for _, s := range r.sinks {
		out = append(out, s.Paths()...)
	}
	return out
}

func (r *Recorder) run() {
	defer close(r.done)
	for range r.wake {
		r.mu.Lock()
		snap := r.pending
		r.pending = nil
		r.mu.Unlock()
		if snap != nil {
			r.flush(snap)
		}
	}

	// Final flush from the run state, whatever happened to earlier ones.
	accepted, nonAccepted := r.state.Results()
	r.flush(&snapshot{accepted: accepted, nonAccepted: nonAccepted})
}

func (r *Recorder) flush(snap *snapshot) {
	for _, sink := range r.sinks {
		if err := sink.Write(snap.accepted, snap.nonAccepted); err != nil {
			// The next flush rewrites everything, including these records.
			perr := models.NewScrapeError(models.ErrCodePersistence, "flush failed", err)
			slog.Error("result flush failed",
				"sink", sink.Name(),
				"code", perr.Code,
				"error", perr,
			)
			metrics.Flushes.WithLabelValues(sink.Name(), "failed").Inc()
			continue
		}
		metrics.Flushes.WithLabelValues(sink.Name(), "ok").Inc()
	}

	slog.Debug("results flushed",
		"accepted", len(snap.accepted),
		"no_accepted", len(snap.nonAccepted),
	)
}
