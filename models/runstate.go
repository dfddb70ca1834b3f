package models

import (
	"sync"
	"sync/atomic"
)

// RunState is the mutable state of one section run. The pipeline runs on a
// single goroutine, but the status server and the signal handler read and
// write it concurrently, so every accessor is synchronized.
type RunState struct {
	mu          sync.Mutex
	visited     map[string]struct{}
	accepted    []Record
	nonAccepted []Record

	stop            atomic.Bool
	currentPage     atomic.Int64
	skippedListings atomic.Int64
	skippedDetails  atomic.Int64
}

// NewRunState returns an empty state. Nothing carries over between runs.
func NewRunState() *RunState {
	return &RunState{visited: make(map[string]struct{})}
}

// MarkVisited records url as queued and reports whether it was new.
func (s *RunState) MarkVisited(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.visited[url]; ok {
		return false
	}
	s.visited[url] = struct{}{}
	return true
}

// Visited reports whether url was already queued in this run.
func (s *RunState) Visited(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.visited[url]
	return ok
}

// Append adds r to the partition chosen by r.HasAcceptedAnswer and returns
// copies of both result sets after the append.
func (s *RunState) Append(r Record) (accepted, nonAccepted []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.HasAcceptedAnswer {
		s.accepted = append(s.accepted, r)
	} else {
		s.nonAccepted = append(s.nonAccepted, r)
	}
	return s.snapshotLocked()
}

// Results returns copies of both result sets.
func (s *RunState) Results() (accepted, nonAccepted []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *RunState) snapshotLocked() ([]Record, []Record) {
	a := make([]Record, len(s.accepted))
	copy(a, s.accepted)
	n := make([]Record, len(s.nonAccepted))
	copy(n, s.nonAccepted)
	return a, n
}

// RequestStop asks the run to end after the record in progress.
func (s *RunState) RequestStop() { s.stop.Store(true) }

// StopRequested reports whether a stop was requested.
func (s *RunState) StopRequested() bool { return s.stop.Load() }

// SetCurrentPage records the listing page being processed.
func (s *RunState) SetCurrentPage(n int) { s.currentPage.Store(int64(n)) }

// SkipListing counts a listing page that could not be loaded.
func (s *RunState) SkipListing() { s.skippedListings.Add(1) }

// SkipDetail counts a detail page that could not be loaded or extracted.
func (s *RunState) SkipDetail() { s.skippedDetails.Add(1) }

// Stats returns a point-in-time view for status reporting.
func (s *RunState) Stats() RunStats {
	s.mu.Lock()
	st := RunStats{
		Visited:     len(s.visited),
		Accepted:    len(s.accepted),
		NonAccepted: len(s.nonAccepted),
	}
	s.mu.Unlock()
	st.CurrentPage = int(s.currentPage.Load())
	st.SkippedListings = int(s.skippedListings.Load())
	st.SkippedDetails = int(s.skippedDetails.Load())
	st.StopRequested = s.stop.Load()
	return st
}

// RunStats is the JSON view of a RunState.
type RunStats struct {
	CurrentPage     int  `json:"current_page"`
	Visited         int  `json:"visited"`
	Accepted        int  `json:"accepted"`
	NonAccepted     int  `json:"non_accepted"`
	SkippedListings int  `json:"skipped_listings"`
	SkippedDetails  int  `json:"skipped_details"`
	StopRequested   bool `json:"stop_requested"`
}
