package pipeline

import "sync/atomic"

// State holds the process-wide counters for one run. It is owned by the
// pipeline and handed to collaborators by reference; there are no ambient
// globals.
type State struct {
	attempted atomic.Int64
	retried   atomic.Int64
	succeeded atomic.Int64
	partial   atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
}

// RecordAttempt counts one admitted model call. Implements
// dispatch.Recorder.
func (s *State) RecordAttempt() { s.attempted.Add(1) }

// RecordRetry counts one scheduled retry. Implements dispatch.Recorder.
func (s *State) RecordRetry() { s.retried.Add(1) }

func (s *State) recordComplete() { s.succeeded.Add(1) }
func (s *State) recordPartial()  { s.partial.Add(1) }
func (s *State) recordFailed()   { s.failed.Add(1) }
func (s *State) recordSkipped()  { s.skipped.Add(1) }

// Counters is a point-in-time copy of the run counters.
type Counters struct {
	Attempted int64
	Retried   int64
	Complete  int64
	Partial   int64
	Failed    int64
	Skipped   int64
}

// Snapshot copies the counters.
func (s *State) Snapshot() Counters {
	return Counters{
		Attempted: s.attempted.Load(),
		Retried:   s.retried.Load(),
		Complete:  s.succeeded.Load(),
		Partial:   s.partial.Load(),
		Failed:    s.failed.Load(),
		Skipped:   s.skipped.Load(),
	}
}
