package pipeline

import (
	"fmt"
	"sync"

	"github.com/spigell/jobsieve/internal/jobs"
	"github.com/spigell/jobsieve/internal/store"
)

// aggregator restores the input-feed ordering over results that complete
// in arbitrary order. Results are buffered by work-set index and only the
// maximal contiguous prefix is handed to the store, so the persisted table
// always reads in feed order.
type aggregator struct {
	store      store.Store
	flushEvery int

	mu         sync.Mutex
	pending    map[int]*jobs.ScoredRecord
	next       int
	done       int
	sinceFlush int
}

func newAggregator(st store.Store, flushEvery int) *aggregator {
	if flushEvery <= 0 {
		flushEvery = 10
	}
	return &aggregator{
		store:      st,
		flushEvery: flushEvery,
		pending:    make(map[int]*jobs.ScoredRecord),
	}
}

// Add records the result for the work item at the given index. Completed
// contiguous prefixes are appended to the store; every flushEvery
// completions progress is flushed to disk. Returns the number of results
// delivered so far.
func (a *aggregator) Add(index int, rec *jobs.ScoredRecord) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.pending[index]; ok || index < a.next {
		return a.done, fmt.Errorf("duplicate result for work item %d", index)
	}

	a.pending[index] = rec
	a.done++
	a.sinceFlush++

	for {
		ready, ok := a.pending[a.next]
		if !ok {
			break
		}
		if err := a.store.Append(ready); err != nil {
			return a.done, err
		}
		delete(a.pending, a.next)
		a.next++
	}

	if a.sinceFlush >= a.flushEvery {
		if err := a.store.Flush(); err != nil {
			return a.done, err
		}
		a.sinceFlush = 0
	}

	return a.done, nil
}

// Close appends whatever prefix completed and flushes. Results stranded
// behind a gap (possible only on cancellation) stay unpersisted and will
// be reprocessed by the next run.
func (a *aggregator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.pending) > 0 {
		for {
			ready, ok := a.pending[a.next]
			if !ok {
				break
			}
			if err := a.store.Append(ready); err != nil {
				return err
			}
			delete(a.pending, a.next)
			a.next++
		}
	}

	return a.store.Flush()
}
