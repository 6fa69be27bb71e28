// Package pipeline orchestrates the scoring run: it computes the work set
// against prior output, drives the worker pool over the feed, and restores
// input ordering in the persisted result table.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/jobsieve/internal/dispatch"
	"github.com/spigell/jobsieve/internal/jobs"
	"github.com/spigell/jobsieve/internal/profile"
	"github.com/spigell/jobsieve/internal/prompt"
	"github.com/spigell/jobsieve/internal/store"
)

var now = time.Now

// Dispatcher admits one scoring request and resolves it to an outcome.
type Dispatcher interface {
	Do(ctx context.Context, req dispatch.Request) dispatch.Outcome
}

// Config bounds the worker pool and the flush cadence.
type Config struct {
	// Workers is the number of records processed concurrently. Each worker
	// owns one record end-to-end.
	Workers    int
	FlushEvery int
	// Force reprocesses records even when prior output already covers them.
	Force bool
}

// Pipeline wires the scoring run together.
type Pipeline struct {
	cfg        Config
	builder    *prompt.Builder
	profile    *profile.Profile
	dispatcher Dispatcher
	store      store.Store
	state      *State
	logger     *zap.Logger
}

// Summary reports one finished (or interrupted) run.
type Summary struct {
	FeedSize        int
	WorkSet         int
	SkippedExisting int
	ByStatus        map[jobs.Status]int
	ByCause         map[string]int
	Counters        Counters
	Elapsed         time.Duration

	mu sync.Mutex
}

func (s *Summary) record(rec *jobs.ScoredRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ByStatus[rec.Status]++
	if rec.Cause != "" {
		s.ByCause[rec.Cause]++
	}
}

// workItem pairs a feed record with its work-set position. Items rejected
// by validation carry a precomputed result and never reach the dispatcher.
type workItem struct {
	index       int
	record      *jobs.Record
	precomputed *jobs.ScoredRecord
}

// New assembles a Pipeline. The state handle is shared with the dispatcher
// for attempt accounting.
func New(cfg Config, builder *prompt.Builder, prof *profile.Profile, dispatcher Dispatcher, st store.Store, state *State, logger *zap.Logger) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if state == nil {
		state = &State{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pipeline{
		cfg:        cfg,
		builder:    builder,
		profile:    prof,
		dispatcher: dispatcher,
		store:      st,
		state:      state,
		logger:     logger,
	}
}

// State returns the counter handle shared with collaborators.
func (p *Pipeline) State() *State { return p.state }

// Run scores every record in the feed that still needs scoring and merges
// the results into the store. Cancelling the context stops admission of
// new records; in-flight calls finish or time out, and progress flushed so
// far is preserved. Per-record failures are captured as data, never
// returned as errors.
func (p *Pipeline) Run(ctx context.Context, feed *jobs.Feed) (*Summary, error) {
	start := now()

	existing, err := p.store.LoadExisting()
	if err != nil {
		return nil, fmt.Errorf("load existing output: %w", err)
	}

	items, skippedExisting := p.computeWorkSet(feed, existing)

	summary := &Summary{
		FeedSize:        feed.Len(),
		WorkSet:         len(items),
		SkippedExisting: skippedExisting,
		ByStatus:        make(map[jobs.Status]int),
		ByCause:         make(map[string]int),
	}

	p.logger.Info("starting scoring run",
		zap.Int("feed_size", feed.Len()),
		zap.Int("work_set", len(items)),
		zap.Int("already_scored", skippedExisting),
		zap.Int("workers", p.cfg.Workers),
	)

	agg := newAggregator(p.store, p.cfg.FlushEvery)

	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)

	total := len(items)
	for _, item := range items {
		// Admission gate: a cancelled run schedules nothing new. Workers
		// already past this point run to completion.
		if ctx.Err() != nil {
			p.logger.Warn("stop requested, no new records admitted", zap.Error(ctx.Err()))
			break
		}

		g.Go(func() error {
			rec := item.precomputed
			if rec == nil {
				rec = p.scoreRecord(ctx, item.record)
			}
			p.account(summary, rec)

			done, err := agg.Add(item.index, rec)
			if err != nil {
				return err
			}

			p.logProgress(rec, done, total, start)
			return nil
		})
	}

	runErr := g.Wait()

	if err := agg.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("final flush: %w", err)
	}

	summary.Counters = p.state.Snapshot()
	summary.Elapsed = now().Sub(start)

	return summary, runErr
}

// computeWorkSet diffs the feed against existing output once at startup.
// Complete and partial records are reused unless Force is set; failed,
// skipped and unseen ids are (re)scored. Invalid records become
// precomputed skipped results so every feed id still lands in the table.
func (p *Pipeline) computeWorkSet(feed *jobs.Feed, existing map[string]*jobs.ScoredRecord) ([]workItem, int) {
	items := make([]workItem, 0, feed.Len())
	skippedExisting := 0
	seen := make(map[string]bool, feed.Len())

	for _, record := range feed.Items {
		if record.ID != "" && seen[record.ID] {
			p.logger.Warn("duplicate id in feed, keeping first occurrence", zap.String("job_id", record.ID))
			continue
		}
		seen[record.ID] = true

		if prior, ok := existing[record.ID]; ok && !p.cfg.Force && !prior.NeedsScoring() {
			skippedExisting++
			continue
		}

		if err := record.Validate(); err != nil {
			p.logger.Warn("skipping invalid record",
				zap.String("job_id", record.ID),
				zap.Error(err),
			)
			items = append(items, workItem{
				index:  len(items),
				record: record,
				precomputed: &jobs.ScoredRecord{
					Record:        *record,
					Status:        jobs.StatusSkipped,
					Cause:         jobs.CauseInputError,
					Qualification: jobs.AxisOutcome{FailureKind: jobs.CauseInputError, FailureReason: err.Error()},
					Preference:    jobs.AxisOutcome{FailureKind: jobs.CauseInputError, FailureReason: err.Error()},
					ScoredAt:      now(),
				},
			})
			continue
		}

		items = append(items, workItem{index: len(items), record: record})
	}

	return items, skippedExisting
}

// scoreRecord issues both axis calls for one record through the dispatcher
// and combines the outcomes. One record is never shared between workers.
func (p *Pipeline) scoreRecord(ctx context.Context, record *jobs.Record) *jobs.ScoredRecord {
	scored := &jobs.ScoredRecord{Record: *record, ScoredAt: now()}

	scored.Qualification = p.scoreAxis(ctx, record, jobs.AxisQualification)
	scored.Preference = p.scoreAxis(ctx, record, jobs.AxisPreference)
	scored.Resolve()

	return scored
}

func (p *Pipeline) scoreAxis(ctx context.Context, record *jobs.Record, axis jobs.Axis) jobs.AxisOutcome {
	text, err := p.builder.Build(axis, record, p.profile.TextFor(axis))
	if err != nil {
		return jobs.AxisOutcome{
			FailureKind:   jobs.CauseInputError,
			FailureReason: err.Error(),
		}
	}

	outcome := p.dispatcher.Do(ctx, dispatch.Request{
		JobID:  record.ID,
		Axis:   axis,
		Prompt: text,
	})

	if outcome.Failed() {
		reason := ""
		if outcome.Err != nil {
			reason = outcome.Err.Error()
		}
		return jobs.AxisOutcome{
			FailureKind:   string(outcome.Kind),
			FailureReason: reason,
		}
	}

	return jobs.AxisOutcome{
		Scored:      true,
		Score:       outcome.Response.Score,
		Explanation: outcome.Response.Explanation,
		Raw:         outcome.Response.Raw,
	}
}

func (p *Pipeline) account(summary *Summary, rec *jobs.ScoredRecord) {
	switch rec.Status {
	case jobs.StatusComplete:
		p.state.recordComplete()
	case jobs.StatusPartial:
		p.state.recordPartial()
	case jobs.StatusFailed:
		p.state.recordFailed()
	case jobs.StatusSkipped:
		p.state.recordSkipped()
	}

	summary.record(rec)
}

func (p *Pipeline) logProgress(rec *jobs.ScoredRecord, done, total int, start time.Time) {
	fields := []zap.Field{
		zap.String("job_id", rec.Record.ID),
		zap.String("status", string(rec.Status)),
		zap.Int("done", done),
		zap.Int("total", total),
	}

	if done > 0 && done < total {
		elapsed := now().Sub(start)
		eta := time.Duration(int64(elapsed) / int64(done) * int64(total-done))
		fields = append(fields, zap.Duration("eta", eta.Round(time.Second)))
	}

	if rec.Status == jobs.StatusComplete {
		p.logger.Info("record scored", fields...)
		return
	}
	p.logger.Warn("record finished without full score", append(fields, zap.String("cause", rec.Cause))...)
}
