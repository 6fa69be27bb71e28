// Package dispatch admits model calls under concurrency and rate ceilings
// and owns the retry policy around them. Callers always get an Outcome
// value back, never an error: per-request failures are data.
package dispatch

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/spigell/jobsieve/internal/ai"
	"github.com/spigell/jobsieve/internal/jobs"
	"github.com/spigell/jobsieve/internal/logger"
	"github.com/spigell/jobsieve/internal/utils"
)

// wait is swapped out in tests to record backoff delays.
var wait = utils.WaitFor

const (
	defaultConcurrency      = 4
	defaultRetryCeiling     = 3
	defaultMalformedCeiling = 2
	defaultBackoffBase      = 2 * time.Second
	defaultBackoffMax       = 30 * time.Second
)

// Request is one (record, axis) scoring unit. Transient, created per
// dispatch.
type Request struct {
	JobID  string
	Axis   jobs.Axis
	Prompt string
}

// Outcome is the terminal result of a dispatched request after all retry
// attempts.
type Outcome struct {
	Response *ai.ScoreResponse
	Err      error
	Kind     ai.FailureKind
	Attempts int
}

// Failed reports whether the request exhausted its attempts without a
// score.
func (o Outcome) Failed() bool { return o.Response == nil }

// Recorder receives attempt accounting. Implemented by pipeline.State.
type Recorder interface {
	RecordAttempt()
	RecordRetry()
}

// Config bounds the dispatcher.
type Config struct {
	// Concurrency caps in-flight model calls.
	Concurrency int
	// Rate is admitted calls per second; zero disables rate limiting.
	Rate  float64
	Burst int
	// RetryCeiling is the maximum attempts per request.
	RetryCeiling int
	// MalformedRetryCeiling caps attempts when the model answers with
	// unparsable content. Kept lower: repeated garbage usually means the
	// prompt, not the weather.
	MalformedRetryCeiling int
	BackoffBase           time.Duration
	BackoffMax            time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.RetryCeiling <= 0 {
		c.RetryCeiling = defaultRetryCeiling
	}
	if c.MalformedRetryCeiling <= 0 {
		c.MalformedRetryCeiling = defaultMalformedCeiling
	}
	if c.MalformedRetryCeiling > c.RetryCeiling {
		c.MalformedRetryCeiling = c.RetryCeiling
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = defaultBackoffBase
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = defaultBackoffMax
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	return c
}

// Dispatcher serializes access to the model client behind a concurrency
// semaphore and a token-bucket rate limiter. Both admission gates queue
// blocked callers in first-come order.
type Dispatcher struct {
	scorer   ai.Scorer
	sem      *semaphore.Weighted
	limiter  *rate.Limiter
	cfg      Config
	recorder Recorder
	logger   *zap.Logger
}

// New creates a Dispatcher around the given model client.
func New(scorer ai.Scorer, cfg Config, recorder Recorder, logger *zap.Logger) *Dispatcher {
	cfg = cfg.withDefaults()

	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		scorer:   scorer,
		sem:      semaphore.NewWeighted(int64(cfg.Concurrency)),
		limiter:  rate.NewLimiter(limit, cfg.Burst),
		cfg:      cfg,
		recorder: recorder,
		logger:   logger,
	}
}

// Do runs the request through the retry state machine:
// Pending -> InFlight -> (Succeeded | Retrying -> InFlight | Failed).
// On Fatal failures it surfaces immediately; Transient and
// MalformedResponse failures are retried with exponential backoff and
// jitter up to their ceilings.
func (d *Dispatcher) Do(ctx context.Context, req Request) Outcome {
	var lastErr error
	var lastKind ai.FailureKind

	for attempt := 1; ; attempt++ {
		resp, err := d.attempt(ctx, req)
		if err == nil {
			return Outcome{Response: resp, Attempts: attempt}
		}

		lastErr = err
		lastKind = ai.Classify(err)

		if lastKind == ai.FailureFatal {
			d.logger.Warn("model call failed fatally",
				append(logger.ScoringFields(req.JobID, string(req.Axis)), zap.Error(err))...,
			)
			return Outcome{Err: lastErr, Kind: lastKind, Attempts: attempt}
		}

		if ctx.Err() != nil || attempt >= d.ceilingFor(lastKind) {
			return Outcome{Err: lastErr, Kind: lastKind, Attempts: attempt}
		}

		if d.recorder != nil {
			d.recorder.RecordRetry()
		}

		backoff := d.backoffFor(attempt)
		d.logger.Debug("retrying model call",
			append(logger.ScoringFields(req.JobID, string(req.Axis)),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)...,
		)

		if err := wait(ctx, backoff); err != nil {
			return Outcome{Err: lastErr, Kind: lastKind, Attempts: attempt}
		}
	}
}

// attempt performs one admission-gated call to the model client.
func (d *Dispatcher) attempt(ctx context.Context, req Request) (*ai.ScoreResponse, error) {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, ai.Transient(err)
	}
	defer d.sem.Release(1)

	if err := d.limiter.Wait(ctx); err != nil {
		return nil, ai.Transient(err)
	}

	if d.recorder != nil {
		d.recorder.RecordAttempt()
	}

	return d.scorer.Score(ctx, req.Prompt)
}

func (d *Dispatcher) ceilingFor(kind ai.FailureKind) int {
	if kind == ai.FailureMalformed {
		return d.cfg.MalformedRetryCeiling
	}
	return d.cfg.RetryCeiling
}

// backoffFor returns base*2^(attempt-1) capped at the maximum, plus up to
// half the base of uniform jitter. The doubling step always exceeds the
// jitter range, so delays between consecutive attempts strictly increase.
func (d *Dispatcher) backoffFor(attempt int) time.Duration {
	backoff := d.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= d.cfg.BackoffMax {
			backoff = d.cfg.BackoffMax
			break
		}
	}

	jitter := time.Duration(rand.Int64N(int64(d.cfg.BackoffBase)/2 + 1))
	return backoff + jitter
}
