// Package scan runs the time-boxed, checkpointed pass over candidate threads.
package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/imrishuroy/salesmail-ingest/internal/checkpoint"
	"github.com/imrishuroy/salesmail-ingest/internal/dedup"
	"github.com/imrishuroy/salesmail-ingest/internal/extract"
	"github.com/imrishuroy/salesmail-ingest/internal/lock"
	"github.com/imrishuroy/salesmail-ingest/internal/logger"
	"github.com/imrishuroy/salesmail-ingest/internal/mailbox"
	"github.com/imrishuroy/salesmail-ingest/internal/sales"
	"github.com/imrishuroy/salesmail-ingest/internal/validation"
)

// Source finds candidate threads.
type Source interface {
	Search(ctx context.Context, q mailbox.Query) ([]mailbox.Candidate, error)
}

// Sink stores sale records.
type Sink interface {
	Append(ctx context.Context, rec sales.SaleRecord) error
	OrderIDs(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// SinkOpener opens a fresh sink handle. It is called once per run and again
// when a write fails.
type SinkOpener func(ctx context.Context) (Sink, error)

// Extractor pulls fields from one notification body.
type Extractor interface {
	Extract(body string) (extract.Fields, error)
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Locker     lock.Locker
	Source     Source
	Checkpoint *checkpoint.Checkpoint
	OpenSink   SinkOpener
	Extractor  Extractor
	Validator  *validatorv10.Validate
}

// Controller owns the scan state machine.
type Controller struct {
	settings   Settings
	locker     lock.Locker
	source     Source
	checkpoint *checkpoint.Checkpoint
	openSink   SinkOpener
	extractor  Extractor
	validator  *validatorv10.Validate
	nowFunc    func() time.Time
}

// NewController creates a Controller.
func NewController(settings Settings, deps Deps) *Controller {
	v := deps.Validator
	if v == nil {
		v = validation.New()
	}
	return &Controller{
		settings:   settings,
		locker:     deps.Locker,
		source:     deps.Source,
		checkpoint: deps.Checkpoint,
		openSink:   deps.OpenSink,
		extractor:  deps.Extractor,
		validator:  v,
		nowFunc:    time.Now,
	}
}

type outcome int

const (
	outcomeRecorded outcome = iota
	outcomeDuplicate
	outcomeRejected
	outcomeNotSale
	outcomeFailed
	// outcomeSinkFailed leaves the candidate unmarked so the next run retries it.
	outcomeSinkFailed
)

// sinkHandle lets a reopen replace the sink for the rest of the run.
type sinkHandle struct {
	sink Sink
}

// Run performs one scan. Skips and time-outs are statuses with a nil error;
// an error is returned only with StatusFailed.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	start := c.nowFunc()
	res := Result{RunID: uuid.NewString()}
	ctx = logger.WithRun(ctx, res.RunID)
	log := logger.Ctx(ctx)

	acquired, err := c.locker.TryAcquire(ctx, c.settings.LockTimeout)
	if err != nil {
		return c.finish(ctx, start, res, fmt.Errorf("acquire run lock: %w", err))
	}
	if !acquired {
		res.Status = StatusSkipped
		res.Message = MessageSkipped
		return c.finish(ctx, start, res, nil)
	}
	defer func() {
		if err := c.locker.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("release run lock")
		}
	}()

	err = c.scan(ctx, start, &res)
	return c.finish(ctx, start, res, err)
}

func (c *Controller) finish(ctx context.Context, start time.Time, res Result, err error) (Result, error) {
	res.Elapsed = c.nowFunc().Sub(start)
	res.Remaining = res.Found - res.Considered
	switch {
	case err != nil:
		res.Status = StatusFailed
		res.Message = err.Error()
	case res.Status == StatusSkipped:
	case res.Interrupted:
		res.Status = StatusInterrupted
	default:
		res.Status = StatusCompleted
	}

	level := zerolog.InfoLevel
	if err != nil {
		level = zerolog.ErrorLevel
	}
	logger.Ctx(ctx).WithLevel(level).Err(err).
		Str("status", string(res.Status)).
		Int("recorded", res.Recorded).
		Int("duplicates", res.Duplicates).
		Int("rejected", res.Rejected).
		Int("not_sales", res.NotSales).
		Int("failed", res.Failed).
		Int("found", res.Found).
		Int("considered", res.Considered).
		Int("remaining", res.Remaining).
		Dur("elapsed", res.Elapsed).
		Msg("scan finished")
	return res, err
}

func (c *Controller) scan(ctx context.Context, start time.Time, res *Result) error {
	log := logger.Ctx(ctx)

	if err := c.settings.Validate(); err != nil {
		return err
	}
	sink, err := c.openSink(ctx)
	if err != nil {
		return fmt.Errorf("%w: open: %v", ErrSinkUnavailable, err)
	}
	h := &sinkHandle{sink: sink}
	defer func() {
		if err := h.sink.Close(); err != nil {
			log.Warn().Err(err).Msg("close sink")
		}
	}()
	if err := sink.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrSinkUnavailable, err)
	}

	candidates, err := c.fetch(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	res.Found = len(candidates)

	cells, err := sink.OrderIDs(ctx)
	if err != nil {
		return fmt.Errorf("%w: read order ids: %v", ErrSinkUnavailable, err)
	}
	index := dedup.Load(cells)

	budget := c.budget(ctx)
	log.Info().Int("found", res.Found).Int("known_orders", index.Len()).Dur("budget", budget).Msg("scan started")

	batch := make([]string, 0, c.settings.FlushBatchSize)
	for i, cand := range candidates {
		if ctx.Err() != nil ||
			(i > 0 && i%c.settings.TimeCheckInterval == 0 && c.nowFunc().Sub(start) >= budget) {
			res.Interrupted = true
			break
		}
		res.Considered = i + 1

		if c.checkpoint.StateOf(cand.Labels) == checkpoint.InFlight {
			if err := c.checkpoint.ClearInFlight(ctx, cand.ID); err != nil {
				log.Warn().Err(err).Str("thread_id", cand.ID).Msg("clear in-flight")
			}
		}

		if c.handleCandidate(ctx, i, cand, h, index, res) {
			batch = append(batch, cand.ID)
		}

		if (i+1)%c.settings.FlushBatchSize == 0 {
			batch = c.flush(ctx, batch)
		}
		if (i+1)%c.settings.LogInterval == 0 {
			log.Info().
				Int("considered", i+1).
				Int("found", res.Found).
				Int("recorded", res.Recorded).
				Int("duplicates", res.Duplicates).
				Dur("elapsed", c.nowFunc().Sub(start)).
				Msg("scan progress")
		}
	}

	// markers go out even if the caller's context is done
	tail := context.WithoutCancel(ctx)
	c.flush(tail, batch)
	if res.Interrupted {
		rest := make([]string, 0, len(candidates)-res.Considered)
		for _, cand := range candidates[res.Considered:] {
			rest = append(rest, cand.ID)
		}
		if err := c.checkpoint.MarkInFlight(tail, rest); err != nil {
			log.Error().Err(err).Int("count", len(rest)).Msg("mark in-flight")
		}
	}
	return nil
}

// fetch returns previously interrupted candidates first, then fresh ones,
// MaxCandidates at most, without any that are already processed.
func (c *Controller) fetch(ctx context.Context) ([]mailbox.Candidate, error) {
	limit := c.settings.MaxCandidates

	q := c.checkpoint.InFlightQuery(c.settings.Query)
	q.Limit = limit
	found, err := c.source.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("in-flight query: %w", err)
	}

	if left := limit - len(found); left > 0 {
		q = c.checkpoint.FreshQuery(c.settings.Query)
		q.Limit = left
		fresh, err := c.source.Search(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("fresh query: %w", err)
		}
		found = append(found, fresh...)
	}

	out := make([]mailbox.Candidate, 0, len(found))
	seen := make(map[string]struct{}, len(found))
	for _, cand := range found {
		if _, dup := seen[cand.ID]; dup || !c.checkpoint.IsEligible(cand.Labels) {
			continue
		}
		seen[cand.ID] = struct{}{}
		out = append(out, cand)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// budget is the configured time budget, shortened to leave DeadlineMargin
// before the context deadline.
func (c *Controller) budget(ctx context.Context) time.Duration {
	b := c.settings.TimeBudget
	if dl, ok := ctx.Deadline(); ok {
		if left := dl.Sub(c.nowFunc()) - c.settings.DeadlineMargin; left < b {
			b = left
		}
	}
	return b
}

// flush marks the batch processed and returns it emptied.
func (c *Controller) flush(ctx context.Context, batch []string) []string {
	if len(batch) == 0 {
		return batch
	}
	if err := c.checkpoint.MarkProcessed(ctx, batch); err != nil {
		logger.Ctx(ctx).Error().Err(err).Int("count", len(batch)).Msg("flush processed markers")
	}
	return batch[:0]
}

// handleCandidate handles every body of one thread and reports whether the
// thread can be marked processed.
func (c *Controller) handleCandidate(ctx context.Context, i int, cand mailbox.Candidate, h *sinkHandle, index *dedup.Index, res *Result) bool {
	done := true
	for j, body := range cand.Bodies {
		out, err := c.handleBody(ctx, body, h, index)
		level := zerolog.DebugLevel
		switch out {
		case outcomeRecorded:
			res.Recorded++
		case outcomeDuplicate:
			res.Duplicates++
		case outcomeNotSale:
			res.NotSales++
		case outcomeRejected:
			res.Rejected++
			level = zerolog.InfoLevel
		case outcomeFailed:
			res.Failed++
			level = zerolog.ErrorLevel
		case outcomeSinkFailed:
			res.Failed++
			level = zerolog.ErrorLevel
			done = false
		}
		if err != nil {
			logger.Ctx(ctx).WithLevel(level).
				Int("candidate", i).
				Str("thread_id", cand.ID).
				Int("body", j).
				Err(err).
				Msg("message not recorded")
		}
	}
	return done
}

// handleBody runs normalize, extract, validate, dedup and write for one body.
// A panic anywhere in that chain fails only this message.
func (c *Controller) handleBody(ctx context.Context, body string, h *sinkHandle, index *dedup.Index) (out outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = outcomeFailed, fmt.Errorf("panic: %v", r)
		}
	}()

	fields, err := c.extractor.Extract(body)
	switch {
	case errors.Is(err, extract.ErrNotSaleNotification):
		return outcomeNotSale, err
	case err != nil:
		return outcomeRejected, err
	}

	rec, err := validation.Validate(c.validator, fields)
	if err != nil {
		return outcomeRejected, err
	}
	if index.Has(rec.OrderID) {
		return outcomeDuplicate, nil
	}

	rec.RecordedAt = c.nowFunc()
	err = c.write(ctx, h, rec)
	switch {
	case errors.Is(err, sales.ErrDuplicate):
		index.Add(rec.OrderID)
		return outcomeDuplicate, nil
	case err != nil:
		return outcomeSinkFailed, err
	}
	index.Add(rec.OrderID)
	return outcomeRecorded, nil
}

// write appends rec, reopening the sink and retrying once on failure.
func (c *Controller) write(ctx context.Context, h *sinkHandle, rec sales.SaleRecord) error {
	err := h.sink.Append(ctx, rec)
	if err == nil || errors.Is(err, sales.ErrDuplicate) {
		return err
	}
	logger.Ctx(ctx).Warn().Err(err).Int64("order_id", rec.OrderID).Msg("sink write failed, reopening")

	_ = h.sink.Close()
	reopened, oerr := c.openSink(ctx)
	if oerr != nil {
		return fmt.Errorf("%w: reopen after %v: %v", ErrSinkWrite, err, oerr)
	}
	h.sink = reopened

	err = reopened.Append(ctx, rec)
	if err == nil || errors.Is(err, sales.ErrDuplicate) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrSinkWrite, err)
}
