package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-lambda-go/events"

	"github.com/imrishuroy/salesmail-ingest/internal/logger"
	"github.com/imrishuroy/salesmail-ingest/internal/scan"
)

// Runner performs one scan.
type Runner interface {
	Run(ctx context.Context) (scan.Result, error)
}

// RunMetrics publishes per-run counters.
type RunMetrics interface {
	PublishRun(ctx context.Context, status string, counters map[string]float64) error
}

// Continuer enqueues a delayed follow-up message.
type Continuer interface {
	SendMessage(ctx context.Context, body string, delaySeconds int32, attrs map[string]string) error
}

// Processor handles schedule and continuation invocations.
type Processor struct {
	runner    Runner
	metrics   RunMetrics // optional
	continuer Continuer  // optional
	delay     int32
}

// NewProcessor creates a processor. metrics and continuer may be nil.
func NewProcessor(runner Runner, metrics RunMetrics, continuer Continuer, delaySeconds int32) *Processor {
	return &Processor{runner: runner, metrics: metrics, continuer: continuer, delay: delaySeconds}
}

// Handle runs one scan for any supported event. A failed run is returned as
// an error so the invocation is retried by the platform.
func (p *Processor) Handle(ctx context.Context, raw json.RawMessage) (scan.Result, error) {
	trigger, err := triggerOf(raw)
	if err != nil {
		return scan.Result{}, err
	}

	res, runErr := p.runner.Run(ctx)
	log := logger.Ctx(ctx).With().Str("trigger", trigger).Str("run_id", res.RunID).Logger()

	if p.metrics != nil {
		if err := p.metrics.PublishRun(ctx, string(res.Status), res.Counters()); err != nil {
			log.Warn().Err(err).Msg("publish run metrics failed")
		}
	}

	if res.Status == scan.StatusInterrupted && p.continuer != nil {
		if err := p.continueRun(ctx, res); err != nil {
			log.Error().Err(err).Msg("enqueue continuation failed")
		} else {
			log.Info().Int("remaining", res.Remaining).Msg("continuation enqueued")
		}
	}

	if runErr != nil {
		return res, fmt.Errorf("scan run %s: %w", res.RunID, runErr)
	}
	return res, nil
}

func (p *Processor) continueRun(ctx context.Context, res scan.Result) error {
	body, err := json.Marshal(ContinuationMessage{PreviousRunID: res.RunID, Remaining: res.Remaining})
	if err != nil {
		return err
	}
	attrs := map[string]string{
		"previous_run_id": res.RunID,
		"remaining":       strconv.Itoa(res.Remaining),
	}
	return p.continuer.SendMessage(ctx, string(body), p.delay, attrs)
}

// triggerOf classifies the invocation payload.
func triggerOf(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return TriggerManual, nil
	}

	var sqsEvent events.SQSEvent
	if err := json.Unmarshal(raw, &sqsEvent); err != nil {
		return "", fmt.Errorf("invalid event payload: %w", err)
	}
	if len(sqsEvent.Records) > 0 {
		for _, rec := range sqsEvent.Records {
			var msg ContinuationMessage
			if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
				return "", fmt.Errorf("invalid continuation body: %w", err)
			}
		}
		return TriggerContinuation, nil
	}

	var scheduled events.CloudWatchEvent
	if err := json.Unmarshal(raw, &scheduled); err == nil && scheduled.DetailType != "" {
		return TriggerSchedule, nil
	}
	return TriggerManual, nil
}
