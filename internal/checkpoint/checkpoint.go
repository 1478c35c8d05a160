// Package checkpoint records scan progress as labels on source threads.
//
// A thread is unmarked until a run handles it, then processed. Threads a run
// fetched but did not reach before its time budget ran out are in-flight; the
// next run picks them up first and clears the marker as it handles each one.
package checkpoint

import (
	"context"
	"fmt"

	"github.com/imrishuroy/salesmail-ingest/internal/mailbox"
)

// State of a thread.
type State int

const (
	Unmarked State = iota
	Processed
	InFlight
)

func (s State) String() string {
	switch s {
	case Processed:
		return "processed"
	case InFlight:
		return "in-flight"
	default:
		return "unmarked"
	}
}

// Labels names the two markers.
type Labels struct {
	Processed string
	InFlight  string
}

// Tagger edits labels on source threads.
type Tagger interface {
	AddLabel(ctx context.Context, ids []string, label string) error
	RemoveLabel(ctx context.Context, ids []string, label string) error
}

// Checkpoint maps thread labels to scan states.
type Checkpoint struct {
	tagger Tagger
	labels Labels
}

// New creates a Checkpoint.
func New(tagger Tagger, labels Labels) *Checkpoint {
	return &Checkpoint{tagger: tagger, labels: labels}
}

// StateOf returns the state carried by labels. In-flight wins over processed.
func (c *Checkpoint) StateOf(labels []string) State {
	state := Unmarked
	for _, l := range labels {
		switch l {
		case c.labels.InFlight:
			return InFlight
		case c.labels.Processed:
			state = Processed
		}
	}
	return state
}

// IsEligible reports whether a thread still needs handling.
func (c *Checkpoint) IsEligible(labels []string) bool {
	return c.StateOf(labels) != Processed
}

// MarkProcessed labels all ids processed in one call.
func (c *Checkpoint) MarkProcessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.tagger.AddLabel(ctx, ids, c.labels.Processed); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

// MarkInFlight labels all ids in-flight in one call.
func (c *Checkpoint) MarkInFlight(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.tagger.AddLabel(ctx, ids, c.labels.InFlight); err != nil {
		return fmt.Errorf("mark in-flight: %w", err)
	}
	return nil
}

// ClearInFlight removes the in-flight marker from one thread.
func (c *Checkpoint) ClearInFlight(ctx context.Context, id string) error {
	if err := c.tagger.RemoveLabel(ctx, []string{id}, c.labels.InFlight); err != nil {
		return fmt.Errorf("clear in-flight %s: %w", id, err)
	}
	return nil
}

// FreshQuery selects threads carrying neither marker.
func (c *Checkpoint) FreshQuery(base mailbox.Query) mailbox.Query {
	q := base
	q.RequireLabel = ""
	q.ExcludeLabels = []string{c.labels.Processed, c.labels.InFlight}
	return q
}

// InFlightQuery selects threads a previous run left in-flight.
func (c *Checkpoint) InFlightQuery(base mailbox.Query) mailbox.Query {
	q := base
	q.RequireLabel = c.labels.InFlight
	q.ExcludeLabels = nil
	return q
}
