package checkpoint

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/salesmail-ingest/internal/mailbox"
)

type call struct {
	op    string
	ids   []string
	label string
}

type fakeTagger struct {
	calls []call
	err   error
}

func (f *fakeTagger) AddLabel(ctx context.Context, ids []string, label string) error {
	f.calls = append(f.calls, call{"add", ids, label})
	return f.err
}

func (f *fakeTagger) RemoveLabel(ctx context.Context, ids []string, label string) error {
	f.calls = append(f.calls, call{"remove", ids, label})
	return f.err
}

var labels = Labels{Processed: "p", InFlight: "f"}

func TestStateOf(t *testing.T) {
	c := New(&fakeTagger{}, labels)

	assert.Equal(t, Unmarked, c.StateOf(nil))
	assert.Equal(t, Unmarked, c.StateOf([]string{"other"}))
	assert.Equal(t, Processed, c.StateOf([]string{"p"}))
	assert.Equal(t, InFlight, c.StateOf([]string{"f"}))
	assert.Equal(t, InFlight, c.StateOf([]string{"p", "f"}))

	assert.True(t, c.IsEligible(nil))
	assert.True(t, c.IsEligible([]string{"f", "p"}))
	assert.False(t, c.IsEligible([]string{"p"}))
	assert.Equal(t, "in-flight", InFlight.String())
}

func TestMarks(t *testing.T) {
	tagger := &fakeTagger{}
	c := New(tagger, labels)
	ctx := context.Background()

	require.NoError(t, c.MarkProcessed(ctx, nil))
	require.NoError(t, c.MarkInFlight(ctx, []string{}))
	assert.Empty(t, tagger.calls)

	require.NoError(t, c.MarkProcessed(ctx, []string{"a", "b"}))
	require.NoError(t, c.MarkInFlight(ctx, []string{"c"}))
	require.NoError(t, c.ClearInFlight(ctx, "c"))

	assert.Equal(t, []call{
		{"add", []string{"a", "b"}, "p"},
		{"add", []string{"c"}, "f"},
		{"remove", []string{"c"}, "f"},
	}, tagger.calls)
}

func TestMarks_WrapErrors(t *testing.T) {
	boom := errors.New("boom")
	c := New(&fakeTagger{err: boom}, labels)

	assert.ErrorIs(t, c.MarkProcessed(context.Background(), []string{"a"}), boom)
	assert.ErrorIs(t, c.ClearInFlight(context.Background(), "a"), boom)
}

func TestQueries(t *testing.T) {
	c := New(&fakeTagger{}, labels)
	base := mailbox.Query{Sender: "shop", Subject: "注文", Limit: 10}

	fresh := c.FreshQuery(base)
	assert.Equal(t, []string{"p", "f"}, fresh.ExcludeLabels)
	assert.Empty(t, fresh.RequireLabel)
	assert.Equal(t, "shop", fresh.Sender)

	inflight := c.InFlightQuery(base)
	assert.Equal(t, "f", inflight.RequireLabel)
	assert.Nil(t, inflight.ExcludeLabels)
	assert.Equal(t, 10, inflight.Limit)
}
