package emit

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullEmitter_DiscardsEverything(t *testing.T) {
	e := NewNullEmitter()
	e.Emit(Event{Kind: "checkpoint.created"})
	require.NoError(t, e.EmitBatch(context.Background(), []Event{{Kind: "x"}, {Kind: "y"}}))
	require.NoError(t, e.Flush(context.Background()))
}

func TestLogEmitter_WritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	e := NewLogEmitter(logger)

	e.Emit(Event{Kind: "checkpoint.created", SessionID: "sess-1", Subject: "cp-1", Meta: map[string]any{"sequence": 3}})

	out := buf.String()
	assert.Contains(t, out, "checkpoint.created")
	assert.Contains(t, out, "sess-1")
	assert.Contains(t, out, "cp-1")
	assert.Contains(t, out, "sequence=3")
}

func TestLogEmitter_DefaultsToSlogDefault(t *testing.T) {
	e := NewLogEmitter(nil)
	require.NotNil(t, e.logger)
}

func TestLogEmitter_EmitBatchLogsEachEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	e := NewLogEmitter(logger)

	err := e.EmitBatch(context.Background(), []Event{
		{Kind: "a"},
		{Kind: "b"},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "msg=a")
	assert.Contains(t, out, "msg=b")
}

func TestBufferedEmitter_AccumulatesUntilFlush(t *testing.T) {
	inner := NewBufferedEmitter(NewNullEmitter())

	inner.Emit(Event{Kind: "one"})
	inner.Emit(Event{Kind: "two"})

	events := inner.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "one", events[0].Kind)
	assert.Equal(t, "two", events[1].Kind)

	require.NoError(t, inner.Flush(context.Background()))
	assert.Empty(t, inner.Events())
}

func TestBufferedEmitter_FlushForwardsToNext(t *testing.T) {
	sink := NewBufferedEmitter(NewNullEmitter())
	relay := NewBufferedEmitter(sink)

	relay.Emit(Event{Kind: "forwarded"})
	require.NoError(t, relay.Flush(context.Background()))

	// relay drained into sink, which buffers until its own Flush.
	sunkEvents := sink.Events()
	require.Len(t, sunkEvents, 1)
	assert.Equal(t, "forwarded", sunkEvents[0].Kind)
}

func TestBufferedEmitter_EmitBatchAppendsAll(t *testing.T) {
	b := NewBufferedEmitter(NewNullEmitter())
	require.NoError(t, b.EmitBatch(context.Background(), []Event{{Kind: "a"}, {Kind: "b"}, {Kind: "c"}}))
	assert.Len(t, b.Events(), 3)
}
