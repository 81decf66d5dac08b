package checkpoint

import (
	"context"
	"testing"

	"github.com/oldnordic/forge/checkpoint/store"
	"github.com/oldnordic/forge/emit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_CreatePublishesCreatedEvent(t *testing.T) {
	svc := NewService(store.NewMemStore(), emit.NewNullEmitter())
	ctx := context.Background()
	session := NewSessionID()

	events, unsubscribe := svc.Subscribe(session, 4)
	defer unsubscribe()

	c, err := svc.Create(ctx, session, "first", nil, Trigger{Kind: Manual}, DebugStateSnapshot{WorkingDir: "/repo"})
	require.NoError(t, err)

	select {
	case evt := <-events:
		assert.Equal(t, Created, evt.Kind)
		assert.Equal(t, c.ID, evt.Checkpoint.ID)
	default:
		t.Fatal("expected a Created event to be published")
	}
}

func TestService_GlobalSequenceSurvivesRestartOverSameStore(t *testing.T) {
	backing := store.NewMemStore()
	svc := NewService(backing, emit.NewNullEmitter())
	ctx := context.Background()
	sessionX, sessionY := NewSessionID(), NewSessionID()

	x1, err := svc.Create(ctx, sessionX, "x1", nil, Trigger{Kind: Manual}, DebugStateSnapshot{WorkingDir: "/repo"})
	require.NoError(t, err)
	y1, err := svc.Create(ctx, sessionY, "y1", nil, Trigger{Kind: Manual}, DebugStateSnapshot{WorkingDir: "/repo"})
	require.NoError(t, err)
	x2, err := svc.Create(ctx, sessionX, "x2", nil, Trigger{Kind: Manual}, DebugStateSnapshot{WorkingDir: "/repo"})
	require.NoError(t, err)
	y2, err := svc.Create(ctx, sessionY, "y2", nil, Trigger{Kind: Manual}, DebugStateSnapshot{WorkingDir: "/repo"})
	require.NoError(t, err)

	assert.Equal(t, []uint64{1, 3}, []uint64{x1.SequenceNumber, x2.SequenceNumber})
	assert.Equal(t, []uint64{2, 4}, []uint64{y1.SequenceNumber, y2.SequenceNumber})

	// A fresh Service over the same backing store (simulating a
	// process restart) must continue the shared sequence.
	restarted := NewService(backing, emit.NewNullEmitter())
	x3, err := restarted.Create(ctx, sessionX, "x3", nil, Trigger{Kind: Manual}, DebugStateSnapshot{WorkingDir: "/repo"})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), x3.SequenceNumber)
}

func TestService_DeletePublishesDeletedEvent(t *testing.T) {
	svc := NewService(store.NewMemStore(), emit.NewNullEmitter())
	ctx := context.Background()
	session := NewSessionID()

	events, unsubscribe := svc.Subscribe(session, 4)
	defer unsubscribe()

	c, err := svc.Create(ctx, session, "first", nil, Trigger{Kind: Manual}, DebugStateSnapshot{WorkingDir: "/repo"})
	require.NoError(t, err)
	<-events // drain the Created event

	require.NoError(t, svc.Delete(ctx, session, c.ID))

	evt := <-events
	assert.Equal(t, Deleted, evt.Kind)
	assert.Equal(t, c.ID, evt.Checkpoint.ID)
}

func TestService_TriggerAutoThrottles(t *testing.T) {
	svc := NewService(store.NewMemStore(), emit.NewNullEmitter())
	ctx := context.Background()
	session := NewSessionID()

	_, created, err := svc.TriggerAuto(ctx, session, "auto 1", DebugStateSnapshot{WorkingDir: "/repo"})
	require.NoError(t, err)
	assert.True(t, created)

	_, createdAgain, err := svc.TriggerAuto(ctx, session, "auto 2", DebugStateSnapshot{WorkingDir: "/repo"})
	require.NoError(t, err)
	assert.False(t, createdAgain, "second immediate auto-trigger must be throttled")
}

func TestService_AnnotateOrdersBySeverityAscending(t *testing.T) {
	svc := NewService(store.NewMemStore(), emit.NewNullEmitter())
	ctx := context.Background()
	session := NewSessionID()

	c, err := svc.Create(ctx, session, "first", nil, Trigger{Kind: Manual}, DebugStateSnapshot{WorkingDir: "/repo"})
	require.NoError(t, err)

	require.NoError(t, svc.Annotate(ctx, c.ID, "warn note", Warning))
	require.NoError(t, svc.Annotate(ctx, c.ID, "info note", Info))
	require.NoError(t, svc.Annotate(ctx, c.ID, "critical note", Critical))

	ordered, err := svc.AnnotationsBySeverity(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, ordered, 3)
	assert.Equal(t, Info, ordered[0].Severity)
	assert.Equal(t, Warning, ordered[1].Severity)
	assert.Equal(t, Critical, ordered[2].Severity)
}

func TestService_ExportImportRoundTrips(t *testing.T) {
	svc := NewService(store.NewMemStore(), emit.NewNullEmitter())
	ctx := context.Background()
	session := NewSessionID()

	_, err := svc.Create(ctx, session, "first", []string{"a"}, Trigger{Kind: Manual}, DebugStateSnapshot{WorkingDir: "/repo"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, session, "second", nil, Trigger{Kind: Manual}, DebugStateSnapshot{WorkingDir: "/repo"})
	require.NoError(t, err)

	data, err := svc.Export(ctx, session)
	require.NoError(t, err)

	fresh := NewService(store.NewMemStore(), emit.NewNullEmitter())
	count, err := fresh.Import(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	restored, err := fresh.store.ListBySession(ctx, session)
	require.NoError(t, err)
	assert.Len(t, restored, 2)
}

func TestService_ImportRejectsTamperedChecksum(t *testing.T) {
	svc := NewService(store.NewMemStore(), emit.NewNullEmitter())
	ctx := context.Background()
	session := NewSessionID()

	_, err := svc.Create(ctx, session, "first", nil, Trigger{Kind: Manual}, DebugStateSnapshot{WorkingDir: "/repo"})
	require.NoError(t, err)

	data, err := svc.Export(ctx, session)
	require.NoError(t, err)

	tampered := []byte(replaceFirstOccurrence(string(data), `"Message":"first"`, `"Message":"tampered"`))

	fresh := NewService(store.NewMemStore(), emit.NewNullEmitter())
	_, err = fresh.Import(ctx, tampered)
	require.Error(t, err)

	restored, err := fresh.store.ListBySession(ctx, session)
	require.NoError(t, err)
	assert.Empty(t, restored, "a failed import must leave storage untouched")
}

func replaceFirstOccurrence(s, old, new string) string {
	idx := indexOf(s, old)
	if idx < 0 {
		return s
	}
	return s[:idx] + new + s[idx+len(old):]
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func TestService_CheckHealthReportsInvalidAfterTampering(t *testing.T) {
	backing := store.NewMemStore()
	svc := NewService(backing, emit.NewNullEmitter())
	ctx := context.Background()
	session := NewSessionID()

	c, err := svc.Create(ctx, session, "first", nil, Trigger{Kind: Manual}, DebugStateSnapshot{WorkingDir: "/repo"})
	require.NoError(t, err)

	healthy := svc.CheckHealth(ctx, session, true)
	assert.True(t, healthy.Healthy)

	tampered := c
	tampered.Message = "tampered"
	require.NoError(t, backing.Delete(ctx, c.ID))
	require.NoError(t, backing.Store(ctx, tampered))

	unhealthy := svc.CheckHealth(ctx, session, true)
	assert.False(t, unhealthy.Healthy)
}

func TestService_CollectMetricsCountsActiveSessionsAndCheckpoints(t *testing.T) {
	svc := NewService(store.NewMemStore(), emit.NewNullEmitter())
	ctx := context.Background()
	sessionA := NewSessionID()
	sessionB := NewSessionID()

	_, err := svc.Create(ctx, sessionA, "a1", nil, Trigger{Kind: Manual}, DebugStateSnapshot{WorkingDir: "/repo"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, sessionA, "a2", nil, Trigger{Kind: Manual}, DebugStateSnapshot{WorkingDir: "/repo"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, sessionB, "b1", nil, Trigger{Kind: Manual}, DebugStateSnapshot{WorkingDir: "/repo"})
	require.NoError(t, err)

	metrics, err := svc.CollectMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, metrics.ActiveSessions)
	assert.Equal(t, 3, metrics.TotalCheckpoints)
}
