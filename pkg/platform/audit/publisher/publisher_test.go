package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "registrar/pkg/domain"
	audit "registrar/pkg/platform/audit"
	"registrar/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	subjectID := id.SubjectID(uuid.NewString())
	event := audit.Event{
		SubjectID: subjectID,
		Action:    string(audit.EventUserCreated),
	}

	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)

	events, err := pub.List(context.Background(), subjectID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventUserCreated), events[0].Action)
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))
	defer pub.Close()

	subjectID := id.SubjectID(uuid.NewString())
	event := audit.Event{
		SubjectID: subjectID,
		Action:    string(audit.EventUserUpdated),
	}

	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)

	// Wait for async processing
	time.Sleep(100 * time.Millisecond)

	events, err := pub.List(context.Background(), subjectID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventUserUpdated), events[0].Action)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	subjectID := id.SubjectID(uuid.NewString())

	for range 10 {
		event := audit.Event{
			SubjectID: subjectID,
			Action:    string(audit.EventUserCreated),
		}
		err := pub.Emit(context.Background(), event)
		require.NoError(t, err)
	}

	// Close should drain all events
	pub.Close()

	events, err := store.ListBySubject(context.Background(), subjectID)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_BufferFull_DropsNothingSilently(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	subjectID := id.SubjectID(uuid.NewString())

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			event := audit.Event{
				SubjectID: subjectID,
				Action:    string(audit.EventUserCreated),
			}
			_ = pub.Emit(context.Background(), event)
		}()
	}
	wg.Wait()

	// Just verify no panic and the publisher still works
	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		SubjectID: subjectID,
		Action:    string(audit.EventUserDeleted),
	}))
}

func TestPublisher_SetsTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	subjectID := id.SubjectID(uuid.NewString())
	event := audit.Event{
		SubjectID: subjectID,
		Action:    string(audit.EventUserCreated),
		// Timestamp not set
	}

	before := time.Now()
	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)
	after := time.Now()

	events, err := pub.List(context.Background(), subjectID)
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.True(t, !events[0].Timestamp.Before(before), "timestamp should be >= before")
	assert.True(t, !events[0].Timestamp.After(after), "timestamp should be <= after")
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	subjectID := id.SubjectID(uuid.NewString())
	customTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	event := audit.Event{
		SubjectID: subjectID,
		Action:    string(audit.EventUserCreated),
		Timestamp: customTime,
	}

	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)

	events, err := pub.List(context.Background(), subjectID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, customTime, events[0].Timestamp)
}

func TestPublisher_ForwardsToSinks(t *testing.T) {
	store := memory.NewInMemoryStore()
	captured := &capturingSink{}
	pub := NewPublisher(store, WithSink(captured))
	defer pub.Close()

	subjectID := id.SubjectID(uuid.NewString())
	err := pub.Emit(context.Background(), audit.Event{
		SubjectID: subjectID,
		Action:    string(audit.EventUserMirrorLagged),
		Outcome:   audit.OutcomeLagged,
	})
	require.NoError(t, err)

	require.Len(t, captured.events, 1)
	assert.Equal(t, audit.OutcomeLagged, captured.events[0].Outcome)
}

func TestPublisher_DifferentSubjects(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	subjectID1 := id.SubjectID(uuid.NewString())
	subjectID2 := id.SubjectID(uuid.NewString())

	err := pub.Emit(context.Background(), audit.Event{
		SubjectID: subjectID1,
		Action:    string(audit.EventUserCreated),
	})
	require.NoError(t, err)

	err = pub.Emit(context.Background(), audit.Event{
		SubjectID: subjectID2,
		Action:    string(audit.EventUserDeleted),
	})
	require.NoError(t, err)

	events1, err := pub.List(context.Background(), subjectID1)
	require.NoError(t, err)
	require.Len(t, events1, 1)
	assert.Equal(t, string(audit.EventUserCreated), events1[0].Action)

	events2, err := pub.List(context.Background(), subjectID2)
	require.NoError(t, err)
	require.Len(t, events2, 1)
	assert.Equal(t, string(audit.EventUserDeleted), events2[0].Action)
}

type capturingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *capturingSink) Forward(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}
