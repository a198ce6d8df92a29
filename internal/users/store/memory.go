package store

import (
	"context"
	"sort"
	"sync"

	"registrar/internal/users/models"
	id "registrar/pkg/domain"
	"registrar/pkg/requestcontext"
)

// InMemoryStore keeps user rows in a process-local map. It backs unit tests
// and the dev server; PostgresStore is the production implementation.
type InMemoryStore struct {
	mu   sync.RWMutex
	rows map[id.SubjectID]*models.User
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{rows: make(map[id.SubjectID]*models.User)}
}

func (s *InMemoryStore) Insert(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[user.SubjectID]; exists {
		return ErrConflict
	}
	u := *user
	s.rows[user.SubjectID] = &u
	return nil
}

func (s *InMemoryStore) FindBySubject(ctx context.Context, subjectID id.SubjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.rows[subjectID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *InMemoryStore) Update(ctx context.Context, subjectID id.SubjectID, fields models.UpdateFields) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.rows[subjectID]
	if !ok {
		return nil, ErrNotFound
	}
	fields.Apply(u, requestcontext.Now(ctx))
	out := *u
	return &out, nil
}

func (s *InMemoryStore) Delete(ctx context.Context, subjectID id.SubjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[subjectID]; !ok {
		return ErrNotFound
	}
	delete(s.rows, subjectID)
	return nil
}

func (s *InMemoryStore) List(ctx context.Context, filter models.Filter) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*models.User, 0, len(s.rows))
	for _, u := range s.rows {
		if filter.Matches(u) {
			out := *u
			users = append(users, &out)
		}
	}
	// Stable output order for callers and tests.
	sort.Slice(users, func(i, j int) bool {
		return users[i].SubjectID < users[j].SubjectID
	})
	return users, nil
}
