package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dharsanguruparan/RestorePortal/internal/credential"
	"github.com/dharsanguruparan/RestorePortal/internal/model"
)

// ErrImmutableField is returned when an Update callback rewrites the id or
// email of a record.
var ErrImmutableField = errors.New("id and email are immutable")

type entry struct {
	mu  sync.RWMutex
	app *model.Application
}

func (e *entry) snapshot() *model.Application {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.app.Clone()
}

// MemoryStore keeps applications in insertion order. The store-wide RWMutex
// guards the slice and indexes; each record has its own lock so concurrent
// updates of different applications do not serialize on one another.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*entry
	byID    map[int64]*entry
	byEmail map[string]*entry
	nextID  int64
	now     func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[int64]*entry),
		byEmail: make(map[string]*entry),
		nextID:  1,
		now:     time.Now,
	}
}

// ReserveID implements Store.
func (m *MemoryStore) ReserveID(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	return id, nil
}

// Create implements Store.
func (m *MemoryStore) Create(ctx context.Context, draft *model.Application) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[draft.Email]; exists {
		return 0, model.ErrDuplicateEmail
	}
	app := draft.Clone()
	if app.ID == 0 {
		app.ID = m.nextID
		m.nextID++
	}
	if _, exists := m.byID[app.ID]; exists {
		return 0, fmt.Errorf("application %d already exists", app.ID)
	}
	if app.ID >= m.nextID {
		m.nextID = app.ID + 1
	}
	if app.Files == nil {
		app.Files = make(map[model.ArtifactKind]string)
	}
	now := m.now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = now
	e := &entry{app: app}
	m.entries = append(m.entries, e)
	m.byID[app.ID] = e
	m.byEmail[app.Email] = e
	return app.ID, nil
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, id int64) (*model.Application, error) {
	m.mu.RLock()
	e, ok := m.byID[id]
	m.mu.RUnlock()
	if !ok {
		return nil, model.NotFoundError{Resource: "application"}
	}
	return e.snapshot(), nil
}

// FindByEmail implements Store.
func (m *MemoryStore) FindByEmail(ctx context.Context, email string) (*model.Application, error) {
	m.mu.RLock()
	e, ok := m.byEmail[email]
	m.mu.RUnlock()
	if !ok {
		return nil, model.NotFoundError{Resource: "application"}
	}
	return e.snapshot(), nil
}

// FindByCredentials implements Store. Both values are compared on the same
// record, under that record's lock.
func (m *MemoryStore) FindByCredentials(ctx context.Context, professionalID, sessionToken string) (*model.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		e.mu.RLock()
		match := e.app.HasSession() &&
			*e.app.ProfessionalID == professionalID &&
			credential.Equal(sessionToken, *e.app.SessionToken)
		var app *model.Application
		if match {
			app = e.app.Clone()
		}
		e.mu.RUnlock()
		if match {
			return app, nil
		}
	}
	return nil, model.NotFoundError{Resource: "application"}
}

// List implements Store.
func (m *MemoryStore) List(ctx context.Context) ([]*model.Application, error) {
	return m.filter(func(*model.Application) bool { return true }), nil
}

// ListByStatus implements Store.
func (m *MemoryStore) ListByStatus(ctx context.Context, status model.Status) ([]*model.Application, error) {
	return m.filter(func(a *model.Application) bool { return a.Status == status }), nil
}

func (m *MemoryStore) filter(keep func(*model.Application) bool) []*model.Application {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Application, 0, len(m.entries))
	for _, e := range m.entries {
		app := e.snapshot()
		if keep(app) {
			out = append(out, app)
		}
	}
	return out
}

// Update implements Store. The callback works on a copy that replaces the
// stored record only when fn succeeds, so a failing callback leaves no trace.
func (m *MemoryStore) Update(ctx context.Context, id int64, fn func(*model.Application) error) (*model.Application, error) {
	m.mu.RLock()
	e, ok := m.byID[id]
	m.mu.RUnlock()
	if !ok {
		return nil, model.NotFoundError{Resource: "application"}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	working := e.app.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	if working.ID != e.app.ID || working.Email != e.app.Email {
		return nil, ErrImmutableField
	}
	working.UpdatedAt = m.now().UTC()
	e.app = working
	return working.Clone(), nil
}
