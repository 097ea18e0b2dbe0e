package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/DataClean/internal/core"
)

// Memory is a core.Store kept in process memory. It backs the server when no
// database URL is configured and the handler tests.
type Memory struct {
	mu        sync.RWMutex
	now       func() time.Time
	nextID    int64
	users     map[int64]core.User
	uploads   map[int64]core.FileUpload
	cleanings map[int64]core.CleaningRecord
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		now:       time.Now,
		users:     make(map[int64]core.User),
		uploads:   make(map[int64]core.FileUpload),
		cleanings: make(map[int64]core.CleaningRecord),
	}
}

var _ core.Store = (*Memory)(nil)

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *Memory) CreateUser(_ context.Context, email, hashedPassword string) (core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email {
			return core.User{}, core.ErrEmailTaken
		}
	}
	u := core.User{ID: m.id(), Email: email, HashedPassword: hashedPassword, CreatedAt: m.now()}
	m.users[u.ID] = u
	return u, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("get user: %w", core.ErrNotFound)
}

func (m *Memory) GetUser(_ context.Context, id int64) (core.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return core.User{}, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	return u, nil
}

func (m *Memory) UpdatePassword(_ context.Context, id int64, hashedPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user %d: %w", id, core.ErrNotFound)
	}
	u.HashedPassword = hashedPassword
	m.users[id] = u
	return nil
}

func (m *Memory) CreateUpload(_ context.Context, u core.FileUpload) (core.FileUpload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[u.UserID]; !ok {
		return core.FileUpload{}, fmt.Errorf("create upload: user %d: %w", u.UserID, core.ErrNotFound)
	}
	u.ID = m.id()
	u.UploadedAt = m.now()
	m.uploads[u.ID] = u
	return u, nil
}

func (m *Memory) GetUpload(_ context.Context, id int64) (core.FileUpload, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.uploads[id]
	if !ok {
		return core.FileUpload{}, fmt.Errorf("get upload: %w", core.ErrNotFound)
	}
	return u, nil
}

func (m *Memory) ListUploads(_ context.Context, userID int64) ([]core.FileUpload, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []core.FileUpload{}
	for _, u := range m.uploads {
		if u.UserID == userID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Memory) CreateCleaning(_ context.Context, rec core.CleaningRecord) (core.CleaningRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.uploads[rec.FileID]; !ok {
		return core.CleaningRecord{}, fmt.Errorf("create cleaning record: file %d: %w", rec.FileID, core.ErrNotFound)
	}
	rec.ID = m.id()
	rec.CreatedAt = m.now()
	m.cleanings[rec.ID] = rec
	return rec, nil
}

func (m *Memory) GetCleaning(_ context.Context, id int64) (core.CleaningRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.cleanings[id]
	if !ok {
		return core.CleaningRecord{}, fmt.Errorf("get cleaning record: %w", core.ErrNotFound)
	}
	return rec, nil
}

func (m *Memory) ListCleanings(_ context.Context, userID int64) ([]core.CleaningRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []core.CleaningRecord{}
	for _, rec := range m.cleanings {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
