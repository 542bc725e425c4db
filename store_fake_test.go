package main

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is an in-memory stand-in for pgStore used by handler and
// aggregator tests. It keeps the same ordering and not-found semantics.
type memStore struct {
	mu       sync.Mutex
	meals    map[uuid.UUID]mealEntry
	profiles []profile
	users    []user
	queries  int
}

func newMemStore() *memStore {
	return &memStore{meals: make(map[uuid.UUID]mealEntry)}
}

func (m *memStore) queryRange(_ context.Context, userID int, start, end time.Time) ([]mealEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	var out []mealEntry
	for _, e := range m.meals {
		if e.UserID == userID && !e.Date.Before(start) && e.Date.Before(end) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *memStore) insert(_ context.Context, e *mealEntry) (mealEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	stored := *e
	stored.CreatedAt = &now
	stored.UpdatedAt = &now
	m.meals[stored.ID] = stored
	return stored, nil
}

func (m *memStore) get(_ context.Context, userID int, id uuid.UUID) (mealEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.meals[id]
	if !ok || e.UserID != userID {
		return mealEntry{}, errNotFound
	}
	return e, nil
}

func (m *memStore) update(_ context.Context, e *mealEntry) (mealEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.meals[e.ID]
	if !ok || old.UserID != e.UserID {
		return mealEntry{}, errNotFound
	}
	now := time.Now()
	stored := *e
	stored.CreatedAt = old.CreatedAt
	stored.UpdatedAt = &now
	m.meals[e.ID] = stored
	return stored, nil
}

func (m *memStore) delete(_ context.Context, userID int, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.meals[id]
	if !ok || e.UserID != userID {
		return errNotFound
	}
	delete(m.meals, id)
	return nil
}

func (m *memStore) current(_ context.Context, userID int) (profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *profile
	for i := range m.profiles {
		p := &m.profiles[i]
		if p.UserID == userID && (best == nil || p.LastUpdated.After(best.LastUpdated)) {
			best = p
		}
	}
	if best == nil {
		return profile{}, errNotFound
	}
	return *best, nil
}

func (m *memStore) save(_ context.Context, p *profile) (profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		stored := *p
		stored.ID = len(m.profiles) + 1
		m.profiles = append(m.profiles, stored)
		return stored, nil
	}
	for i := range m.profiles {
		if m.profiles[i].ID == p.ID && m.profiles[i].UserID == p.UserID {
			m.profiles[i] = *p
			return *p, nil
		}
	}
	return profile{}, errNotFound
}

func (m *memStore) userByToken(_ context.Context, token string) (user, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.AuthToken == token {
			return u, nil
		}
	}
	return user{}, errNotFound
}

func (m *memStore) userByUsername(_ context.Context, username string) (user, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return user{}, errNotFound
}

func (m *memStore) syncTargets(_ context.Context) ([]user, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []user
	for _, u := range m.users {
		for _, p := range m.profiles {
			if p.UserID == u.ID {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

// failingQuerier succeeds for the first okCalls range queries and fails after.
type failingQuerier struct {
	inner   mealRangeQuerier
	okCalls int
	calls   int
}

var errStoreDown = errors.New("store down")

func (f *failingQuerier) queryRange(ctx context.Context, userID int, start, end time.Time) ([]mealEntry, error) {
	f.calls++
	if f.calls > f.okCalls {
		return nil, errStoreDown
	}
	return f.inner.queryRange(ctx, userID, start, end)
}
