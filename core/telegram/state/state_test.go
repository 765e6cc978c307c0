package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPersister struct {
	mu      sync.Mutex
	records map[int64]Record
	failAll bool
}

func newMemPersister() *memPersister {
	return &memPersister{records: map[int64]Record{}}
}

func (p *memPersister) SaveSession(_ context.Context, rec Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAll {
		return errors.New("disk full")
	}
	p.records[rec.UserID] = rec
	return nil
}

func (p *memPersister) DeleteSession(_ context.Context, userID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAll {
		return errors.New("disk full")
	}
	delete(p.records, userID)
	return nil
}

func (p *memPersister) LoadSessions(_ context.Context, since time.Time) ([]Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Record
	for _, r := range p.records {
		if !r.UpdatedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (p *memPersister) PruneSessions(_ context.Context, cutoff time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int64
	for id, r := range p.records {
		if r.UpdatedAt.Before(cutoff) {
			delete(p.records, id)
			n++
		}
	}
	return n, nil
}

func TestSetReplacesWholeSession(t *testing.T) {
	ctx := context.Background()
	store := newMemPersister()
	mgr := NewManager(WithPersister(store))

	mgr.Set(ctx, 1, "delivery_city", map[string]string{"kind": "pickup", "city": "Москва"})
	mgr.Set(ctx, 1, "delivery_point", map[string]string{"point": "ПВЗ 5"})

	sess := mgr.Get(ctx, 1)
	assert.Equal(t, State("delivery_point"), sess.State)
	assert.Equal(t, "ПВЗ 5", sess.Value("point"))
	assert.Empty(t, sess.Value("city"), "set must not merge previous data")

	rec, ok := store.records[1]
	require.True(t, ok)
	assert.Equal(t, "delivery_point", rec.State)
	assert.JSONEq(t, `{"point":"ПВЗ 5"}`, rec.Data)
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	mgr := NewMemoryManager()
	mgr.Set(ctx, 1, "a", map[string]string{"k": "v"})

	sess := mgr.Get(ctx, 1)
	sess.Data["k"] = "changed"
	assert.Equal(t, "v", mgr.Get(ctx, 1).Value("k"))
}

func TestClearRemovesBothCopies(t *testing.T) {
	ctx := context.Background()
	store := newMemPersister()
	mgr := NewManager(WithPersister(store))

	mgr.Set(ctx, 7, "a", nil)
	mgr.Clear(ctx, 7)

	assert.False(t, mgr.Get(ctx, 7).Active())
	assert.Empty(t, store.records)
}

func TestPersistenceFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	store := newMemPersister()
	store.failAll = true
	mgr := NewManager(WithPersister(store))

	mgr.Set(ctx, 3, "a", map[string]string{"x": "1"})
	assert.Equal(t, State("a"), mgr.Get(ctx, 3).State)
}

func TestUpdateSerialisesPerUser(t *testing.T) {
	ctx := context.Background()
	mgr := NewMemoryManager()
	mgr.Set(ctx, 1, "count", map[string]string{"n": ""})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mgr.Update(ctx, 1, func(s Session) (State, map[string]string) {
				return s.State, map[string]string{"n": s.Value("n") + "x"}
			})
		}()
	}
	wg.Wait()
	assert.Len(t, mgr.Get(ctx, 1).Value("n"), 50)
}

func TestRehydrateAndPrune(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	store := newMemPersister()
	store.records[1] = Record{UserID: 1, State: "a", Data: `{"k":"v"}`, UpdatedAt: now.Add(-time.Hour)}
	store.records[2] = Record{UserID: 2, State: "b", Data: `{}`, UpdatedAt: now.Add(-48 * time.Hour)}

	mgr := NewManager(WithPersister(store), WithClock(func() time.Time { return now }))
	n, err := mgr.Rehydrate(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "v", mgr.Get(ctx, 1).Value("k"))
	assert.False(t, mgr.Get(ctx, 2).Active())

	pruned, err := mgr.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)
	assert.Len(t, store.records, 1)
	assert.True(t, mgr.Get(ctx, 1).Active())
}
