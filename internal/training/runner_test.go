package training

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-app/internal/domain/personas"
	"persona-app/pkg/logger"
)

type memStore struct {
	mu       sync.Mutex
	personas map[uint]*personas.Persona
	failAt   int // progress value at which UpdateProgress starts erroring
	history  []int
}

func newMemStore() *memStore {
	return &memStore{personas: map[uint]*personas.Persona{}}
}

func (s *memStore) add(p *personas.Persona) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.personas[p.ID] = p
}

func (s *memStore) get(id uint) personas.Persona {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.personas[id]
}

func (s *memStore) Persona(ctx context.Context, id uint) (*personas.Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.personas[id]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (s *memStore) UpdateProgress(ctx context.Context, id uint, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt > 0 && progress >= s.failAt {
		return errors.New("database gone away")
	}
	p := s.personas[id]
	if p.Status != personas.StatusTraining {
		return nil
	}
	p.Progress = progress
	s.history = append(s.history, progress)
	return nil
}

func (s *memStore) MarkReady(ctx context.Context, id uint, thumbnailURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.personas[id]
	if p.Status != personas.StatusTraining {
		return nil
	}
	p.Status = personas.StatusReady
	p.Progress = 100
	p.ThumbnailURL = thumbnailURL
	s.history = append(s.history, 100)
	return nil
}

func (s *memStore) MarkFailed(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.personas[id]
	if p.Status != personas.StatusTraining {
		return nil
	}
	p.Status = personas.StatusFailed
	return nil
}

func newTestRunner(t *testing.T, store Store) (*Runner, context.CancelFunc) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	runner := NewRunner(rdb, store, time.Millisecond, logger.New())

	ctx, cancel := context.WithCancel(context.Background())
	go runner.Start(ctx)
	t.Cleanup(cancel)

	return runner, cancel
}

func TestRunnerAdvancesToReady(t *testing.T) {
	store := newMemStore()
	store.add(&personas.Persona{
		ID:             1,
		UserID:         7,
		Status:         personas.StatusTraining,
		TrainingImages: []string{"https://cdn.example.com/selfie-1.png", "https://cdn.example.com/selfie-2.png"},
	})

	runner, _ := newTestRunner(t, store)
	require.NoError(t, runner.Enqueue(context.Background(), 1))

	assert.Eventually(t, func() bool {
		return store.get(1).Status == personas.StatusReady
	}, 5*time.Second, 5*time.Millisecond)

	got := store.get(1)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, "https://cdn.example.com/selfie-1.png", got.ThumbnailURL)

	// Progress only ever moved forward.
	store.mu.Lock()
	defer store.mu.Unlock()
	for i := 1; i < len(store.history); i++ {
		assert.Greater(t, store.history[i], store.history[i-1])
	}
}

func TestRunnerMarksFailedOnStoreError(t *testing.T) {
	store := newMemStore()
	store.failAt = 50
	store.add(&personas.Persona{ID: 2, UserID: 7, Status: personas.StatusTraining})

	runner, _ := newTestRunner(t, store)
	require.NoError(t, runner.Enqueue(context.Background(), 2))

	assert.Eventually(t, func() bool {
		return store.get(2).Status == personas.StatusFailed
	}, 5*time.Second, 5*time.Millisecond)
}

func TestRunnerIgnoresTerminalPersonas(t *testing.T) {
	store := newMemStore()
	store.add(&personas.Persona{ID: 3, UserID: 7, Status: personas.StatusReady, Progress: 100})

	runner, _ := newTestRunner(t, store)
	require.NoError(t, runner.Enqueue(context.Background(), 3))

	// Give the runner time to pick the job up, then confirm nothing moved.
	time.Sleep(50 * time.Millisecond)
	got := store.get(3)
	assert.Equal(t, personas.StatusReady, got.Status)
	assert.Empty(t, store.history)
}

func TestRunnerIgnoresUnknownJob(t *testing.T) {
	store := newMemStore()
	runner, _ := newTestRunner(t, store)

	require.NoError(t, runner.Enqueue(context.Background(), 42))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, store.history)
}
