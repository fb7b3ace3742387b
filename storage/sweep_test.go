package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// flakyStore 指定路径删除失败
type flakyStore struct {
	mu      sync.Mutex
	deleted []string
	failing map[string]bool
}

func (s *flakyStore) Exists(context.Context, string) (bool, error)        { return false, nil }
func (s *flakyStore) Open(context.Context, string) (io.ReadCloser, error) { return nil, errObjectNotFound }
func (s *flakyStore) Write(context.Context, string, io.Reader) error      { return nil }

func (s *flakyStore) Delete(_ context.Context, p string) error {
	if s.failing[p] {
		return errors.New("permission denied")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, p)
	return nil
}

func TestSweepJob_ContinuesPastFailures(t *testing.T) {
	store := &flakyStore{failing: map[string]bool{"b": true}}
	job := &sweepJob{
		ctx:      context.Background(),
		provider: "test",
		runID:    "run",
		store:    store,
		files:    []string{"a", "b", "c", "d"},
		opts:     SweepOptions{Concurrency: 2},
	}

	deleted, failed := job.run()
	assert.Equal(t, int64(3), deleted)
	assert.Equal(t, int64(1), failed)
	assert.ElementsMatch(t, []string{"a", "c", "d"}, store.deleted)
}

func TestSweepJob_RateLimited(t *testing.T) {
	files := make([]string, 6)
	for i := range files {
		files[i] = strings.Repeat("f", i+1)
	}
	job := &sweepJob{
		ctx:   context.Background(),
		store: &flakyStore{},
		files: files,
		opts:  SweepOptions{Concurrency: 1, DeletesPerSecond: 20},
	}

	begin := time.Now()
	deleted, _ := job.run()

	assert.Equal(t, int64(6), deleted)
	// 初始令牌为 1，其余 5 次每次约 50ms
	assert.GreaterOrEqual(t, time.Since(begin), 200*time.Millisecond)
}

func TestSweepJob_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &flakyStore{}
	job := &sweepJob{ctx: ctx, store: store, files: []string{"a", "b"}}

	deleted, failed := job.run()
	assert.Equal(t, int64(0), deleted+failed)
	assert.Empty(t, store.deleted)
}
