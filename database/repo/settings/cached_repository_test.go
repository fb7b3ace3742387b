package settings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/anoixa/mediastore/cache/memory"
)

// MockRepository 模拟配置仓库
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockRepository) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockRepository) Invalidate(ctx context.Context, key string) {}

func newMemoryCache(t *testing.T) *memory.Memory {
	t.Helper()
	c, err := memory.NewMemory(memory.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCachedRepository_GetHitsCacheAfterFirstRead(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Get", mock.Anything, KeyStorageProvider).Return("MediaStorage.Database", nil).Once()

	cached := NewCachedRepository(repo, newMemoryCache(t), time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v, err := cached.Get(ctx, KeyStorageProvider)
		require.NoError(t, err)
		assert.Equal(t, "MediaStorage.Database", v)
	}
	repo.AssertNumberOfCalls(t, "Get", 1)
}

func TestCachedRepository_SetInvalidates(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Get", mock.Anything, KeyStorageProvider).Return("MediaStorage.Database", nil).Once()
	repo.On("Set", mock.Anything, KeyStorageProvider, "MediaStorage.FileSystem").Return(nil).Once()
	repo.On("Get", mock.Anything, KeyStorageProvider).Return("MediaStorage.FileSystem", nil).Once()

	cached := NewCachedRepository(repo, newMemoryCache(t), time.Minute)
	ctx := context.Background()

	v, err := cached.Get(ctx, KeyStorageProvider)
	require.NoError(t, err)
	assert.Equal(t, "MediaStorage.Database", v)

	require.NoError(t, cached.Set(ctx, KeyStorageProvider, "MediaStorage.FileSystem"))

	v, err = cached.Get(ctx, KeyStorageProvider)
	require.NoError(t, err)
	assert.Equal(t, "MediaStorage.FileSystem", v)
	repo.AssertExpectations(t)
}

func TestCachedRepository_NotFoundIsNotCached(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Get", mock.Anything, "missing").Return("", ErrNotFound).Twice()

	cached := NewCachedRepository(repo, newMemoryCache(t), 0)
	ctx := context.Background()

	_, err := cached.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = cached.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	repo.AssertExpectations(t)
}
