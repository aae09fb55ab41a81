package repo

import (
	"SHLink/internal/model"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRepository_ConsumeOnce(t *testing.T) {
	db := newTestDB(t)
	r := NewTokenRepository(db)
	ctx := context.Background()

	tok := &model.DownloadToken{
		ID:        "tok-1",
		ContentID: uuid.NewString(),
		ShlID:     uuid.NewString(),
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
	}
	require.NoError(t, r.Create(ctx, tok))

	got, err := r.Consume(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, got.Consumed)
	assert.Equal(t, tok.ContentID, got.ContentID)

	_, err = r.Consume(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Consume(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenRepository_ConcurrentConsumeSingleWinner(t *testing.T) {
	db := newTestDB(t)
	r := NewTokenRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, &model.DownloadToken{
		ID:        "race",
		ContentID: uuid.NewString(),
		ShlID:     uuid.NewString(),
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
	}))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Consume(ctx, "race"); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins)
}

func TestTokenRepository_DeleteExpired(t *testing.T) {
	db := newTestDB(t)
	r := NewTokenRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, r.Create(ctx, &model.DownloadToken{ID: "old", ContentID: uuid.NewString(), ShlID: uuid.NewString(), ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, r.Create(ctx, &model.DownloadToken{ID: "new", ContentID: uuid.NewString(), ShlID: uuid.NewString(), ExpiresAt: now.Add(time.Hour)}))

	n, err := r.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = r.Consume(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Consume(ctx, "new")
	assert.NoError(t, err)
}
