package repository

import (
	"context"
	"testing"
	"time"

	"barberbook/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisDraftStore(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	repo := NewRedisDraftStore(client, time.Hour)
	ctx := context.Background()

	t.Run("SetAndGetDraft", func(t *testing.T) {
		draft := models.BookingDraft{
			CustomerName: "Ann",
			BarberID:     2,
			ServiceName:  "Haircut",
			Date:         "2024-06-01",
			Time:         "10:00",
		}

		require.NoError(t, repo.SetDraft(ctx, "s-1", draft))

		got, err := repo.GetDraft(ctx, "s-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, draft, *got)
		assert.Equal(t, time.Hour, s.TTL("draft:s-1"))
	})

	t.Run("GetMissingDraft", func(t *testing.T) {
		got, err := repo.GetDraft(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("DraftExpires", func(t *testing.T) {
		require.NoError(t, repo.SetDraft(ctx, "s-2", models.BookingDraft{CustomerName: "Bob"}))
		s.FastForward(time.Hour + time.Second)

		got, err := repo.GetDraft(ctx, "s-2")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ClearDraft", func(t *testing.T) {
		require.NoError(t, repo.SetDraft(ctx, "s-3", models.BookingDraft{CustomerName: "Eve"}))

		require.NoError(t, repo.ClearDraft(ctx, "s-3"))
		got, _ := repo.GetDraft(ctx, "s-3")
		assert.Nil(t, got)
	})

	t.Run("CorruptDraft", func(t *testing.T) {
		require.NoError(t, s.Set("draft:bad", "{not json"))
		_, err := repo.GetDraft(ctx, "bad")
		assert.ErrorContains(t, err, "unmarshal")
	})

	t.Run("RateLimit", func(t *testing.T) {
		key := "203.0.113.7"
		limit := 2
		window := time.Second

		allowed, err := repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(window + time.Millisecond)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("NilClient", func(t *testing.T) {
		repo := NewRedisDraftStore(nil, time.Hour)
		_, err := repo.GetDraft(ctx, "s-1")
		assert.ErrorContains(t, err, "redis client is nil")
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})

	t.Run("Close", func(t *testing.T) {
		assert.NoError(t, Close(client))
		assert.NoError(t, Close(nil))
	})
}
