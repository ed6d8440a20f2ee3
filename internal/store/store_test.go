package store

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/holdem-engine/internal/game"
	"github.com/lox/holdem-engine/poker"
)

func newGame() *game.Game {
	return game.New(uuid.NewString(), game.Meta{
		MaxPlayers: 6,
		Blinds:     game.Blinds{Small: 5, Big: 10},
		MinBuyIn:   100,
		MaxBuyIn:   1000,
	})
}

func testGameStore(t *testing.T, s GameStore) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		g := newGame()
		require.NoError(t, s.Create(ctx, g))
		assert.ErrorIs(t, s.Create(ctx, g), ErrExists)

		got, err := s.Get(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, g.ID, got.ID)
		assert.Equal(t, g.Meta, got.Meta)
		assert.Len(t, got.Seats, 6)

		_, err = s.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update bumps version", func(t *testing.T) {
		g := newGame()
		require.NoError(t, s.Create(ctx, g))

		next, err := s.Update(ctx, g.ID, func(g *game.Game) (*game.Game, error) {
			return game.SitDown(g, 2, "alice", "Alice", 500)
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), next.Version)

		got, err := s.Get(ctx, g.ID)
		require.NoError(t, err)
		require.NotNil(t, got.SeatByPlayer("alice"))
		assert.Equal(t, 500, got.SeatByPlayer("alice").Chips)
	})

	t.Run("failed transform does not commit", func(t *testing.T) {
		g := newGame()
		require.NoError(t, s.Create(ctx, g))

		boom := errors.New("boom")
		_, err := s.Update(ctx, g.ID, func(g *game.Game) (*game.Game, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)

		same, err := s.Update(ctx, g.ID, func(*game.Game) (*game.Game, error) { return nil, nil })
		require.NoError(t, err)
		assert.Equal(t, int64(0), same.Version)
	})

	t.Run("concurrent updates never lose a write", func(t *testing.T) {
		g := newGame()
		require.NoError(t, s.Create(ctx, g))

		var wg sync.WaitGroup
		var mu sync.Mutex
		committed := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 5; j++ {
					_, err := s.Update(ctx, g.ID, func(g *game.Game) (*game.Game, error) {
						g.HandNumber++
						return g, nil
					})
					if errors.Is(err, ErrConflict) {
						continue
					}
					assert.NoError(t, err)
					mu.Lock()
					committed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		got, err := s.Get(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, committed, got.HandNumber)
		assert.Equal(t, int64(committed), got.Version)
	})

	t.Run("delete and list", func(t *testing.T) {
		g := newGame()
		require.NoError(t, s.Create(ctx, g))

		ids, err := s.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, g.ID)

		require.NoError(t, s.Delete(ctx, g.ID))
		assert.ErrorIs(t, s.Delete(ctx, g.ID), ErrNotFound)
		_, err = s.Get(ctx, g.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func testHoleCardStore(t *testing.T, s HoleCardStore) {
	ctx := context.Background()
	gameID := uuid.NewString()
	cards := poker.MustParseCards("As Kd 7h 7c")
	holes := game.HoleCards{
		"alice": {cards[0], cards[1]},
		"bob":   {cards[2], cards[3]},
	}

	require.NoError(t, s.Put(ctx, gameID, 3, holes))

	hc, err := s.Get(ctx, gameID, 3, "alice")
	require.NoError(t, err)
	assert.Equal(t, holes["alice"], hc)

	_, err = s.Get(ctx, gameID, 3, "carol")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, gameID, 4, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := s.GetAll(ctx, gameID, 3)
	require.NoError(t, err)
	assert.Equal(t, holes, all)

	require.NoError(t, s.Discard(ctx, gameID, 3))
	_, err = s.GetAll(ctx, gameID, 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryGameStore(t *testing.T) {
	t.Parallel()
	testGameStore(t, NewMemoryGameStore())
}

func TestMemoryHoleCardStore(t *testing.T) {
	t.Parallel()
	testHoleCardStore(t, NewMemoryHoleCardStore())
}

func TestMemoryStoreIsolatesCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryGameStore()
	g := newGame()
	require.NoError(t, s.Create(ctx, g))

	g.HandNumber = 99
	got, err := s.Get(ctx, g.ID)
	require.NoError(t, err)
	got.Status = game.StatusEnded

	again, err := s.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.HandNumber)
	assert.Equal(t, game.StatusWaiting, again.Status)
}

// redisOptions returns options for a test server named by HOLDEM_TEST_REDIS, or
// skips the test.
func redisOptions(t *testing.T) RedisOptions {
	t.Helper()
	addr := os.Getenv("HOLDEM_TEST_REDIS")
	if addr == "" {
		t.Skip("HOLDEM_TEST_REDIS not set")
	}
	return RedisOptions{Addr: addr, Prefix: "holdem-test-" + uuid.NewString()[:8]}
}

func TestRedisGameStore(t *testing.T) {
	opts := redisOptions(t)
	rdb, err := NewRedisClient(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	testGameStore(t, NewRedisGameStore(rdb, opts))
}

func TestRedisHoleCardStore(t *testing.T) {
	opts := redisOptions(t)
	rdb, err := NewRedisClient(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	testHoleCardStore(t, NewRedisHoleCardStore(rdb, opts))
}
