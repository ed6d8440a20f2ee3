package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/lox/holdem-engine/internal/game"
	"github.com/lox/holdem-engine/poker"
)

// MemoryGameStore is an in-process GameStore.
type MemoryGameStore struct {
	mu    sync.RWMutex
	games map[string]*game.Game
}

// NewMemoryGameStore returns an empty store.
func NewMemoryGameStore() *MemoryGameStore {
	return &MemoryGameStore{games: make(map[string]*game.Game)}
}

func (s *MemoryGameStore) Create(_ context.Context, g *game.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[g.ID]; ok {
		return fmt.Errorf("game %s: %w", g.ID, ErrExists)
	}
	s.games[g.ID] = g.Clone()
	return nil
}

func (s *MemoryGameStore) Get(_ context.Context, id string) (*game.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[id]
	if !ok {
		return nil, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	return g.Clone(), nil
}

// Update runs fn outside the lock and commits only if no other writer got in
// first.
func (s *MemoryGameStore) Update(ctx context.Context, id string, fn UpdateFunc) (*game.Game, error) {
	for attempt := 0; attempt < DefaultMaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		next, err := fn(current.Clone())
		if err != nil {
			return nil, err
		}
		if next == nil {
			return current, nil
		}

		s.mu.Lock()
		stored, ok := s.games[id]
		switch {
		case !ok:
			s.mu.Unlock()
			return nil, fmt.Errorf("game %s: %w", id, ErrNotFound)
		case stored.Version != current.Version:
			s.mu.Unlock()
			continue
		}
		next = next.Clone()
		next.Version = current.Version + 1
		s.games[id] = next
		s.mu.Unlock()
		return next.Clone(), nil
	}
	return nil, fmt.Errorf("game %s: %w", id, ErrConflict)
}

func (s *MemoryGameStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[id]; !ok {
		return fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	delete(s.games, id)
	return nil
}

func (s *MemoryGameStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.games))
	for id := range s.games {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

type handKey struct {
	gameID string
	hand   int
}

// MemoryHoleCardStore is an in-process HoleCardStore.
type MemoryHoleCardStore struct {
	mu    sync.RWMutex
	hands map[handKey]game.HoleCards
}

// NewMemoryHoleCardStore returns an empty store.
func NewMemoryHoleCardStore() *MemoryHoleCardStore {
	return &MemoryHoleCardStore{hands: make(map[handKey]game.HoleCards)}
}

func (s *MemoryHoleCardStore) Put(_ context.Context, gameID string, hand int, cards game.HoleCards) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hands[handKey{gameID, hand}] = maps.Clone(cards)
	return nil
}

func (s *MemoryHoleCardStore) Get(_ context.Context, gameID string, hand int, playerID string) ([2]poker.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hc, ok := s.hands[handKey{gameID, hand}][playerID]
	if !ok {
		return [2]poker.Card{}, fmt.Errorf("hole cards for %s in %s#%d: %w", playerID, gameID, hand, ErrNotFound)
	}
	return hc, nil
}

func (s *MemoryHoleCardStore) GetAll(_ context.Context, gameID string, hand int) (game.HoleCards, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	holes, ok := s.hands[handKey{gameID, hand}]
	if !ok {
		return nil, fmt.Errorf("hole cards for %s#%d: %w", gameID, hand, ErrNotFound)
	}
	return maps.Clone(holes), nil
}

func (s *MemoryHoleCardStore) Discard(_ context.Context, gameID string, hand int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hands, handKey{gameID, hand})
	return nil
}
