// Package store persists games and private hole cards.
//
// GameStore.Update is an optimistic compare-and-commit: the transform runs on a
// copy of the stored game, and the result is written only if the stored Version
// is unchanged, otherwise the transform is retried against the fresh copy.
package store

import (
	"context"
	"errors"

	"github.com/lox/holdem-engine/internal/game"
	"github.com/lox/holdem-engine/poker"
)

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
	// ErrConflict is returned when Update keeps losing the race to commit.
	ErrConflict = errors.New("commit conflict")
)

// DefaultMaxRetries bounds the Update retry loop.
const DefaultMaxRetries = 16

// UpdateFunc transforms a game. Returning a nil game and nil error leaves the
// stored game untouched. Returning an error aborts without committing.
type UpdateFunc func(g *game.Game) (*game.Game, error)

// GameStore holds game documents.
type GameStore interface {
	Create(ctx context.Context, g *game.Game) error
	Get(ctx context.Context, id string) (*game.Game, error)
	// Update applies fn and commits the result, bumping Version. It returns the
	// committed game, or the current one when fn made no change.
	Update(ctx context.Context, id string, fn UpdateFunc) (*game.Game, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
}

// HoleCardStore holds each hand's private cards, keyed by game and hand number.
type HoleCardStore interface {
	Put(ctx context.Context, gameID string, hand int, cards game.HoleCards) error
	Get(ctx context.Context, gameID string, hand int, playerID string) ([2]poker.Card, error)
	GetAll(ctx context.Context, gameID string, hand int) (game.HoleCards, error)
	Discard(ctx context.Context, gameID string, hand int) error
}
