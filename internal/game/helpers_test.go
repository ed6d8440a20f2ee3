package game

import (
	"fmt"
	"testing"

	"github.com/lox/holdem-engine/internal/randutil"
	"github.com/stretchr/testify/require"
)

var testMeta = Meta{
	MaxPlayers: 6,
	Blinds:     Blinds{Small: 5, Big: 10},
	MinBuyIn:   1,
	MaxBuyIn:   10000,
}

// newTestGame seats one player per stack at seats 0..n-1, named p0..pn-1.
func newTestGame(t *testing.T, stacks ...int) *Game {
	t.Helper()
	g := New("test", testMeta)
	for i, chips := range stacks {
		var err error
		g, err = SitDown(g, i, fmt.Sprintf("p%d", i), fmt.Sprintf("Player %d", i), max(chips, 1))
		require.NoError(t, err)
		g.Seats[i].Chips = chips
	}
	return g
}

// startHand initializes a hand and deals hole cards.
func startHand(t *testing.T, g *Game, seed int64) (*Game, HoleCards) {
	t.Helper()
	g, err := InitializeHand(g, randutil.New(seed))
	require.NoError(t, err)
	g, holes, err := DealHoleCards(g)
	require.NoError(t, err)
	return g, holes
}

func act(t *testing.T, g *Game, playerID string, kind ActionKind, amount ...int) *Game {
	t.Helper()
	a := Action{Kind: kind}
	if len(amount) > 0 {
		a.Amount = amount[0]
	}
	next, err := ApplyAction(g, playerID, a)
	require.NoError(t, err, "%s %s", playerID, a)
	return next
}

// advance deals streets until someone must act or the hand reaches last_man or
// showdown.
func advance(t *testing.T, g *Game) *Game {
	t.Helper()
	for IsBetting(g) && g.Table.CurrentTurn == "" {
		var err error
		g, err = Advance(g)
		require.NoError(t, err)
	}
	return g
}

func stacks(g *Game) []int {
	var out []int
	for _, s := range g.Seats {
		if s != nil {
			out = append(out, s.Chips)
		}
	}
	return out
}

// passive checks when possible and otherwise calls.
func passive(g *Game, playerID string) ActionKind {
	if CallAmount(g, playerID) == 0 {
		return Check
	}
	return Call
}
