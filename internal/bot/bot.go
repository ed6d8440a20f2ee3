// Package bot provides simple playing strategies and a driver that plays them
// on tables run by the table service.
package bot

import (
	"fmt"
	rand "math/rand/v2"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/lox/holdem-engine/internal/game"
	"github.com/lox/holdem-engine/poker"
)

// State is what a bot sees when it is asked to act.
type State struct {
	// Game is the public view of the table.
	Game      *game.Game
	PlayerID  string
	HoleCards [2]poker.Card
}

// Decision is a chosen action with the reasoning behind it.
type Decision struct {
	Action    game.Action
	Reasoning string
}

// Strategy picks an action for the player whose turn it is.
type Strategy interface {
	MakeDecision(s State) Decision
}

// New returns the named strategy. Names match the config file's strategy
// values.
func New(name string, rng *rand.Rand, logger *log.Logger) (Strategy, error) {
	switch name {
	case "call":
		return NewCallBot(logger), nil
	case "random":
		return NewRandBot(rng, logger), nil
	case "aggressive":
		return NewAggressiveBot(rng, logger), nil
	}
	return nil, fmt.Errorf("unknown strategy %q", name)
}

// options summarises the legal actions for s.
type options struct {
	kinds    []game.ActionKind
	minRaise int
	stack    int
	toCall   int
}

func optionsFor(s State) options {
	o := options{
		kinds:  game.LegalActions(s.Game, s.PlayerID),
		toCall: game.CallAmount(s.Game, s.PlayerID),
	}
	o.minRaise, o.stack = game.RaiseBounds(s.Game, s.PlayerID)
	return o
}

func (o options) has(k game.ActionKind) bool {
	return slices.Contains(o.kinds, k)
}

// first returns the first of prefs that is legal, falling back to fold.
func (o options) first(reasoning string, prefs ...game.ActionKind) Decision {
	for _, k := range prefs {
		if o.has(k) {
			d := Decision{Action: game.Action{Kind: k}, Reasoning: reasoning}
			if k == game.Raise {
				d.Action.Amount = o.minRaise
			}
			return d
		}
	}
	if o.has(game.Check) {
		return Decision{Action: game.Action{Kind: game.Check}, Reasoning: "fallback: " + reasoning}
	}
	return Decision{Action: game.Action{Kind: game.Fold}, Reasoning: "fallback: " + reasoning}
}

// raise returns a raise of amount clamped to the legal range, or all-in when the
// clamp reaches the whole stack.
func (o options) raise(amount int, reasoning string) Decision {
	if !o.has(game.Raise) {
		return o.first(reasoning, game.AllIn, game.Call, game.Check)
	}
	amount = max(o.minRaise, min(amount, o.stack))
	if amount >= o.stack && o.has(game.AllIn) {
		return Decision{Action: game.Action{Kind: game.AllIn}, Reasoning: reasoning}
	}
	return Decision{Action: game.Action{Kind: game.Raise, Amount: amount}, Reasoning: reasoning}
}

func potSize(g *game.Game) int {
	total := g.Table.Pot
	for _, p := range g.Table.SidePots {
		total += p.Amount
	}
	for _, s := range g.Seats {
		if s != nil {
			total += s.CurrentBet
		}
	}
	return total
}
