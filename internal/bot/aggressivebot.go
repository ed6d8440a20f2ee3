package bot

import (
	rand "math/rand/v2"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/lox/holdem-engine/internal/evaluator"
	"github.com/lox/holdem-engine/internal/game"
	"github.com/lox/holdem-engine/poker"
)

// AggressiveBot raises and shoves often. Preflop it sizes by hole card
// category; after the flop it bets made hands and bluffs a share of the rest.
type AggressiveBot struct {
	rng    *rand.Rand
	logger *log.Logger
}

// NewAggressiveBot creates a new AggressiveBot instance
func NewAggressiveBot(rng *rand.Rand, logger *log.Logger) *AggressiveBot {
	return &AggressiveBot{rng: rng, logger: logger}
}

func (a *AggressiveBot) MakeDecision(s State) Decision {
	o := optionsFor(s)
	g := s.Game
	bb := g.Meta.Blinds.Big
	pot := potSize(g)

	if g.Table.CurrentRound == game.RoundPreflop {
		switch poker.CategorizeHoleCards(s.HoleCards[0], s.HoleCards[1]) {
		case poker.CategoryPremium:
			if o.stack <= 20*bb || a.rng.Float64() < 0.3 {
				return o.first("aggressive shove with premium hand", game.AllIn)
			}
			return o.raise(3*g.Table.CurrentBet+pot, "aggressive big raise")
		case poker.CategoryStrong, poker.CategoryMedium:
			if o.toCall <= 4*bb {
				return o.raise(o.minRaise+pot/2, "aggressive raise")
			}
			return o.first("aggressive call", game.Call, game.Check)
		case poker.CategoryWeak:
			if o.toCall <= 2*bb {
				return o.first("aggressive limp", game.Check, game.Call)
			}
		default:
			if o.toCall == 0 {
				return o.first("aggressive free look", game.Check)
			}
			if a.rng.Float64() < 0.15 {
				return o.raise(o.minRaise, "aggressive steal")
			}
		}
		return o.first("aggressive fold", game.Check, game.Fold)
	}

	cards := slices.Concat(s.HoleCards[:], g.Table.CommunityCards)
	hand, err := evaluator.Evaluate(cards)
	if err != nil {
		a.logger.Warn("Failed to evaluate hand", "player", s.PlayerID, "error", err)
		return o.first("aggressive evaluation failed", game.Check, game.Fold)
	}

	switch cat := hand.Value.Category; {
	case cat >= evaluator.TwoPair:
		return o.raise(pot, "aggressive pot bet with "+cat.String())
	case cat == evaluator.OnePair:
		if o.toCall == 0 || a.rng.Float64() < 0.5 {
			return o.raise(pot/2, "aggressive half pot with a pair")
		}
		return o.first("aggressive call with a pair", game.Call, game.Check)
	}

	if o.toCall == 0 && a.rng.Float64() < 0.35 {
		return o.raise(pot*2/3, "aggressive bluff")
	}
	if o.toCall > 0 && o.toCall <= pot/4 {
		return o.first("aggressive float", game.Call)
	}
	return o.first("aggressive give up", game.Check, game.Fold)
}
