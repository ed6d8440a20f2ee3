package bot

import (
	rand "math/rand/v2"

	"github.com/charmbracelet/log"

	"github.com/lox/holdem-engine/internal/game"
)

// RandBot is a simple bot that makes uniform random legal actions
type RandBot struct {
	rng    *rand.Rand
	logger *log.Logger
}

// NewRandBot creates a new RandBot instance
func NewRandBot(rng *rand.Rand, logger *log.Logger) *RandBot {
	return &RandBot{rng: rng, logger: logger}
}

func (r *RandBot) MakeDecision(s State) Decision {
	o := optionsFor(s)
	if len(o.kinds) == 0 {
		return Decision{Action: game.Action{Kind: game.Fold}, Reasoning: "rand-bot no valid actions"}
	}

	kind := o.kinds[r.rng.IntN(len(o.kinds))]
	if kind != game.Raise {
		return Decision{Action: game.Action{Kind: kind}, Reasoning: "rand-bot random action"}
	}

	// Raises pick a random amount between the minimum and the whole stack.
	amount := o.minRaise
	if o.stack > o.minRaise {
		amount += r.rng.IntN(o.stack - o.minRaise + 1)
	}
	return Decision{Action: game.Action{Kind: game.Raise, Amount: amount}, Reasoning: "rand-bot random raise"}
}
