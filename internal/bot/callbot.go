package bot

import (
	"github.com/charmbracelet/log"

	"github.com/lox/holdem-engine/internal/game"
)

// CallBot checks or calls every street and never raises. A stack too short to
// call goes all-in instead.
type CallBot struct {
	logger *log.Logger
}

// NewCallBot creates a new CallBot instance
func NewCallBot(logger *log.Logger) *CallBot {
	return &CallBot{logger: logger}
}

func (c *CallBot) MakeDecision(s State) Decision {
	o := optionsFor(s)
	if o.has(game.Call) || o.has(game.Check) {
		return o.first("call-bot calling", game.Check, game.Call)
	}
	return o.first("call-bot shoving short stack", game.AllIn)
}
