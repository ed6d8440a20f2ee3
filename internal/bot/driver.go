package bot

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/lox/holdem-engine/internal/game"
	"github.com/lox/holdem-engine/internal/table"
	"github.com/lox/holdem-engine/poker"
)

// Actor is the part of the table service a driver plays through.
type Actor interface {
	SubmitAction(ctx context.Context, gameID, playerID, turnID string, action game.Action) (table.Outcome, error)
	HoleCards(ctx context.Context, gameID, playerID string) ([2]poker.Card, error)
}

type turn struct {
	gameID   string
	playerID string
	turnID   string
	view     *game.Game
}

type seatKey struct {
	gameID   string
	playerID string
}

// Driver plays registered bots. It is a table.Notifier: on every update where
// a bot holds the turn it queues a decision, which Run makes on its own
// goroutine so the service is never re-entered from a notification.
type Driver struct {
	actor  Actor
	logger *log.Logger

	mu      sync.Mutex
	bots    map[seatKey]Strategy
	pending map[string]turn
	wake    chan struct{}
}

// NewDriver returns a driver acting through actor.
func NewDriver(actor Actor, logger *log.Logger) *Driver {
	return &Driver{
		actor:   actor,
		logger:  logger.WithPrefix("bot"),
		bots:    make(map[seatKey]Strategy),
		pending: make(map[string]turn),
		wake:    make(chan struct{}, 1),
	}
}

// Add registers playerID at gameID as a bot playing strategy.
func (d *Driver) Add(gameID, playerID string, strategy Strategy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bots[seatKey{gameID, playerID}] = strategy
}

// Remove stops playing for playerID.
func (d *Driver) Remove(gameID, playerID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.bots, seatKey{gameID, playerID})
}

// GameUpdated implements table.Notifier.
func (d *Driver) GameUpdated(g *game.Game) {
	t := g.Table
	if g.Status != game.StatusPlaying || t.CurrentTurn == "" || t.CurrentTurnID == "" {
		return
	}

	d.mu.Lock()
	_, ok := d.bots[seatKey{g.ID, t.CurrentTurn}]
	if ok {
		d.pending[g.ID] = turn{gameID: g.ID, playerID: t.CurrentTurn, turnID: t.CurrentTurnID, view: g}
	}
	d.mu.Unlock()

	if ok {
		select {
		case d.wake <- struct{}{}:
		default:
		}
	}
}

// HoleCardsDealt implements table.Notifier. Bots read their cards from the
// service when they act.
func (d *Driver) HoleCardsDealt(string, int, string, [2]poker.Card) {}

// Run makes queued decisions until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.wake:
		}

		for {
			t, strategy, ok := d.next()
			if !ok {
				break
			}
			d.play(ctx, t, strategy)
		}
	}
}

func (d *Driver) next() (turn, Strategy, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, t := range d.pending {
		delete(d.pending, id)
		if s, ok := d.bots[seatKey{t.gameID, t.playerID}]; ok {
			return t, s, true
		}
	}
	return turn{}, nil, false
}

func (d *Driver) play(ctx context.Context, t turn, strategy Strategy) {
	holes, err := d.actor.HoleCards(ctx, t.gameID, t.playerID)
	if err != nil {
		d.logger.Warn("No hole cards for bot", "game", t.gameID, "player", t.playerID, "error", err)
		return
	}

	decision := strategy.MakeDecision(State{Game: t.view, PlayerID: t.playerID, HoleCards: holes})
	d.logger.Debug("Bot decision made", "game", t.gameID, "player", t.playerID,
		"decision", decision.Action, "reasoning", decision.Reasoning)

	out, err := d.actor.SubmitAction(ctx, t.gameID, t.playerID, t.turnID, decision.Action)
	if err != nil {
		// Fall back to what a timeout would do rather than stall the table.
		fallback := game.TimeoutAction(t.view, t.playerID)
		d.logger.Error("Bot action rejected", "game", t.gameID, "player", t.playerID,
			"action", decision.Action, "fallback", fallback, "error", err)
		out, err = d.actor.SubmitAction(ctx, t.gameID, t.playerID, t.turnID, fallback)
		if err != nil {
			d.logger.Error("Bot fallback rejected", "game", t.gameID, "player", t.playerID, "error", err)
			return
		}
	}
	if out.Stale {
		d.logger.Debug("Bot action was stale", "game", t.gameID, "player", t.playerID)
	}
}
