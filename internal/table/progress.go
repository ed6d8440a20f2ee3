package table

import (
	"context"
	"errors"
	"fmt"

	"github.com/lox/holdem-engine/internal/game"
	"github.com/lox/holdem-engine/internal/store"
)

// progress drives g forward until it needs input: it advances completed
// streets, settles finished hands, auto-starts the next hand and stamps the
// next turn.
func (s *Service) progress(ctx context.Context, g *game.Game, fx *effects) (*game.Game, error) {
	var err error
	started := 0
	for {
		round := g.Table.CurrentRound
		switch {
		case game.IsBetting(g) && game.IsRoundComplete(g):
			if g, err = game.Advance(g); err != nil {
				return nil, err
			}

		case round == game.RoundShowdown && s.holdShowdown(g, fx):
			return g, nil

		case round == game.RoundShowdown || round == game.RoundLastMan:
			if g, err = s.settle(ctx, g, fx); err != nil {
				return nil, err
			}

		case round == game.RoundWaiting:
			if !s.cfg.AutoStart || fx.noDeal || started >= maxChainedHands || !canStart(g) {
				return g, nil
			}
			started++
			if g, err = s.deal(g, fx); err != nil {
				return nil, err
			}

		default:
			if g.Status == game.StatusPlaying && g.Table.CurrentTurn != "" && g.Table.CurrentTurnID == "" {
				s.beginTurn(g, fx)
			}
			return g, nil
		}
	}
}

// holdShowdown keeps an all-in heads-up showdown open for RunItTwiceWindow so
// the players can agree to run it twice. The hold is a turn with an id but no
// player; its timeout releases it.
func (s *Service) holdShowdown(g *game.Game, fx *effects) bool {
	if s.cfg.RunItTwiceWindow <= 0 || fx.release || !game.CanRunItTwice(g) {
		return false
	}
	if g.Table.CurrentTurnID == "" && g.Status == game.StatusPlaying {
		g.Table.CurrentTurnID = s.newID()
		g.Table.TurnDeadline = s.clock.Now().Add(s.cfg.RunItTwiceWindow)
		fx.turn = true
	}
	return true
}

func (s *Service) beginTurn(g *game.Game, fx *effects) {
	t := &g.Table
	t.CurrentTurnID = s.newID()
	if s.cfg.TurnTimeout > 0 {
		t.TurnDeadline = s.clock.Now().Add(s.cfg.TurnTimeout)
	}
	fx.turn = true
}

func (s *Service) deal(g *game.Game, fx *effects) (*game.Game, error) {
	if g.Status == game.StatusEnded {
		return nil, ErrGameEnded
	}
	s.rngMu.Lock()
	next, err := game.InitializeHand(g, s.rng)
	s.rngMu.Unlock()
	if err != nil {
		return nil, err
	}

	next, holes, err := game.DealHoleCards(next)
	if err != nil {
		return nil, err
	}
	// The transform may be retried or lose the commit, so the cards are only
	// stored by apply once this deal is the committed one.
	fx.dealt = append(fx.dealt, dealt{hand: next.HandNumber, holes: holes})

	s.logger.Info("Hand started", "game", next.ID, "hand", next.HandNumber,
		"dealer", next.Table.DealerSeat, "players", len(holes))
	return next, nil
}

func (s *Service) settle(ctx context.Context, g *game.Game, fx *effects) (*game.Game, error) {
	hand := g.HandNumber
	var holes game.HoleCards
	if g.InHandCount() > 1 {
		var err error
		holes, err = s.holeCardsFor(ctx, g, hand, fx)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// The hand cannot be shown down without its cards.
			s.logger.Error("Hole cards lost, aborting hand", "game", g.ID, "hand", hand, "error", err)
			return s.abort(g, fx)
		case err != nil:
			return nil, err
		}
	}

	var (
		next *game.Game
		err  error
	)
	if g.Table.RunItTwice != nil {
		next, err = game.SettleRunItTwice(g, holes)
	} else {
		next, err = game.Settle(g, holes)
	}
	if err != nil {
		s.logger.Error("Settle failed", "game", g.ID, "hand", hand, "error", err)
		return nil, err
	}
	fx.settled = append(fx.settled, hand)

	result := next.LastHand
	s.logger.Info("Hand settled", "game", g.ID, "hand", hand,
		"winnings", result.Winnings, "fold", result.WonByFold)

	if s.cfg.AutoCloseAfter > 0 {
		next.AutoCloseID = s.newID()
		fx.closeArmed = true
	}
	return next, nil
}

// abort refunds the hand in progress and returns the table to waiting.
func (s *Service) abort(g *game.Game, fx *effects) (*game.Game, error) {
	hand := g.HandNumber
	next, err := game.AbortHand(g)
	if err != nil {
		return nil, err
	}
	fx.settled = append(fx.settled, hand)
	s.logger.Warn("Hand aborted", "game", g.ID, "hand", hand, "refunds", next.LastHand.Winnings)

	if s.cfg.AutoCloseAfter > 0 {
		next.AutoCloseID = s.newID()
		fx.closeArmed = true
	}
	return next, nil
}

// holeCardsFor returns the cards of hand, preferring a deal made earlier in
// the same transform, which has not been stored yet.
func (s *Service) holeCardsFor(ctx context.Context, g *game.Game, hand int, fx *effects) (game.HoleCards, error) {
	for _, d := range fx.dealt {
		if d.hand == hand {
			return d.holes, nil
		}
	}
	holes, err := s.holes.GetAll(ctx, g.ID, hand)
	if err != nil {
		return nil, fmt.Errorf("load hole cards: %w", err)
	}
	return holes, nil
}

// canStart reports whether auto-start may deal: the table is live and at
// least two funded seats are not away.
func canStart(g *game.Game) bool {
	if g.Status != game.StatusPlaying && g.Status != game.StatusWaiting {
		return false
	}
	n := 0
	for _, s := range g.Seats {
		if s != nil && s.Chips > 0 && !s.Away {
			n++
		}
	}
	return n >= 2
}
