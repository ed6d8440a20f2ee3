// Package table drives games on behalf of players and timers.
//
// Every operation is a pure transform run inside store.GameStore.Update, so a
// player action and a timeout racing for the same turn resolve by version: the
// loser is retried against the committed game, where its turn id no longer
// matches and it becomes a stale no-op. Side effects (storing and discarding
// hole cards, notifications, timers) run only after a commit.
package table

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/holdem-engine/internal/game"
	"github.com/lox/holdem-engine/internal/randutil"
	"github.com/lox/holdem-engine/internal/store"
	"github.com/lox/holdem-engine/poker"
)

// maxChainedHands caps how many hands a single operation may auto-start, for
// tables where every hand is decided by the blinds alone.
const maxChainedHands = 8

// holeCardAttempts bounds how often a deal's hole cards are written before the
// hand is called off.
const holeCardAttempts = 3

// ErrGameEnded is returned for seating and hand operations on a closed table.
var ErrGameEnded = &game.Error{Code: game.CodeInvalidAction, Message: "game has ended"}

var errPaused = &game.Error{Code: game.CodeInvalidAction, Message: "game is paused"}

// Outcome is the result of an operation that may have been superseded.
type Outcome struct {
	// Game is the public view of the committed game.
	Game *game.Game
	// Stale is set when the turn or timer token no longer matched and nothing
	// changed.
	Stale bool
}

// Service runs tables held in a GameStore.
type Service struct {
	games  store.GameStore
	holes  store.HoleCardStore
	clock  quartz.Clock
	sched  Scheduler
	notify Notifier
	logger *log.Logger
	cfg    Config
	newID  func() string

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewService returns a service over the given stores.
func NewService(games store.GameStore, holes store.HoleCardStore, opts ...Option) *Service {
	s := &Service{
		games:  games,
		holes:  holes,
		clock:  quartz.NewReal(),
		sched:  nopScheduler{},
		notify: nopNotifier{},
		logger: log.Default().WithPrefix("table"),
		cfg:    DefaultConfig(),
		newID:  newUUID,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = randutil.NewSecure()
	}
	return s
}

// Config returns the service settings.
func (s *Service) Config() Config { return s.cfg }

// Create stores a new empty table. An empty id is replaced by a uuid.
func (s *Service) Create(ctx context.Context, id string, meta game.Meta) (*game.Game, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	if id == "" {
		id = s.newID()
	}
	g := game.New(id, meta)
	if s.cfg.AutoCloseAfter > 0 {
		g.AutoCloseID = s.newID()
	}
	if err := s.games.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("create game %s: %w", id, err)
	}

	s.logger.Info("Table created", "game", id, "seats", meta.MaxPlayers,
		"blinds", fmt.Sprintf("%d/%d", meta.Blinds.Small, meta.Blinds.Big))
	if g.AutoCloseID != "" {
		s.sched.ScheduleAutoClose(id, g.AutoCloseID, s.clock.Now().Add(s.cfg.AutoCloseAfter))
	}
	return game.PublicView(g), nil
}

// Get returns the full stored game, deck included. It is for trusted callers;
// anything shown to players must go through game.PublicView.
func (s *Service) Get(ctx context.Context, gameID string) (*game.Game, error) {
	return s.games.Get(ctx, gameID)
}

// HoleCards returns playerID's cards for the hand in progress.
func (s *Service) HoleCards(ctx context.Context, gameID, playerID string) ([2]poker.Card, error) {
	g, err := s.games.Get(ctx, gameID)
	if err != nil {
		return [2]poker.Card{}, err
	}
	if g.Table.CurrentRound == game.RoundWaiting {
		return [2]poker.Card{}, fmt.Errorf("no hand in progress: %w", store.ErrNotFound)
	}
	return s.holes.Get(ctx, gameID, g.HandNumber, playerID)
}

// Sit seats a player. A negative seat takes the first open one.
func (s *Service) Sit(ctx context.Context, gameID, playerID, name string, seat, buyIn int) (Outcome, error) {
	return s.update(ctx, gameID, func(g *game.Game, fx *effects) (*game.Game, error) {
		if g.Status == game.StatusEnded {
			return nil, ErrGameEnded
		}
		number := seat
		if number < 0 {
			if number = game.FirstOpenSeat(g); number < 0 {
				return nil, &game.Error{Code: game.CodeSeatUnavailable, Message: "table is full"}
			}
		}
		next, err := game.SitDown(g, number, playerID, name, buyIn)
		if err != nil {
			return nil, err
		}
		s.logger.Info("Player seated", "game", g.ID, "player", playerID, "seat", number, "chips", buyIn)
		return s.progress(ctx, next, fx)
	})
}

// Leave removes a player, folding them first if they are in the hand.
func (s *Service) Leave(ctx context.Context, gameID, playerID string) (Outcome, error) {
	return s.update(ctx, gameID, func(g *game.Game, fx *effects) (*game.Game, error) {
		next, err := game.Leave(g, playerID)
		if err != nil {
			return nil, err
		}
		s.logger.Info("Player left", "game", g.ID, "player", playerID)
		return s.progress(ctx, next, fx)
	})
}

// SitOut keeps a seat out of the following hands.
func (s *Service) SitOut(ctx context.Context, gameID, playerID string) (Outcome, error) {
	return s.setAway(ctx, gameID, playerID, true)
}

// SitIn returns an away seat to play from the next hand.
func (s *Service) SitIn(ctx context.Context, gameID, playerID string) (Outcome, error) {
	return s.setAway(ctx, gameID, playerID, false)
}

func (s *Service) setAway(ctx context.Context, gameID, playerID string, away bool) (Outcome, error) {
	return s.update(ctx, gameID, func(g *game.Game, fx *effects) (*game.Game, error) {
		next, err := game.SetAway(g, playerID, away)
		if err != nil {
			return nil, err
		}
		return s.progress(ctx, next, fx)
	})
}

// StartHand deals a hand on a waiting table.
func (s *Service) StartHand(ctx context.Context, gameID string) (Outcome, error) {
	return s.update(ctx, gameID, func(g *game.Game, fx *effects) (*game.Game, error) {
		next, err := s.deal(g, fx)
		if err != nil {
			return nil, err
		}
		return s.progress(ctx, next, fx)
	})
}

// SubmitAction applies a player's action for the turn identified by turnID. An
// action for a turn that has already moved on is reported as stale, not as an
// error.
func (s *Service) SubmitAction(ctx context.Context, gameID, playerID, turnID string, action game.Action) (Outcome, error) {
	return s.update(ctx, gameID, func(g *game.Game, fx *effects) (*game.Game, error) {
		if g.Status == game.StatusPaused {
			return nil, errPaused
		}
		if turnID == "" || turnID != g.Table.CurrentTurnID || g.Table.CurrentTurn == "" {
			fx.stale = true
			return nil, nil
		}
		next, err := game.ApplyAction(g, playerID, action)
		if err != nil {
			return nil, err
		}

		next.Table.ConsecutiveTimeouts = 0
		next.SeatByPlayer(playerID).MissedTurns = 0
		s.logger.Debug("Action", "game", g.ID, "hand", g.HandNumber, "player", playerID, "action", action)
		return s.progress(ctx, next, fx)
	})
}

// HandleTimeout plays the default action for an expired turn: check when legal,
// otherwise fold. Timeouts are ignored while the table is not playing.
func (s *Service) HandleTimeout(ctx context.Context, gameID, turnID string) (Outcome, error) {
	return s.update(ctx, gameID, func(g *game.Game, fx *effects) (*game.Game, error) {
		if g.Status != game.StatusPlaying || turnID == "" || turnID != g.Table.CurrentTurnID {
			fx.stale = true
			return nil, nil
		}

		if g.Table.CurrentTurn == "" {
			// A held showdown nobody agreed to run twice.
			g.Table.CurrentTurnID = ""
			fx.release = true
			return s.progress(ctx, g, fx)
		}

		playerID := g.Table.CurrentTurn
		action := game.TimeoutAction(g, playerID)
		next, err := game.ApplyAction(g, playerID, action)
		if err != nil {
			return nil, err
		}

		seat := next.SeatByPlayer(playerID)
		seat.MissedTurns++
		if s.cfg.SitOutAfterMissed > 0 && seat.MissedTurns >= s.cfg.SitOutAfterMissed && !seat.Away {
			seat.Away = true
			s.logger.Info("Player sitting out after missed turns", "game", g.ID, "player", playerID, "missed", seat.MissedTurns)
		}

		next.Table.ConsecutiveTimeouts++
		if n := s.cfg.PauseAfterTimeouts; n > 0 && next.Table.ConsecutiveTimeouts >= n {
			next.Status = game.StatusPaused
			s.logger.Warn("Pausing table after consecutive timeouts", "game", g.ID, "timeouts", next.Table.ConsecutiveTimeouts)
		}

		s.logger.Info("Turn timed out", "game", g.ID, "hand", g.HandNumber, "player", playerID, "action", action)
		return s.progress(ctx, next, fx)
	})
}

// Pause stops the table: actions are refused and timers ignored until Resume.
func (s *Service) Pause(ctx context.Context, gameID string) (Outcome, error) {
	return s.update(ctx, gameID, func(g *game.Game, fx *effects) (*game.Game, error) {
		if g.Status != game.StatusPlaying && g.Status != game.StatusWaiting {
			return nil, &game.Error{Code: game.CodeInvalidAction, Message: fmt.Sprintf("cannot pause a %s game", g.Status)}
		}
		g.Status = game.StatusPaused
		s.logger.Info("Table paused", "game", g.ID)
		return g, nil
	})
}

// Resume restarts a paused table. The current turn is reopened with a fresh
// turn id and deadline, so tokens issued before the pause go stale.
func (s *Service) Resume(ctx context.Context, gameID string) (Outcome, error) {
	return s.update(ctx, gameID, func(g *game.Game, fx *effects) (*game.Game, error) {
		if g.Status != game.StatusPaused {
			return nil, &game.Error{Code: game.CodeInvalidAction, Message: "game is not paused"}
		}
		g.Status = game.StatusPlaying
		g.Table.ConsecutiveTimeouts = 0
		g.Table.CurrentTurnID = ""
		g.Table.TurnDeadline = time.Time{}
		s.logger.Info("Table resumed", "game", g.ID)
		return s.progress(ctx, g, fx)
	})
}

// Restore re-arms a table loaded from a persistent store by a new process,
// whose timers were lost with the old one. A turn in progress is reopened
// with a fresh id and deadline, the auto-close timer is armed again and
// listeners are told about the table so bots pick up pending turns.
func (s *Service) Restore(ctx context.Context, gameID string) (Outcome, error) {
	return s.update(ctx, gameID, func(g *game.Game, fx *effects) (*game.Game, error) {
		if g.Status == game.StatusEnded {
			fx.stale = true
			return nil, nil
		}
		if s.cfg.AutoCloseAfter > 0 && g.Table.CurrentRound == game.RoundWaiting {
			if g.AutoCloseID == "" {
				g.AutoCloseID = s.newID()
			}
			fx.closeArmed = true
		}
		if g.Status == game.StatusPaused {
			return g, nil
		}
		g.Table.CurrentTurnID = ""
		g.Table.TurnDeadline = time.Time{}
		s.logger.Info("Table restored", "game", g.ID, "hand", g.HandNumber, "round", g.Table.CurrentRound)
		return s.progress(ctx, g, fx)
	})
}

// HandleAutoClose ends an idle table. A token that no longer matches is stale;
// a table in the middle of a hand gets a fresh timer instead.
func (s *Service) HandleAutoClose(ctx context.Context, gameID, closeID string) (Outcome, error) {
	return s.update(ctx, gameID, func(g *game.Game, fx *effects) (*game.Game, error) {
		if closeID == "" || closeID != g.AutoCloseID || g.Status == game.StatusEnded {
			fx.stale = true
			return nil, nil
		}
		if g.Table.CurrentRound != game.RoundWaiting {
			g.AutoCloseID = s.newID()
			fx.closeArmed = true
			return g, nil
		}
		g.Status = game.StatusEnded
		g.AutoCloseID = ""
		fx.cancel = true
		s.logger.Info("Table closed", "game", g.ID, "hands", g.HandNumber)
		return g, nil
	})
}

// RunItTwice deals the rest of the board twice for the two all-in players and
// settles both runouts.
func (s *Service) RunItTwice(ctx context.Context, gameID string, playerIDs []string) (Outcome, error) {
	return s.update(ctx, gameID, func(g *game.Game, fx *effects) (*game.Game, error) {
		if g.Status == game.StatusPaused {
			return nil, errPaused
		}
		next, runouts, err := game.RunItTwice(g, playerIDs)
		if err != nil {
			return nil, err
		}
		s.logger.Info("Running it twice", "game", g.ID, "hand", g.HandNumber,
			"runout1", poker.FormatCards(runouts.Runout1), "runout2", poker.FormatCards(runouts.Runout2))
		return s.progress(ctx, next, fx)
	})
}

// HandleTurnTimer implements scheduler.Handler.
func (s *Service) HandleTurnTimer(ctx context.Context, gameID, turnID string) error {
	_, err := s.HandleTimeout(ctx, gameID, turnID)
	return err
}

// HandleAutoCloseTimer implements scheduler.Handler.
func (s *Service) HandleAutoCloseTimer(ctx context.Context, gameID, closeID string) error {
	_, err := s.HandleAutoClose(ctx, gameID, closeID)
	return err
}

type dealt struct {
	hand  int
	holes game.HoleCards
}

// effects collects what to do once a transform has been committed.
type effects struct {
	stale      bool
	dealt      []dealt
	settled    []int
	turn       bool
	closeArmed bool
	cancel     bool
	// release settles a held showdown instead of waiting for agreement.
	release bool
	// noDeal stops auto-start after a hand was aborted.
	noDeal bool
}

func (s *Service) update(ctx context.Context, gameID string, fn func(*game.Game, *effects) (*game.Game, error)) (Outcome, error) {
	var fx effects
	g, err := s.games.Update(ctx, gameID, func(g *game.Game) (*game.Game, error) {
		fx = effects{}
		return fn(g, &fx)
	})
	if err != nil {
		var gerr *game.Error
		if !errors.As(err, &gerr) {
			s.logger.Error("Update failed", "game", gameID, "error", err)
		}
		return Outcome{}, err
	}
	if fx.stale {
		return Outcome{Game: game.PublicView(g), Stale: true}, nil
	}

	g = s.apply(ctx, g, &fx)
	return Outcome{Game: game.PublicView(g)}, nil
}

// apply runs the effects of a committed transform and returns the latest
// committed game, which differs from g only when the hand had to be aborted.
func (s *Service) apply(ctx context.Context, g *game.Game, fx *effects) *game.Game {
	// The commit has happened; a caller that went away must not cut the
	// bookkeeping short.
	ctx = context.WithoutCancel(ctx)

	for _, hand := range fx.settled {
		if err := s.holes.Discard(ctx, g.ID, hand); err != nil {
			s.logger.Warn("Failed to discard hole cards", "game", g.ID, "hand", hand, "error", err)
		}
	}

	// Cards are stored before anyone hears of the new turn, so the first
	// action of the hand can settle it.
	var live []dealt
	for _, d := range fx.dealt {
		if slices.Contains(fx.settled, d.hand) {
			continue
		}
		if err := s.putHoleCards(ctx, g.ID, d); err != nil {
			s.logger.Error("Failed to store hole cards, aborting hand", "game", g.ID, "hand", d.hand, "error", err)
			if aborted := s.abortHand(ctx, g.ID, d.hand); aborted != nil {
				return aborted
			}
			return g
		}
		live = append(live, d)
	}

	s.notify.GameUpdated(game.PublicView(g))
	for _, d := range live {
		for playerID, cards := range d.holes {
			s.notify.HoleCardsDealt(g.ID, d.hand, playerID, cards)
		}
	}

	if fx.cancel {
		s.sched.Cancel(g.ID)
		return g
	}
	switch {
	case g.Status != game.StatusPlaying || g.Table.CurrentTurnID == "":
		s.sched.CancelTurn(g.ID)
	case fx.turn && !g.Table.TurnDeadline.IsZero():
		s.sched.ScheduleTurn(g.ID, g.Table.CurrentTurnID, g.Table.TurnDeadline)
	}
	if fx.closeArmed {
		s.sched.ScheduleAutoClose(g.ID, g.AutoCloseID, s.clock.Now().Add(s.cfg.AutoCloseAfter))
	}
	return g
}

func (s *Service) putHoleCards(ctx context.Context, gameID string, d dealt) error {
	var err error
	for attempt := 0; attempt < holeCardAttempts; attempt++ {
		if err = s.holes.Put(ctx, gameID, d.hand, d.holes); err == nil {
			return nil
		}
	}
	return err
}

// abortHand refunds a committed hand whose hole cards could not be stored.
// The table is left waiting rather than dealing again into the same store.
func (s *Service) abortHand(ctx context.Context, gameID string, hand int) *game.Game {
	out, err := s.update(ctx, gameID, func(g *game.Game, fx *effects) (*game.Game, error) {
		if g.HandNumber != hand || g.Table.CurrentRound == game.RoundWaiting {
			fx.stale = true
			return nil, nil
		}
		fx.noDeal = true
		next, err := s.abort(g, fx)
		if err != nil {
			return nil, err
		}
		return s.progress(ctx, next, fx)
	})
	if err != nil {
		s.logger.Error("Failed to abort hand", "game", gameID, "hand", hand, "error", err)
		return nil
	}
	return out.Game
}
