package table

import (
	rand "math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/lox/holdem-engine/internal/game"
	"github.com/lox/holdem-engine/poker"
)

// Config controls how the service drives tables.
type Config struct {
	// TurnTimeout is how long a player has to act. Zero disables turn timers.
	TurnTimeout time.Duration
	// AutoStart deals the next hand as soon as one settles.
	AutoStart bool
	// SitOutAfterMissed marks a seat away after this many timed-out turns. Zero
	// disables.
	SitOutAfterMissed int
	// PauseAfterTimeouts pauses the table after this many consecutive timeouts
	// across all seats. Zero disables.
	PauseAfterTimeouts int
	// AutoCloseAfter ends a table after this long without a hand starting. Zero
	// disables.
	AutoCloseAfter time.Duration
	// RunItTwiceWindow holds an eligible all-in showdown this long so the two
	// players can agree to run it twice. Zero settles immediately.
	RunItTwiceWindow time.Duration
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{
		TurnTimeout:       30 * time.Second,
		AutoStart:         true,
		SitOutAfterMissed: 2,
	}
}

// Scheduler arms timers that call back into the service.
type Scheduler interface {
	ScheduleTurn(gameID, turnID string, deadline time.Time)
	ScheduleAutoClose(gameID, closeID string, at time.Time)
	CancelTurn(gameID string)
	Cancel(gameID string)
}

// Notifier receives committed state. GameUpdated is only ever given public
// views; hole cards go to their owner through HoleCardsDealt.
type Notifier interface {
	GameUpdated(g *game.Game)
	HoleCardsDealt(gameID string, hand int, playerID string, cards [2]poker.Card)
}

// Notifiers fans every notification out to each listener in order.
type Notifiers []Notifier

func (ns Notifiers) GameUpdated(g *game.Game) {
	for _, n := range ns {
		n.GameUpdated(g)
	}
}

func (ns Notifiers) HoleCardsDealt(gameID string, hand int, playerID string, cards [2]poker.Card) {
	for _, n := range ns {
		n.HoleCardsDealt(gameID, hand, playerID, cards)
	}
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used for turn deadlines.
func WithClock(clock quartz.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// WithScheduler sets the timer backend.
func WithScheduler(sched Scheduler) Option {
	return func(s *Service) { s.sched = sched }
}

// WithNotifier sets the state listener.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notify = n }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) { s.logger = logger.WithPrefix("table") }
}

// WithRand sets the shuffle source.
func WithRand(rng *rand.Rand) Option {
	return func(s *Service) { s.rng = rng }
}

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

// WithIDs replaces the uuid generator used for game, turn and auto-close ids.
func WithIDs(next func() string) Option {
	return func(s *Service) { s.newID = next }
}

func newUUID() string { return uuid.NewString() }

type nopScheduler struct{}

func (nopScheduler) ScheduleTurn(string, string, time.Time)      {}
func (nopScheduler) ScheduleAutoClose(string, string, time.Time) {}
func (nopScheduler) CancelTurn(string)                           {}
func (nopScheduler) Cancel(string)                               {}

type nopNotifier struct{}

func (nopNotifier) GameUpdated(*game.Game)                             {}
func (nopNotifier) HoleCardsDealt(string, int, string, [2]poker.Card) {}
