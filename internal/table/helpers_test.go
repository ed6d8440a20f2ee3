package table

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/lox/holdem-engine/internal/game"
	"github.com/lox/holdem-engine/internal/randutil"
	"github.com/lox/holdem-engine/internal/store"
	"github.com/lox/holdem-engine/poker"
)

var testMeta = game.Meta{
	MaxPlayers: 6,
	Blinds:     game.Blinds{Small: 5, Big: 10},
	MinBuyIn:   1,
	MaxBuyIn:   10000,
}

type timer struct {
	gameID string
	token  string
	at     time.Time
}

type schedRecorder struct {
	mu      sync.Mutex
	turns   []timer
	closes  []timer
	cancels []string
}

func (r *schedRecorder) ScheduleTurn(gameID, turnID string, deadline time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, timer{gameID, turnID, deadline})
}

func (r *schedRecorder) ScheduleAutoClose(gameID, closeID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes = append(r.closes, timer{gameID, closeID, at})
}

func (r *schedRecorder) CancelTurn(string) {}

func (r *schedRecorder) Cancel(gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels = append(r.cancels, gameID)
}

func (r *schedRecorder) lastTurn(t *testing.T) timer {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.turns, "no turn scheduled")
	return r.turns[len(r.turns)-1]
}

func (r *schedRecorder) lastClose(t *testing.T) timer {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.closes, "no auto-close scheduled")
	return r.closes[len(r.closes)-1]
}

type notifyRecorder struct {
	mu    sync.Mutex
	views []*game.Game
	holes map[string][2]poker.Card
}

func (n *notifyRecorder) GameUpdated(g *game.Game) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.views = append(n.views, g)
}

func (n *notifyRecorder) HoleCardsDealt(_ string, _ int, playerID string, cards [2]poker.Card) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.holes == nil {
		n.holes = make(map[string][2]poker.Card)
	}
	n.holes[playerID] = cards
}

type fixture struct {
	svc    *Service
	clock  *quartz.Mock
	sched  *schedRecorder
	notify *notifyRecorder
	holes  *store.MemoryHoleCardStore
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	var n atomic.Int64
	f := &fixture{
		clock:  quartz.NewMock(t),
		sched:  &schedRecorder{},
		notify: &notifyRecorder{},
		holes:  store.NewMemoryHoleCardStore(),
	}
	f.svc = NewService(store.NewMemoryGameStore(), f.holes,
		WithClock(f.clock),
		WithScheduler(f.sched),
		WithNotifier(f.notify),
		WithLogger(log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})),
		WithRand(randutil.New(42)),
		WithConfig(cfg),
		WithIDs(func() string { return fmt.Sprintf("id-%d", n.Add(1)) }),
	)
	return f
}

// table creates "t1" and seats p0..pn with the given stacks.
func (f *fixture) table(t *testing.T, stacks ...int) *game.Game {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.Create(ctx, "t1", testMeta)
	require.NoError(t, err)

	var out Outcome
	for i, chips := range stacks {
		out, err = f.svc.Sit(ctx, "t1", fmt.Sprintf("p%d", i), fmt.Sprintf("Player %d", i), i, chips)
		require.NoError(t, err)
	}
	return out.Game
}

func (f *fixture) get(t *testing.T) *game.Game {
	t.Helper()
	g, err := f.svc.Get(context.Background(), "t1")
	require.NoError(t, err)
	return g
}

func (f *fixture) act(t *testing.T, kind game.ActionKind, amount int) Outcome {
	t.Helper()
	g := f.get(t)
	out, err := f.svc.SubmitAction(context.Background(), "t1", g.Table.CurrentTurn, g.Table.CurrentTurnID,
		game.Action{Kind: kind, Amount: amount})
	require.NoError(t, err)
	require.False(t, out.Stale)
	return out
}

func (f *fixture) timeout(t *testing.T) Outcome {
	t.Helper()
	g := f.get(t)
	out, err := f.svc.HandleTimeout(context.Background(), "t1", g.Table.CurrentTurnID)
	require.NoError(t, err)
	require.False(t, out.Stale)
	return out
}

func noAutoStart() Config {
	cfg := DefaultConfig()
	cfg.AutoStart = false
	return cfg
}
