package table

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/holdem-engine/internal/game"
	"github.com/lox/holdem-engine/internal/randutil"
	"github.com/lox/holdem-engine/internal/scheduler"
	"github.com/lox/holdem-engine/internal/store"
)

func TestSecondPlayerStartsHand(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultConfig())
	f.table(t, 1000, 1000)

	g := f.get(t)
	assert.Equal(t, 1, g.HandNumber)
	assert.Equal(t, game.RoundPreflop, g.Table.CurrentRound)
	assert.Equal(t, "p0", g.Table.CurrentTurn, "heads-up dealer acts first preflop")
	require.NotEmpty(t, g.Table.CurrentTurnID)

	turn := f.sched.lastTurn(t)
	assert.Equal(t, g.Table.CurrentTurnID, turn.token)
	assert.Equal(t, f.clock.Now().Add(30*time.Second), turn.at)
	assert.Equal(t, turn.at, g.Table.TurnDeadline)

	for _, id := range []string{"p0", "p1"} {
		stored, err := f.holes.Get(context.Background(), "t1", 1, id)
		require.NoError(t, err)
		assert.Equal(t, stored, f.notify.holes[id])
	}
	for _, v := range f.notify.views {
		assert.Empty(t, v.Table.Deck, "notifications must not carry the deck")
	}
}

func TestCreateRejectsBadMeta(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultConfig())
	meta := testMeta
	meta.Blinds = game.Blinds{Small: 10, Big: 5}
	_, err := f.svc.Create(context.Background(), "", meta)
	require.Error(t, err)
}

func TestSitFirstOpenSeat(t *testing.T) {
	t.Parallel()
	f := newFixture(t, noAutoStart())
	ctx := context.Background()
	_, err := f.svc.Create(ctx, "t1", testMeta)
	require.NoError(t, err)

	_, err = f.svc.Sit(ctx, "t1", "a", "A", 2, 500)
	require.NoError(t, err)
	out, err := f.svc.Sit(ctx, "t1", "b", "B", -1, 500)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Game.SeatByPlayer("b").Number)

	_, err = f.svc.Sit(ctx, "t1", "c", "C", 2, 500)
	assert.Equal(t, game.CodeSeatUnavailable, game.CodeOf(err))
	_, err = f.svc.Sit(ctx, "t1", "c", "C", 1, 0)
	assert.Equal(t, game.CodeInvalidBuyIn, game.CodeOf(err))
	assert.Equal(t, game.RoundWaiting, f.get(t).Table.CurrentRound)
}

func TestStaleActionIsIgnored(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultConfig())
	f.table(t, 1000, 1000)
	ctx := context.Background()

	before := f.get(t)
	out, err := f.svc.SubmitAction(ctx, "t1", "p0", "not-the-turn", game.Action{Kind: game.Call})
	require.NoError(t, err)
	assert.True(t, out.Stale)
	assert.Equal(t, before.Version, f.get(t).Version)

	oldTurn := before.Table.CurrentTurnID
	f.act(t, game.Call, 0)
	g := f.get(t)
	assert.Equal(t, "p1", g.Table.CurrentTurn)
	assert.NotEqual(t, oldTurn, g.Table.CurrentTurnID)

	out, err = f.svc.SubmitAction(ctx, "t1", "p0", oldTurn, game.Action{Kind: game.Fold})
	require.NoError(t, err)
	assert.True(t, out.Stale)

	out, err = f.svc.HandleTimeout(ctx, "t1", oldTurn)
	require.NoError(t, err)
	assert.True(t, out.Stale)
	assert.Equal(t, g.Version, f.get(t).Version)
}

func TestWrongPlayerWithCurrentTurnID(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultConfig())
	f.table(t, 1000, 1000)

	g := f.get(t)
	_, err := f.svc.SubmitAction(context.Background(), "t1", "p1", g.Table.CurrentTurnID, game.Action{Kind: game.Check})
	require.ErrorIs(t, err, game.ErrNotYourTurn)
}

func TestTimeoutFoldsWhenFacingBet(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultConfig())
	f.table(t, 1000, 1000)

	f.timeout(t)

	g := f.get(t)
	require.NotNil(t, g.LastHand)
	assert.Equal(t, 1, g.LastHand.HandNumber)
	assert.True(t, g.LastHand.WonByFold)
	assert.Equal(t, map[string]int{"p1": 15}, g.LastHand.Winnings)
	assert.Equal(t, 1, g.SeatByPlayer("p0").MissedTurns)

	assert.Equal(t, 2, g.HandNumber, "next hand starts automatically")
	assert.Equal(t, "p1", g.Table.CurrentTurn)
	assert.Equal(t, 2000, g.ChipsInPlay())

	_, err := f.holes.GetAll(context.Background(), "t1", 1)
	assert.ErrorIs(t, err, store.ErrNotFound, "settled hole cards are discarded")
}

func TestTimeoutChecksWhenLegal(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultConfig())
	f.table(t, 1000, 1000)

	f.act(t, game.Call, 0)
	f.timeout(t)

	g := f.get(t)
	assert.Equal(t, game.RoundFlop, g.Table.CurrentRound)
	assert.Len(t, g.Table.CommunityCards, 3)
	assert.Equal(t, "p1", g.Table.CurrentTurn)
	assert.Equal(t, 1, g.Table.ConsecutiveTimeouts)
	assert.Equal(t, 1, g.SeatByPlayer("p1").MissedTurns)

	f.act(t, game.Check, 0)
	g = f.get(t)
	assert.Equal(t, 0, g.Table.ConsecutiveTimeouts)
	assert.Equal(t, 0, g.SeatByPlayer("p1").MissedTurns)
}

func TestSitOutAfterMissedTurns(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.SitOutAfterMissed = 2
	f := newFixture(t, cfg)
	f.table(t, 1000, 1000)

	// p0 is first to act in hands 1 and 3, p1 in hand 2.
	for range 3 {
		f.timeout(t)
	}

	g := f.get(t)
	assert.Equal(t, 3, g.HandNumber)
	assert.Equal(t, game.RoundWaiting, g.Table.CurrentRound, "one active player left")
	assert.True(t, g.SeatByPlayer("p0").Away)
	assert.False(t, g.SeatByPlayer("p1").Away)
	assert.Equal(t, 3, g.Table.ConsecutiveTimeouts)

	_, err := f.svc.SitIn(context.Background(), "t1", "p0")
	require.NoError(t, err)
	g = f.get(t)
	assert.Equal(t, 4, g.HandNumber)
	assert.Equal(t, 0, g.SeatByPlayer("p0").MissedTurns)
}

func TestPauseAfterConsecutiveTimeouts(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.SitOutAfterMissed = 0
	cfg.PauseAfterTimeouts = 2
	f := newFixture(t, cfg)
	f.table(t, 1000, 1000)

	f.timeout(t)
	f.timeout(t)

	g := f.get(t)
	assert.Equal(t, game.StatusPaused, g.Status)
	assert.Equal(t, 2, g.HandNumber)
	assert.Equal(t, game.RoundWaiting, g.Table.CurrentRound, "paused tables do not deal")

	_, err := f.svc.Resume(context.Background(), "t1")
	require.NoError(t, err)
	g = f.get(t)
	assert.Equal(t, game.StatusPlaying, g.Status)
	assert.Equal(t, 3, g.HandNumber)
	assert.Equal(t, 0, g.Table.ConsecutiveTimeouts)
}

func TestPauseAndResume(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultConfig())
	f.table(t, 1000, 1000)
	ctx := context.Background()

	turnID := f.get(t).Table.CurrentTurnID
	_, err := f.svc.Pause(ctx, "t1")
	require.NoError(t, err)

	_, err = f.svc.SubmitAction(ctx, "t1", "p0", turnID, game.Action{Kind: game.Call})
	assert.Equal(t, game.CodeInvalidAction, game.CodeOf(err))

	out, err := f.svc.HandleTimeout(ctx, "t1", turnID)
	require.NoError(t, err)
	assert.True(t, out.Stale, "timeouts are ignored while paused")

	_, err = f.svc.Resume(ctx, "t1")
	require.NoError(t, err)
	g := f.get(t)
	assert.Equal(t, "p0", g.Table.CurrentTurn)
	assert.NotEqual(t, turnID, g.Table.CurrentTurnID)
	assert.Equal(t, g.Table.CurrentTurnID, f.sched.lastTurn(t).token)

	out, err = f.svc.SubmitAction(ctx, "t1", "p0", turnID, game.Action{Kind: game.Call})
	require.NoError(t, err)
	assert.True(t, out.Stale, "pre-pause token is stale after resume")

	_, err = f.svc.Resume(ctx, "t1")
	assert.Equal(t, game.CodeInvalidAction, game.CodeOf(err))
}

func TestAutoClose(t *testing.T) {
	t.Parallel()
	cfg := noAutoStart()
	cfg.AutoCloseAfter = 5 * time.Minute
	f := newFixture(t, cfg)
	f.table(t, 1000, 1000)
	ctx := context.Background()

	first := f.sched.lastClose(t)
	assert.Equal(t, f.clock.Now().Add(5*time.Minute), first.at)

	out, err := f.svc.HandleAutoClose(ctx, "t1", "bogus")
	require.NoError(t, err)
	assert.True(t, out.Stale)

	_, err = f.svc.StartHand(ctx, "t1")
	require.NoError(t, err)

	// Mid-hand the timer is re-armed with a new token.
	out, err = f.svc.HandleAutoClose(ctx, "t1", first.token)
	require.NoError(t, err)
	require.False(t, out.Stale)
	assert.Equal(t, game.StatusPlaying, out.Game.Status)
	rearmed := f.sched.lastClose(t)
	assert.NotEqual(t, first.token, rearmed.token)

	f.act(t, game.Fold, 0)
	settled := f.sched.lastClose(t)
	assert.NotEqual(t, rearmed.token, settled.token, "settling a hand restarts the idle timer")

	out, err = f.svc.HandleAutoClose(ctx, "t1", rearmed.token)
	require.NoError(t, err)
	assert.True(t, out.Stale)

	out, err = f.svc.HandleAutoClose(ctx, "t1", settled.token)
	require.NoError(t, err)
	assert.Equal(t, game.StatusEnded, out.Game.Status)
	assert.Contains(t, f.sched.cancels, "t1")

	_, err = f.svc.Sit(ctx, "t1", "p9", "Late", 3, 100)
	assert.ErrorIs(t, err, ErrGameEnded)
	_, err = f.svc.StartHand(ctx, "t1")
	assert.Error(t, err)
}

func TestLeaveMidHandFoldsAndFrees(t *testing.T) {
	t.Parallel()
	f := newFixture(t, noAutoStart())
	f.table(t, 1000, 1000, 1000)
	ctx := context.Background()
	_, err := f.svc.StartHand(ctx, "t1")
	require.NoError(t, err)

	// Three-handed the dealer p0 acts first preflop; p2 leaves out of turn.
	g := f.get(t)
	require.Equal(t, "p0", g.Table.CurrentTurn)
	_, err = f.svc.Leave(ctx, "t1", "p2")
	require.NoError(t, err)

	g = f.get(t)
	require.NotNil(t, g.SeatByPlayer("p2"))
	assert.Equal(t, game.SeatFolded, g.SeatByPlayer("p2").Status)

	f.act(t, game.Fold, 0)
	g = f.get(t)
	assert.Nil(t, g.SeatByPlayer("p2"), "seat is freed when the hand settles")
	// p2 takes the 990 left behind their folded big blind.
	assert.Equal(t, 3000-990, g.ChipsInPlay())
}

func TestRunItTwiceAgreed(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.RunItTwiceWindow = 10 * time.Second
	f := newFixture(t, cfg)
	f.table(t, 1000, 1000)
	ctx := context.Background()

	f.act(t, game.AllIn, 0)
	f.act(t, game.Call, 0)

	g := f.get(t)
	require.Equal(t, game.RoundShowdown, g.Table.CurrentRound, "showdown is held for agreement")
	assert.Empty(t, g.Table.CurrentTurn)
	require.NotEmpty(t, g.Table.CurrentTurnID)
	assert.Equal(t, f.clock.Now().Add(10*time.Second), f.sched.lastTurn(t).at)

	out, err := f.svc.SubmitAction(ctx, "t1", "p0", g.Table.CurrentTurnID, game.Action{Kind: game.Check})
	require.NoError(t, err)
	assert.True(t, out.Stale, "no player owns the hold")

	_, err = f.svc.RunItTwice(ctx, "t1", []string{"p1", "p0"})
	require.NoError(t, err)

	g = f.get(t)
	require.NotNil(t, g.LastHand)
	require.NotNil(t, g.LastHand.Runouts)
	assert.Equal(t, 2000, g.LastHand.Runouts.OriginalPot)
	assert.Len(t, g.LastHand.Runouts.Runout1, 5)
	assert.Len(t, g.LastHand.Runouts.Runout2, 5)
	assert.Equal(t, 2000, g.ChipsInPlay())
}

func TestRunItTwiceWindowExpires(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.RunItTwiceWindow = 10 * time.Second
	f := newFixture(t, cfg)
	f.table(t, 1000, 1000)

	f.act(t, game.AllIn, 0)
	f.act(t, game.Call, 0)
	f.timeout(t)

	g := f.get(t)
	require.NotNil(t, g.LastHand)
	assert.Nil(t, g.LastHand.Runouts)
	assert.Len(t, g.LastHand.Board, 5)
	assert.Equal(t, 2000, g.ChipsInPlay())
	assert.Equal(t, 0, g.Table.ConsecutiveTimeouts+g.SeatByPlayer("p0").MissedTurns,
		"releasing the hold is not a missed turn")
}

func TestActionRacesTimeout(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultConfig())
	f.table(t, 1000, 1000)
	ctx := context.Background()
	turnID := f.get(t).Table.CurrentTurnID

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes []Outcome
	)
	record := func(out Outcome, err error) {
		defer wg.Done()
		assert.NoError(t, err)
		mu.Lock()
		outcomes = append(outcomes, out)
		mu.Unlock()
	}
	wg.Add(2)
	go func() { record(f.svc.SubmitAction(ctx, "t1", "p0", turnID, game.Action{Kind: game.Call})) }()
	go func() { record(f.svc.HandleTimeout(ctx, "t1", turnID)) }()
	wg.Wait()

	applied := 0
	for _, out := range outcomes {
		if !out.Stale {
			applied++
		}
	}
	assert.Equal(t, 1, applied, "exactly one of the racing triggers applies")
	assert.Equal(t, 2000, f.get(t).ChipsInPlay())
}

func TestRestoreReopensTurn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, DefaultConfig())
	f.table(t, 1000, 1000)
	before := f.get(t)

	// A second service over the same stores stands in for a restarted process.
	sched := &schedRecorder{}
	restarted := NewService(f.svc.games, f.holes,
		WithClock(f.clock),
		WithScheduler(sched),
		WithNotifier(f.notify),
		WithLogger(log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})),
		WithRand(randutil.New(7)),
		WithIDs(func() string { return "restored" }),
	)
	out, err := restarted.Restore(ctx, "t1")
	require.NoError(t, err)
	require.False(t, out.Stale)

	g := f.get(t)
	assert.Equal(t, before.HandNumber, g.HandNumber)
	assert.Equal(t, before.Table.CurrentTurn, g.Table.CurrentTurn)
	assert.Equal(t, "restored", g.Table.CurrentTurnID)

	turn := sched.lastTurn(t)
	assert.Equal(t, "restored", turn.token)
	assert.Equal(t, f.clock.Now().Add(30*time.Second), turn.at)

	stale, err := restarted.SubmitAction(ctx, "t1", g.Table.CurrentTurn, before.Table.CurrentTurnID, game.Action{Kind: game.Call})
	require.NoError(t, err)
	assert.True(t, stale.Stale, "tokens from before the restart are stale")

	_, err = restarted.SubmitAction(ctx, "t1", g.Table.CurrentTurn, "restored", game.Action{Kind: game.Call})
	require.NoError(t, err, "the restored hand still has its hole cards")
}

// countingHoles records how many times each hand's cards were stored.
type countingHoles struct {
	*store.MemoryHoleCardStore
	mu   sync.Mutex
	puts map[int]int
}

func (c *countingHoles) Put(ctx context.Context, gameID string, hand int, cards game.HoleCards) error {
	c.mu.Lock()
	c.puts[hand]++
	c.mu.Unlock()
	return c.MemoryHoleCardStore.Put(ctx, gameID, hand, cards)
}

func TestHandEndingActionRacesTimeout(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultConfig())
	holes := &countingHoles{MemoryHoleCardStore: f.holes, puts: map[int]int{}}
	f.svc.holes = holes
	f.table(t, 1000, 1000)
	ctx := context.Background()

	g := f.get(t)
	turnID := g.Table.CurrentTurnID
	first := g.Table.CurrentTurn

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := f.svc.SubmitAction(ctx, "t1", first, turnID, game.Action{Kind: game.Fold})
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := f.svc.HandleTimeout(ctx, "t1", turnID)
		assert.NoError(t, err)
	}()
	wg.Wait()

	g = f.get(t)
	require.Equal(t, 2, g.HandNumber)
	assert.Equal(t, 2000, g.ChipsInPlay())

	holes.mu.Lock()
	assert.Equal(t, 1, holes.puts[2], "only the committed deal is stored")
	holes.mu.Unlock()

	stored, err := f.holes.GetAll(ctx, "t1", 2)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for playerID, cards := range stored {
		for _, c := range cards {
			assert.False(t, g.Table.Deck.Contains(c), "%s holds %s which is still in the deck", playerID, c)
			assert.NotContains(t, g.Table.CommunityCards, c)
		}
		f.notify.mu.Lock()
		assert.Equal(t, cards, f.notify.holes[playerID], "players were shown the stored cards")
		f.notify.mu.Unlock()
	}

	_, err = f.holes.GetAll(ctx, "t1", 1)
	assert.ErrorIs(t, err, store.ErrNotFound, "settled hand is discarded")
}

// failingHoles fails Put for a hand a set number of times.
type failingHoles struct {
	*store.MemoryHoleCardStore
	mu       sync.Mutex
	failures map[int]int
}

func (h *failingHoles) Put(ctx context.Context, gameID string, hand int, cards game.HoleCards) error {
	h.mu.Lock()
	fail := h.failures[hand] > 0
	if fail {
		h.failures[hand]--
	}
	h.mu.Unlock()
	if fail {
		return errors.New("connection reset")
	}
	return h.MemoryHoleCardStore.Put(ctx, gameID, hand, cards)
}

func TestHoleCardStoreRetried(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultConfig())
	f.svc.holes = &failingHoles{MemoryHoleCardStore: f.holes, failures: map[int]int{2: 1}}
	f.table(t, 1000, 1000)

	f.act(t, game.Fold, 0)

	g := f.get(t)
	require.Equal(t, 2, g.HandNumber)
	assert.Equal(t, game.RoundPreflop, g.Table.CurrentRound)
	assert.NotEmpty(t, g.Table.CurrentTurn)
	stored, err := f.holes.GetAll(context.Background(), "t1", 2)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestHandAbortedWhenHoleCardsCannotBeStored(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, DefaultConfig())
	f.svc.holes = &failingHoles{MemoryHoleCardStore: f.holes, failures: map[int]int{2: holeCardAttempts}}
	f.table(t, 1000, 1000)

	// The dealer folds the small blind; hand 2 is dealt but its cards are lost.
	f.act(t, game.Fold, 0)

	g := f.get(t)
	require.Equal(t, 2, g.HandNumber)
	assert.Equal(t, game.RoundWaiting, g.Table.CurrentRound)
	assert.Empty(t, g.Table.CurrentTurn)
	assert.Empty(t, g.Table.CurrentTurnID)
	require.NotNil(t, g.LastHand)
	assert.True(t, g.LastHand.Aborted)
	assert.Equal(t, 995, g.SeatByPlayer("p0").Chips)
	assert.Equal(t, 1005, g.SeatByPlayer("p1").Chips)
	assert.Equal(t, 2000, g.ChipsInPlay())

	out, err := f.svc.StartHand(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, out.Game.HandNumber)
	assert.NotEmpty(t, f.get(t).Table.CurrentTurn, "the table deals again once the store recovers")
}

func TestLostHoleCardsAbortShowdown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, DefaultConfig())
	f.table(t, 1000, 1000)
	require.NoError(t, f.holes.Discard(ctx, "t1", 1))

	f.act(t, game.AllIn, 0)
	f.act(t, game.Call, 0)

	g := f.get(t)
	require.NotNil(t, g.LastHand)
	assert.Equal(t, 1, g.LastHand.HandNumber)
	assert.True(t, g.LastHand.Aborted)
	assert.Equal(t, map[string]int{"p0": 1000, "p1": 1000}, g.LastHand.Winnings)
	assert.Equal(t, 2, g.HandNumber, "the next hand starts as usual")
	assert.Equal(t, 2000, g.ChipsInPlay())
}

func TestFoldWinSettlesWithoutHoleCards(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, DefaultConfig())
	f.table(t, 1000, 1000)
	require.NoError(t, f.holes.Discard(ctx, "t1", 1))

	f.act(t, game.Fold, 0)

	g := f.get(t)
	require.NotNil(t, g.LastHand)
	assert.True(t, g.LastHand.WonByFold)
	assert.False(t, g.LastHand.Aborted)
	assert.Equal(t, map[string]int{"p1": 15}, g.LastHand.Winnings)
}

func TestSchedulerFiresTimeout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, DefaultConfig())
	sched := scheduler.New(f.clock, log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel}))
	t.Cleanup(sched.Stop)
	f.svc.sched = sched
	sched.SetHandler(f.svc)

	f.table(t, 1000, 1000)
	require.Equal(t, 1, f.get(t).HandNumber)

	f.clock.Advance(29 * time.Second).MustWait(ctx)
	assert.Equal(t, 1, f.get(t).HandNumber)

	f.clock.Advance(time.Second).MustWait(ctx)
	require.Eventually(t, func() bool { return f.get(t).HandNumber == 2 }, time.Second, 10*time.Millisecond)
	g := f.get(t)
	assert.True(t, g.LastHand.WonByFold)
	assert.Equal(t, "p1", g.Table.CurrentTurn)
}
