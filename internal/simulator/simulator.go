// Package simulator plays seeded bot tables through the table service and
// checks that no chips are created or lost along the way.
package simulator

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/holdem-engine/internal/bot"
	"github.com/lox/holdem-engine/internal/game"
	"github.com/lox/holdem-engine/internal/randutil"
	"github.com/lox/holdem-engine/internal/statistics"
	"github.com/lox/holdem-engine/internal/store"
	"github.com/lox/holdem-engine/internal/table"
	"github.com/lox/holdem-engine/poker"
)

// maxSteps bounds the actions in a single hand before it is treated as hung.
const maxSteps = 1000

// Config holds configuration for running simulations
type Config struct {
	Tables int // Number of independent tables
	Hands  int // Hands per table; a table stops early once one player has every chip
	// Strategies assigns a bot strategy to each seat, in order. Its length is
	// the number of players per table.
	Strategies []string
	Meta       game.Meta
	BuyIn      int   // Starting stack; zero uses Meta.MaxBuyIn
	Seed       int64 // Table i shuffles with Seed+i
	Parallel   int   // Tables run at once; zero is unlimited
	Logger     *log.Logger
}

// DefaultMeta is a six-handed 1/2 table.
var DefaultMeta = game.Meta{
	MaxPlayers: 6,
	Blinds:     game.Blinds{Small: 1, Big: 2},
	MinBuyIn:   100,
	MaxBuyIn:   200,
}

// Result summarises a simulation.
type Result struct {
	Tables     int
	Hands      int // Hands played across all tables
	Completed  int // Tables that finished with a single player holding every chip
	Duration   time.Duration
	Strategies map[string]*statistics.Statistics
}

// Simulator runs poker hand simulations
type Simulator struct {
	config Config
}

// New creates a new simulator with the given configuration
func New(config Config) *Simulator {
	if config.Meta == (game.Meta{}) {
		config.Meta = DefaultMeta
	}
	if config.BuyIn == 0 {
		config.BuyIn = config.Meta.MaxBuyIn
	}
	if config.Logger == nil {
		config.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Simulator{config: config}
}

func (s *Simulator) validate() error {
	c := s.config
	if c.Tables < 1 || c.Hands < 1 {
		return fmt.Errorf("need at least one table and one hand, got %d tables and %d hands", c.Tables, c.Hands)
	}
	if n := len(c.Strategies); n < 2 || n > c.Meta.MaxPlayers {
		return fmt.Errorf("need between 2 and %d strategies, got %d", c.Meta.MaxPlayers, n)
	}
	for _, name := range c.Strategies {
		if _, err := bot.New(name, randutil.New(0), c.Logger); err != nil {
			return err
		}
	}
	return c.Meta.Validate()
}

// Run plays every table and returns the combined results. The first error
// from any table, including a chip conservation failure, cancels the rest.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &Result{Tables: s.config.Tables, Strategies: make(map[string]*statistics.Statistics)}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	if s.config.Parallel > 0 {
		g.SetLimit(s.config.Parallel)
	}
	for i := 0; i < s.config.Tables; i++ {
		g.Go(func() error {
			tr, err := s.runTable(ctx, i)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			result.Hands += tr.hands
			if tr.completed {
				result.Completed++
			}
			for name, st := range tr.stats {
				if result.Strategies[name] == nil {
					result.Strategies[name] = &statistics.Statistics{}
				}
				result.Strategies[name].Merge(st)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	for name, st := range result.Strategies {
		if err := st.Validate(); err != nil {
			return nil, fmt.Errorf("statistics for %s: %w", name, err)
		}
	}
	return result, nil
}

type tableResult struct {
	hands     int
	completed bool
	stats     map[string]*statistics.Statistics
}

type player struct {
	id       string
	seat     int
	name     string
	strategy bot.Strategy
}

func (s *Simulator) runTable(ctx context.Context, index int) (tableResult, error) {
	seed := s.config.Seed + int64(index)
	logger := s.config.Logger.With("table", index, "seed", seed)
	id := fmt.Sprintf("sim-%d", index)

	var next int
	svc := table.NewService(store.NewMemoryGameStore(), store.NewMemoryHoleCardStore(),
		table.WithConfig(table.Config{}),
		table.WithRand(randutil.New(seed)),
		table.WithLogger(logger),
		table.WithIDs(func() string { next++; return fmt.Sprintf("%s-%d", id, next) }),
	)
	if _, err := svc.Create(ctx, id, s.config.Meta); err != nil {
		return tableResult{}, err
	}

	botRng := randutil.New(^seed)
	players := make([]player, len(s.config.Strategies))
	for seat, name := range s.config.Strategies {
		strategy, err := bot.New(name, botRng, logger)
		if err != nil {
			return tableResult{}, err
		}
		p := player{id: fmt.Sprintf("p%d", seat), seat: seat, name: name, strategy: strategy}
		if _, err := svc.Sit(ctx, id, p.id, name, seat, s.config.BuyIn); err != nil {
			return tableResult{}, fmt.Errorf("seat %s: %w", p.id, err)
		}
		players[seat] = p
	}

	res := tableResult{stats: make(map[string]*statistics.Statistics)}
	total := s.config.BuyIn * len(players)
	bb := float64(s.config.Meta.Blinds.Big)

	for hand := 0; hand < s.config.Hands; hand++ {
		if err := ctx.Err(); err != nil {
			return tableResult{}, err
		}

		before, err := svc.Get(ctx, id)
		if err != nil {
			return tableResult{}, err
		}
		if before.Status == game.StatusCompleted {
			res.completed = true
			break
		}

		after, err := s.playHand(ctx, svc, id, players)
		if err != nil {
			return tableResult{}, fmt.Errorf("table %d hand %d: %w", index, hand+1, err)
		}
		if chips := after.ChipsInPlay(); chips != total {
			return tableResult{}, fmt.Errorf("table %d hand %d: chips in play %d, want %d", index, after.HandNumber, chips, total)
		}
		res.hands++

		last := after.LastHand
		pot := 0
		for _, won := range last.Winnings {
			pot += won
		}
		for _, p := range players {
			was, now := before.SeatByPlayer(p.id), after.SeatByPlayer(p.id)
			if was == nil || now == nil || was.Chips == 0 {
				continue
			}
			if res.stats[p.name] == nil {
				res.stats[p.name] = &statistics.Statistics{}
			}
			res.stats[p.name].Add(statistics.HandResult{
				NetBB:          float64(now.Chips-was.Chips) / bb,
				Seed:           seed,
				Seat:           p.seat,
				WentToShowdown: !last.WonByFold,
				PotBB:          float64(pot) / bb,
				Street:         streetReached(last.Board),
			})
		}
		if after.Status == game.StatusCompleted {
			res.completed = true
			break
		}
	}

	logger.Debug("Table finished", "hands", res.hands, "completed", res.completed)
	return res, nil
}

// playHand deals one hand and drives every turn until it settles.
func (s *Simulator) playHand(ctx context.Context, svc *table.Service, id string, players []player) (*game.Game, error) {
	out, err := svc.StartHand(ctx, id)
	if err != nil {
		return nil, err
	}
	g := out.Game
	hand := g.HandNumber

	byID := make(map[string]player, len(players))
	for _, p := range players {
		byID[p.id] = p
	}

	for steps := 0; g.Table.CurrentTurn != ""; steps++ {
		if steps == maxSteps {
			return nil, fmt.Errorf("hand %d did not finish after %d actions", hand, maxSteps)
		}
		p, ok := byID[g.Table.CurrentTurn]
		if !ok {
			return nil, fmt.Errorf("turn held by unknown player %q", g.Table.CurrentTurn)
		}
		holes, err := svc.HoleCards(ctx, id, p.id)
		if err != nil {
			return nil, err
		}

		decision := p.strategy.MakeDecision(bot.State{Game: g, PlayerID: p.id, HoleCards: holes})
		out, err = svc.SubmitAction(ctx, id, p.id, g.Table.CurrentTurnID, decision.Action)
		if err != nil {
			return nil, fmt.Errorf("%s (%s) chose %s: %w", p.id, p.name, decision.Action, err)
		}
		if out.Stale {
			return nil, fmt.Errorf("%s action went stale", p.id)
		}
		g = out.Game
	}

	if g.LastHand == nil || g.LastHand.HandNumber != hand {
		return nil, fmt.Errorf("hand %d stopped in %s without settling", hand, g.Table.CurrentRound)
	}
	return g, nil
}

func streetReached(board []poker.Card) game.Round {
	switch {
	case len(board) >= 5:
		return game.RoundRiver
	case len(board) == 4:
		return game.RoundTurn
	case len(board) >= 3:
		return game.RoundFlop
	default:
		return game.RoundPreflop
	}
}

// StrategyNames returns the strategies in r sorted by name.
func (r *Result) StrategyNames() []string {
	names := make([]string, 0, len(r.Strategies))
	for name := range r.Strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PrintSummary writes a plain-text report of r.
func PrintSummary(w io.Writer, r *Result) {
	fmt.Fprintf(w, "Tables: %d  Hands: %d  Completed: %d  Time: %s\n",
		r.Tables, r.Hands, r.Completed, r.Duration.Round(time.Millisecond))
	if r.Hands > 0 {
		fmt.Fprintf(w, "Speed: %.0f hands/sec\n", float64(r.Hands)/max(r.Duration.Seconds(), 1e-9))
	}
	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintf(w, "%-12s %8s %10s %10s %18s %8s\n", "strategy", "hands", "bb/hand", "stddev", "95% CI", "sd wins")
	for _, name := range r.StrategyNames() {
		st := r.Strategies[name]
		low, high := st.ConfidenceInterval95()
		fmt.Fprintf(w, "%-12s %8d %10.3f %10.2f %8.2f..%-8.2f %8d\n",
			name, st.Hands, st.Mean(), st.StdDev(), low, high, st.ShowdownWins)
	}
}
