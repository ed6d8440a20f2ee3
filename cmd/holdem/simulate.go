package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/lox/holdem-engine/internal/config"
	"github.com/lox/holdem-engine/internal/fileutil"
	"github.com/lox/holdem-engine/internal/game"
	"github.com/lox/holdem-engine/internal/randutil"
	"github.com/lox/holdem-engine/internal/simulator"
)

// SimulateCmd plays bot-only tables through the table service.
type SimulateCmd struct {
	Tables     int      `short:"t" default:"8" help:"Number of tables"`
	Hands      int      `short:"n" default:"1000" help:"Hands per table"`
	Strategies []string `short:"s" default:"call,random,aggressive,random,aggressive,call" help:"Strategy for each seat"`
	SmallBlind int      `default:"1" help:"Small blind"`
	BigBlind   int      `default:"2" help:"Big blind"`
	BuyIn      int      `default:"200" help:"Starting stack for every seat"`
	Seed       int64    `default:"0" help:"RNG seed (0 for random)"`
	Parallel   int      `short:"p" default:"0" help:"Tables run at once (0 for all)"`
	Output     string   `short:"o" type:"path" help:"Also write the results as JSON to this file"`
}

type strategyReport struct {
	Hands        int        `json:"hands"`
	BBPerHand    float64    `json:"bbPerHand"`
	StdDev       float64    `json:"stdDev"`
	CI95         [2]float64 `json:"ci95"`
	Median       float64    `json:"median"`
	ShowdownWins int        `json:"showdownWins"`
	FoldWins     int        `json:"foldWins"`
	BigPots      int        `json:"bigPots"`
}

type simulationReport struct {
	Seed       int64                     `json:"seed"`
	Tables     int                       `json:"tables"`
	Hands      int                       `json:"hands"`
	Completed  int                       `json:"completed"`
	Seconds    float64                   `json:"seconds"`
	Strategies map[string]strategyReport `json:"strategies"`
}

func newReport(seed int64, r *simulator.Result) simulationReport {
	rep := simulationReport{
		Seed:       seed,
		Tables:     r.Tables,
		Hands:      r.Hands,
		Completed:  r.Completed,
		Seconds:    r.Duration.Seconds(),
		Strategies: make(map[string]strategyReport, len(r.Strategies)),
	}
	for name, st := range r.Strategies {
		low, high := st.ConfidenceInterval95()
		rep.Strategies[name] = strategyReport{
			Hands:        st.Hands,
			BBPerHand:    st.Mean(),
			StdDev:       st.StdDev(),
			CI95:         [2]float64{low, high},
			Median:       st.Median(),
			ShowdownWins: st.ShowdownWins,
			FoldWins:     st.NonShowdownWins,
			BigPots:      st.BigPots,
		}
	}
	return rep
}

func (c *SimulateCmd) Run(cli *CLI) error {
	level := cli.LogLevel
	if level == "" {
		level = "warn"
	}
	logger, closeLog, err := setupLogger(level, "")
	if err != nil {
		return err
	}
	defer closeLog()

	for _, name := range c.Strategies {
		if !isStrategy(name) {
			return fmt.Errorf("unknown strategy %q (want one of %s)", name, strings.Join(config.Strategies, ", "))
		}
	}

	seed := c.Seed
	if seed == 0 {
		seed = randutil.Seed()
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	sim := simulator.New(simulator.Config{
		Tables:     c.Tables,
		Hands:      c.Hands,
		Strategies: c.Strategies,
		Meta: game.Meta{
			MaxPlayers: max(len(c.Strategies), 2),
			Blinds:     game.Blinds{Small: c.SmallBlind, Big: c.BigBlind},
			MinBuyIn:   c.BuyIn,
			MaxBuyIn:   c.BuyIn,
		},
		BuyIn:    c.BuyIn,
		Seed:     seed,
		Parallel: c.Parallel,
		Logger:   logger,
	})

	fmt.Println(titleStyle.Render(" ♠ ♥ Hold'em Simulation ♦ ♣ "))
	fmt.Printf("%s %d tables × %d hands, seed %d\n\n", headerStyle.Render("Running"), c.Tables, c.Hands, seed)

	result, err := sim.Run(ctx)
	if err != nil {
		return fmt.Errorf("simulation failed (seed %d): %w", seed, err)
	}

	simulator.PrintSummary(os.Stdout, result)
	fmt.Println()
	for _, name := range result.StrategyNames() {
		st := result.Strategies[name]
		fmt.Printf("%s %s bb/hand over %d hands\n", handStyle.Render(fmt.Sprintf("%-12s", name)), signed(st.Mean(), "%+.3f"), st.Hands)
	}
	fmt.Println()
	fmt.Println(winStyle.Render("✓ Chips conserved on every hand"))

	if c.Output != "" {
		if err := fileutil.WriteJSON(c.Output, newReport(seed, result)); err != nil {
			return err
		}
		fmt.Printf("%s %s\n", headerStyle.Render("Wrote"), c.Output)
	}
	return nil
}

func isStrategy(name string) bool {
	for _, s := range config.Strategies {
		if s == name {
			return true
		}
	}
	return false
}
