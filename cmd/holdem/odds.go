package main

import (
	"fmt"
	rand "math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/lox/holdem-engine/internal/evaluator"
	"github.com/lox/holdem-engine/internal/randutil"
	"github.com/lox/holdem-engine/poker"
)

// OddsCmd estimates each hand's share of the pot at showdown.
type OddsCmd struct {
	Hands      []string `arg:"" help:"Two-card hands such as 'AcKd QhJs'"`
	Board      string   `short:"b" help:"Community cards dealt so far (e.g. 'Td7s8h')"`
	Iterations int      `short:"i" default:"100000" help:"Monte Carlo iterations"`
	Seed       *int64   `help:"Random seed for reproducible results"`
}

type equity struct {
	Hand  [2]poker.Card
	Wins  int
	Ties  int
	Share float64 // Pot share across all runouts, ties split evenly
	Total int
}

func (e equity) WinRate() float64 { return float64(e.Wins) / float64(e.Total) }
func (e equity) TieRate() float64 { return float64(e.Ties) / float64(e.Total) }
func (e equity) Equity() float64  { return e.Share / float64(e.Total) }

func (c *OddsCmd) Run() error {
	if len(c.Hands) < 2 {
		return fmt.Errorf("need at least two hands, got %d", len(c.Hands))
	}
	hands := make([][2]poker.Card, len(c.Hands))
	var all []poker.Card
	for i, s := range c.Hands {
		cards, err := poker.ParseCards(s)
		if err != nil {
			return fmt.Errorf("hand %d: %w", i+1, err)
		}
		if len(cards) != 2 {
			return fmt.Errorf("hand %d: must contain exactly 2 cards, got %d", i+1, len(cards))
		}
		hands[i] = [2]poker.Card{cards[0], cards[1]}
		all = append(all, cards...)
	}

	var board []poker.Card
	if c.Board != "" {
		var err error
		if board, err = poker.ParseCards(c.Board); err != nil {
			return fmt.Errorf("board: %w", err)
		}
		if len(board) > 5 {
			return fmt.Errorf("board cannot have more than 5 cards")
		}
	}
	if err := checkDuplicates(append(all, board...)); err != nil {
		return err
	}

	seed := randutil.Seed()
	if c.Seed != nil {
		seed = *c.Seed
	}

	start := time.Now()
	results, err := calculateEquity(hands, board, c.Iterations, randutil.New(seed))
	if err != nil {
		return err
	}
	duration := time.Since(start)

	fmt.Println(titleStyle.Render(" ♠ ♥ Showdown Odds ♦ ♣ "))
	fmt.Printf("%s %s\n", headerStyle.Render("Hands:"), formatHands(hands))
	if len(board) > 0 {
		fmt.Printf("%s %s\n", headerStyle.Render("Board:"), renderCards(board))
	}
	fmt.Printf("%s %s runouts in %s\n\n", headerStyle.Render("Sampled:"),
		strconv.Itoa(results[0].Total), duration.Round(time.Millisecond))

	for _, r := range results {
		fmt.Printf("%s  %s  %s  %s\n",
			handStyle.Render(renderCards(r.Hand[:])),
			winStyle.Render(fmt.Sprintf("win %6.2f%%", 100*r.WinRate())),
			tieStyle.Render(fmt.Sprintf("tie %6.2f%%", 100*r.TieRate())),
			categoryStyle.Render(fmt.Sprintf("equity %6.2f%%", 100*r.Equity())))
	}
	return nil
}

// calculateEquity deals the rest of the board from the unseen cards and
// scores every hand. When at most two board cards are missing every runout is
// enumerated instead of sampled.
func calculateEquity(hands [][2]poker.Card, board []poker.Card, iterations int, rng *rand.Rand) ([]equity, error) {
	if iterations < 1 {
		return nil, fmt.Errorf("iterations must be positive")
	}

	var dead []poker.Card
	for _, h := range hands {
		dead = append(dead, h[:]...)
	}
	dead = append(dead, board...)
	var live []poker.Card
	for _, c := range poker.NewDeck() {
		if !slices.Contains(dead, c) {
			live = append(live, c)
		}
	}

	results := make([]equity, len(hands))
	contenders := make([]evaluator.Contender, len(hands))
	for i, h := range hands {
		results[i].Hand = h
		contenders[i] = evaluator.Contender{PlayerID: strconv.Itoa(i), HoleCards: h[:]}
	}

	score := func(full []poker.Card) error {
		sd, err := evaluator.DetermineWinners(contenders, full)
		if err != nil {
			return err
		}
		for _, id := range sd.Winners {
			i, _ := strconv.Atoi(id)
			if len(sd.Winners) == 1 {
				results[i].Wins++
			} else {
				results[i].Ties++
			}
			results[i].Share += 1 / float64(len(sd.Winners))
		}
		for i := range results {
			results[i].Total++
		}
		return nil
	}

	switch need := 5 - len(board); need {
	case 0:
		if err := score(board); err != nil {
			return nil, err
		}
	case 1, 2:
		for i := range live {
			if need == 1 {
				if err := score(append(slices.Clone(board), live[i])); err != nil {
					return nil, err
				}
				continue
			}
			for j := i + 1; j < len(live); j++ {
				if err := score(append(slices.Clone(board), live[i], live[j])); err != nil {
					return nil, err
				}
			}
		}
	default:
		deck := poker.Deck(live)
		for range iterations {
			deck = poker.Shuffle(deck, rng)
			if err := score(append(slices.Clone(board), deck[:need]...)); err != nil {
				return nil, err
			}
		}
	}
	return results, nil
}

func formatHands(hands [][2]poker.Card) string {
	parts := make([]string, len(hands))
	for i, h := range hands {
		parts[i] = poker.FormatCards(h[:])
	}
	return strings.Join(parts, " vs ")
}
