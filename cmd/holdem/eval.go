package main

import (
	"fmt"
	"strings"

	"github.com/lox/holdem-engine/internal/evaluator"
	"github.com/lox/holdem-engine/poker"
)

// EvalCmd evaluates the best five-card hand from five to seven cards.
type EvalCmd struct {
	Cards []string `arg:"" help:"Cards such as 'AsKs QsJsTs' (spaces optional)"`
}

func (c *EvalCmd) Run() error {
	cards, err := parseCardArgs(c.Cards)
	if err != nil {
		return err
	}
	if len(cards) < 5 || len(cards) > 7 {
		return fmt.Errorf("need 5 to 7 cards, got %d", len(cards))
	}
	if err := checkDuplicates(cards); err != nil {
		return err
	}

	hand, err := evaluator.Evaluate(cards)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", headerStyle.Render("Cards:"), renderCards(cards))
	fmt.Printf("%s %s\n", headerStyle.Render("Best: "), renderCards(hand.Cards))
	fmt.Printf("%s %s\n", headerStyle.Render("Hand: "), categoryStyle.Render(hand.Value.String()))
	return nil
}

func parseCardArgs(args []string) ([]poker.Card, error) {
	cards, err := poker.ParseCards(strings.Join(args, ""))
	if err != nil {
		return nil, fmt.Errorf("invalid cards: %w", err)
	}
	return cards, nil
}

func checkDuplicates(cards []poker.Card) error {
	seen := make(map[poker.Card]bool, len(cards))
	for _, c := range cards {
		if seen[c] {
			return fmt.Errorf("duplicate card found: %s", c)
		}
		seen[c] = true
	}
	return nil
}
