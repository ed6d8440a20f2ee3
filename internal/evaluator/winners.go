package evaluator

import (
	"fmt"

	"github.com/lox/holdem-engine/poker"
)

// Contender is a player taking part in a showdown.
type Contender struct {
	PlayerID  string
	HoleCards []poker.Card
}

// Result is one player's evaluated showdown hand.
type Result struct {
	PlayerID string `json:"playerId"`
	Hand     Hand   `json:"hand"`
}

// Showdown holds every evaluated hand and the ids holding the best one.
type Showdown struct {
	Winners []string `json:"winners"`
	Results []Result `json:"results"`
}

// DetermineWinners evaluates each player's hole cards with the board and returns
// every player tied for the best hand. Results keep the input order.
func DetermineWinners(players []Contender, community []poker.Card) (Showdown, error) {
	results := make([]Result, 0, len(players))
	for _, p := range players {
		cards := make([]poker.Card, 0, len(p.HoleCards)+len(community))
		cards = append(cards, p.HoleCards...)
		cards = append(cards, community...)

		h, err := Evaluate(cards)
		if err != nil {
			return Showdown{}, fmt.Errorf("evaluate %s: %w", p.PlayerID, err)
		}
		results = append(results, Result{PlayerID: p.PlayerID, Hand: h})
	}

	return Showdown{Winners: Best(results), Results: results}, nil
}

// Best returns the ids of every result matching the maximum value.
func Best(results []Result) []string {
	var winners []string
	var best Value
	for i, r := range results {
		cmp := 1
		if i > 0 {
			cmp = r.Hand.Value.Compare(best)
		}
		switch {
		case cmp > 0:
			best = r.Hand.Value
			winners = []string{r.PlayerID}
		case cmp == 0:
			winners = append(winners, r.PlayerID)
		}
	}
	return winners
}
