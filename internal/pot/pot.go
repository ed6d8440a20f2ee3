// Package pot turns per-seat contributions into layered main and side pots and
// distributes them to showdown winners.
package pot

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/lox/holdem-engine/internal/evaluator"
)

// ErrNoEligibleWinner is returned when a pot has no eligible showdown participant.
var ErrNoEligibleWinner = errors.New("pot has no eligible winner")

// Contribution is one seat's total commitment to the hand.
type Contribution struct {
	PlayerID string
	Seat     int
	TotalBet int
	Folded   bool
}

// Pot is a main or side pot.
type Pot struct {
	Amount            int      `json:"amount"`
	EligiblePlayerIDs []string `json:"eligiblePlayerIds"`
	Level             int      `json:"level"`
	IsMainPot         bool     `json:"isMainPot"`
}

// IsEligible reports whether playerID can win the pot.
func (p Pot) IsEligible(playerID string) bool {
	return slices.Contains(p.EligiblePlayerIDs, playerID)
}

// CalculateSidePots layers contributions into pots.
//
// Each unique bet level among non-folded contributors forms a pot funded by every
// contributor at or above that level. Chips from folded contributors are dead
// money and go to the first pot only.
func CalculateSidePots(contributions []Contribution) []Pot {
	deadMoney := 0
	live := make([]Contribution, 0, len(contributions))
	for _, c := range contributions {
		if c.Folded {
			deadMoney += c.TotalBet
			continue
		}
		if c.TotalBet > 0 {
			live = append(live, c)
		}
	}

	sort.SliceStable(live, func(i, j int) bool {
		if live[i].TotalBet != live[j].TotalBet {
			return live[i].TotalBet < live[j].TotalBet
		}
		return live[i].Seat < live[j].Seat
	})

	var pots []Pot
	prevLevel := 0
	for i := 0; i < len(live); i++ {
		level := live[i].TotalBet
		if level == prevLevel {
			continue
		}

		contributors := live[i:]
		amount := (level - prevLevel) * len(contributors)
		if len(pots) == 0 {
			amount += deadMoney
		}

		eligible := make([]string, len(contributors))
		for j, c := range contributors {
			eligible[j] = c.PlayerID
		}

		pots = append(pots, Pot{
			Amount:            amount,
			EligiblePlayerIDs: eligible,
			Level:             len(pots) + 1,
			IsMainPot:         len(pots) == 0,
		})
		prevLevel = level
	}

	return pots
}

// Total sums the amounts of all pots.
func Total(pots []Pot) int {
	total := 0
	for _, p := range pots {
		total += p.Amount
	}
	return total
}

// Split divides amount into n floor shares and returns the remainder.
func Split(amount, n int) (share, remainder int) {
	if n <= 0 {
		return 0, amount
	}
	return amount / n, amount % n
}

// Seating locates players around the table for odd-chip assignment.
type Seating struct {
	SeatOf     map[string]int
	DealerSeat int
	TotalSeats int
}

// distance returns how many seats clockwise from the dealer a seat sits.
func (s Seating) distance(seat int) int {
	if s.TotalSeats <= 0 {
		return seat
	}
	return ((seat-s.DealerSeat)%s.TotalSeats + s.TotalSeats) % s.TotalSeats
}

// OddChipWinner picks the winner that receives an undivided remainder: the one
// clockwise-nearest the dealer seat.
func (s Seating) OddChipWinner(winners []string) string {
	best := ""
	bestDist := 0
	for _, id := range winners {
		d := s.distance(s.SeatOf[id])
		if best == "" || d < bestDist {
			best, bestDist = id, d
		}
	}
	return best
}

// Distribute awards each pot to the best hands among its eligible players and
// returns the amount won per player.
func Distribute(pots []Pot, results []evaluator.Result, seating Seating) (map[string]int, error) {
	awards := make(map[string]int)
	for _, p := range pots {
		winners, err := Winners(p, results)
		if err != nil {
			return nil, err
		}
		if p.Amount == 0 {
			continue
		}

		share, remainder := Split(p.Amount, len(winners))
		for _, id := range winners {
			awards[id] += share
		}
		if remainder > 0 {
			awards[seating.OddChipWinner(winners)] += remainder
		}
	}
	return awards, nil
}

// Winners returns the players holding the best hand among the pot's eligible
// players.
func Winners(p Pot, results []evaluator.Result) ([]string, error) {
	contenders := make([]evaluator.Result, 0, len(p.EligiblePlayerIDs))
	for _, r := range results {
		if p.IsEligible(r.PlayerID) {
			contenders = append(contenders, r)
		}
	}
	if len(contenders) == 0 {
		return nil, fmt.Errorf("%w: level %d", ErrNoEligibleWinner, p.Level)
	}
	return evaluator.Best(contenders), nil
}
