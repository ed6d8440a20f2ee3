// Package statistics accumulates per-player results across simulated hands.
package statistics

import (
	"fmt"
	"math"
	"sort"

	"github.com/lox/holdem-engine/internal/game"
)

// HandResult is one player's outcome for a single hand.
type HandResult struct {
	NetBB          float64    // Net big blinds won or lost
	Seed           int64      // Shuffle seed of the table, for replay
	Seat           int        // Seat number the player held
	WentToShowdown bool       // Whether the hand was decided at showdown
	PotBB          float64    // Total pot awarded, in big blinds
	Street         game.Round // Furthest street dealt
}

// SeatStats tracks results for one seat number.
type SeatStats struct {
	Hands  int
	SumBB  float64
	SumBB2 float64
}

// BigPotBB is the pot size, in big blinds, counted as a big pot.
const BigPotBB = 50

// Statistics tracks results for one player or strategy.
type Statistics struct {
	Hands  int
	SumBB  float64
	SumBB2 float64   // Sum of squares for variance calculation
	Values []float64 // Every result, for median and percentiles

	ShowdownWins    int     // Hands won at showdown
	NonShowdownWins int     // Hands won when everyone else folded
	ShowdownBB      float64 // BB from showdown hands, wins and losses
	NonShowdownBB   float64 // BB from hands that ended without showdown
	AllBB           float64

	Seats [game.MaxSeats]SeatStats

	Streets map[game.Round]int // Hands by furthest street reached

	MaxPotBB  float64
	BigPots   int
	BigPotsBB float64 // BB won or lost in pots of at least BigPotBB
}

// Mean returns the arithmetic mean of all results in big blinds per hand
func (s *Statistics) Mean() float64 {
	if s.Hands == 0 {
		return 0
	}
	return s.SumBB / float64(s.Hands)
}

// Variance returns the sample variance of all results
func (s *Statistics) Variance() float64 {
	if s.Hands < 2 {
		return 0
	}
	mean := s.Mean()
	return (s.SumBB2 - float64(s.Hands)*mean*mean) / float64(s.Hands-1)
}

// StdDev returns the sample standard deviation of all results
func (s *Statistics) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// StdError returns the standard error of the mean
func (s *Statistics) StdError() float64 {
	if s.Hands == 0 {
		return 0
	}
	return s.StdDev() / math.Sqrt(float64(s.Hands))
}

// ConfidenceInterval95 returns the 95% confidence interval for the mean
func (s *Statistics) ConfidenceInterval95() (float64, float64) {
	mean := s.Mean()
	margin := 1.96 * s.StdError()
	return mean - margin, mean + margin
}

// Add incorporates a new hand result into the statistics
func (s *Statistics) Add(result HandResult) {
	netBB := result.NetBB
	s.Hands++
	s.SumBB += netBB
	s.SumBB2 += netBB * netBB
	s.Values = append(s.Values, netBB)

	if netBB > 0 {
		if result.WentToShowdown {
			s.ShowdownWins++
		} else {
			s.NonShowdownWins++
		}
	}
	if result.WentToShowdown {
		s.ShowdownBB += netBB
	} else {
		s.NonShowdownBB += netBB
	}
	s.AllBB += netBB

	if seat := result.Seat; seat >= 0 && seat < game.MaxSeats {
		s.Seats[seat].Hands++
		s.Seats[seat].SumBB += netBB
		s.Seats[seat].SumBB2 += netBB * netBB
	}

	if result.Street != "" {
		if s.Streets == nil {
			s.Streets = make(map[game.Round]int)
		}
		s.Streets[result.Street]++
	}

	if result.PotBB > s.MaxPotBB {
		s.MaxPotBB = result.PotBB
	}
	if result.PotBB >= BigPotBB {
		s.BigPots++
		s.BigPotsBB += netBB
	}
}

// Merge folds other into s.
func (s *Statistics) Merge(other *Statistics) {
	s.Hands += other.Hands
	s.SumBB += other.SumBB
	s.SumBB2 += other.SumBB2
	s.Values = append(s.Values, other.Values...)
	s.ShowdownWins += other.ShowdownWins
	s.NonShowdownWins += other.NonShowdownWins
	s.ShowdownBB += other.ShowdownBB
	s.NonShowdownBB += other.NonShowdownBB
	s.AllBB += other.AllBB
	for i := range s.Seats {
		s.Seats[i].Hands += other.Seats[i].Hands
		s.Seats[i].SumBB += other.Seats[i].SumBB
		s.Seats[i].SumBB2 += other.Seats[i].SumBB2
	}
	for street, n := range other.Streets {
		if s.Streets == nil {
			s.Streets = make(map[game.Round]int)
		}
		s.Streets[street] += n
	}
	s.MaxPotBB = max(s.MaxPotBB, other.MaxPotBB)
	s.BigPots += other.BigPots
	s.BigPotsBB += other.BigPotsBB
}

// Median returns the median value of all results
func (s *Statistics) Median() float64 {
	return s.Percentile(0.5)
}

// Percentile returns the value at the given percentile (0.0 to 1.0)
func (s *Statistics) Percentile(p float64) float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := make([]float64, len(s.Values))
	copy(sorted, s.Values)
	sort.Float64s(sorted)

	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// SeatMean returns the mean result at a seat number.
func (s *Statistics) SeatMean(seat int) float64 {
	if seat < 0 || seat >= game.MaxSeats {
		return 0
	}
	ss := s.Seats[seat]
	if ss.Hands == 0 {
		return 0
	}
	return ss.SumBB / float64(ss.Hands)
}

// IsLedgerBalanced checks if the accounting is consistent
func (s *Statistics) IsLedgerBalanced() bool {
	return math.Abs(s.AllBB-s.ShowdownBB-s.NonShowdownBB) <= 1e-6
}

// Validate checks the accumulated counters agree with each other.
func (s *Statistics) Validate() error {
	if !s.IsLedgerBalanced() {
		return fmt.Errorf("ledger mismatch: AllBB=%.6f, ShowdownBB=%.6f, NonShowdownBB=%.6f",
			s.AllBB, s.ShowdownBB, s.NonShowdownBB)
	}
	if s.Hands <= 0 {
		return fmt.Errorf("invalid hands count: %d", s.Hands)
	}
	if len(s.Values) != s.Hands {
		return fmt.Errorf("values array length (%d) does not match hands count (%d)",
			len(s.Values), s.Hands)
	}
	if wins := s.ShowdownWins + s.NonShowdownWins; wins > s.Hands {
		return fmt.Errorf("total wins (%d) exceeds total hands (%d)", wins, s.Hands)
	}

	seatHands := 0
	for _, ss := range s.Seats {
		seatHands += ss.Hands
	}
	if seatHands != s.Hands {
		return fmt.Errorf("seat hands total (%d) does not match total hands (%d)", seatHands, s.Hands)
	}
	return nil
}
