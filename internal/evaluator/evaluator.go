// Package evaluator ranks Texas Hold'em hands and selects showdown winners.
//
// Evaluate picks the best five cards out of five to seven and returns a Value
// holding the hand Category and a tiebreak vector. Two values compare by category
// first and then lexicographically by tiebreak; an equal vector is an exact tie.
package evaluator

import (
	"errors"
	"fmt"
	"math/bits"
	"sort"

	"github.com/lox/holdem-engine/poker"
)

var (
	// ErrCardCount is returned when fewer than five or more than seven cards are given.
	ErrCardCount = errors.New("evaluate requires 5 to 7 cards")
	// ErrDuplicateCard is returned when the same card appears twice.
	ErrDuplicateCard = errors.New("duplicate card")
)

// Evaluate returns the best five-card hand that can be made from cards.
func Evaluate(cards []poker.Card) (Hand, error) {
	n := len(cards)
	if n < 5 || n > 7 {
		return Hand{}, fmt.Errorf("%w: got %d", ErrCardCount, n)
	}

	seen := make(map[poker.Card]bool, n)
	for _, c := range cards {
		if !c.Valid() {
			return Hand{}, fmt.Errorf("invalid card %v", c)
		}
		if seen[c] {
			return Hand{}, fmt.Errorf("%w: %s", ErrDuplicateCard, c)
		}
		seen[c] = true
	}

	var best Hand
	found := false
	five := make([]poker.Card, 5)
	for mask := uint(0); mask < 1<<n; mask++ {
		if bits.OnesCount(mask) != 5 {
			continue
		}
		k := 0
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				five[k] = cards[i]
				k++
			}
		}
		h := evaluateFive(five)
		if !found || h.Compare(best) > 0 {
			best = h
			found = true
		}
	}
	return best, nil
}

// MustEvaluate panics on error. Intended for tests.
func MustEvaluate(cards []poker.Card) Hand {
	h, err := Evaluate(cards)
	if err != nil {
		panic(err)
	}
	return h
}

type rankGroup struct {
	rank  poker.Rank
	count int
}

func evaluateFive(cards []poker.Card) Hand {
	var counts [poker.Ace + 1]int
	flush := true
	for i, c := range cards {
		counts[c.Rank]++
		if i > 0 && c.Suit != cards[0].Suit {
			flush = false
		}
	}

	groups := make([]rankGroup, 0, 5)
	for r := poker.Ace; r >= poker.Two; r-- {
		if counts[r] > 0 {
			groups = append(groups, rankGroup{rank: r, count: counts[r]})
		}
	}
	// Larger groups first; ties keep descending rank order.
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].count > groups[j].count
	})

	straightHigh := 0
	wheel := false
	if len(groups) == 5 {
		switch {
		case groups[0].rank-groups[4].rank == 4:
			straightHigh = int(groups[0].rank)
		case groups[0].rank == poker.Ace && groups[1].rank == poker.Five:
			straightHigh = int(poker.Five)
			wheel = true
		}
	}

	tiebreak := make([]int, len(groups))
	for i, g := range groups {
		tiebreak[i] = int(g.rank)
	}

	var v Value
	switch {
	case straightHigh > 0 && flush:
		v = Value{Category: StraightFlush, Tiebreak: []int{straightHigh}}
		if straightHigh == int(poker.Ace) {
			v.Category = RoyalFlush
		}
	case groups[0].count == 4:
		v = Value{Category: FourOfAKind, Tiebreak: tiebreak}
	case groups[0].count == 3 && groups[1].count == 2:
		v = Value{Category: FullHouse, Tiebreak: tiebreak}
	case flush:
		v = Value{Category: Flush, Tiebreak: tiebreak}
	case straightHigh > 0:
		v = Value{Category: Straight, Tiebreak: []int{straightHigh}}
	case groups[0].count == 3:
		v = Value{Category: ThreeOfAKind, Tiebreak: tiebreak}
	case groups[0].count == 2 && groups[1].count == 2:
		v = Value{Category: TwoPair, Tiebreak: tiebreak}
	case groups[0].count == 2:
		v = Value{Category: OnePair, Tiebreak: tiebreak}
	default:
		v = Value{Category: HighCard, Tiebreak: tiebreak}
	}

	return Hand{Value: v, Cards: orderCards(cards, groups, wheel)}
}

// orderCards lists the hand's cards group by group, with the wheel's ace last.
func orderCards(cards []poker.Card, groups []rankGroup, wheel bool) []poker.Card {
	out := make([]poker.Card, 0, 5)
	for _, g := range groups {
		if wheel && g.rank == poker.Ace {
			continue
		}
		for _, c := range cards {
			if c.Rank == g.rank {
				out = append(out, c)
			}
		}
	}
	if wheel {
		for _, c := range cards {
			if c.Rank == poker.Ace {
				out = append(out, c)
			}
		}
	}
	return out
}
