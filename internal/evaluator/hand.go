package evaluator

import (
	"fmt"
	"strings"

	"github.com/lox/holdem-engine/poker"
)

// Category is the class of a five-card poker hand, ordered weakest to strongest.
type Category int

const (
	HighCard Category = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

// String returns the string representation of a hand category
func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case OnePair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	case RoyalFlush:
		return "Royal Flush"
	default:
		return "Unknown"
	}
}

// Value is the comparable strength of a hand: the category, then a tiebreak vector
// of rank values compared lexicographically.
type Value struct {
	Category Category `json:"category"`
	Tiebreak []int    `json:"tiebreak"`
}

// Compare returns 1 if v beats other, -1 if it loses, 0 on an exact tie.
func (v Value) Compare(other Value) int {
	if v.Category != other.Category {
		if v.Category > other.Category {
			return 1
		}
		return -1
	}
	for i := 0; i < len(v.Tiebreak) && i < len(other.Tiebreak); i++ {
		if v.Tiebreak[i] != other.Tiebreak[i] {
			if v.Tiebreak[i] > other.Tiebreak[i] {
				return 1
			}
			return -1
		}
	}
	switch {
	case len(v.Tiebreak) > len(other.Tiebreak):
		return 1
	case len(v.Tiebreak) < len(other.Tiebreak):
		return -1
	}
	return 0
}

// String describes the hand, e.g. "Full House, Kings over Fives".
func (v Value) String() string {
	rank := func(i int) poker.Rank {
		if i < len(v.Tiebreak) {
			return poker.Rank(v.Tiebreak[i])
		}
		return 0
	}
	valid := func(n int) bool { return len(v.Tiebreak) >= n }

	switch v.Category {
	case RoyalFlush:
		return "Royal Flush"
	case HighCard, Straight, Flush, StraightFlush:
		if !valid(1) {
			break
		}
		if v.Category == HighCard {
			return fmt.Sprintf("High Card, %s", rank(0).Name())
		}
		return fmt.Sprintf("%s, %s high", v.Category, rank(0).Name())
	case OnePair:
		if valid(1) {
			return fmt.Sprintf("Pair of %s", rank(0).Plural())
		}
	case TwoPair:
		if valid(2) {
			return fmt.Sprintf("Two Pair, %s and %s", rank(0).Plural(), rank(1).Plural())
		}
	case ThreeOfAKind, FourOfAKind:
		if valid(1) {
			return fmt.Sprintf("%s, %s", v.Category, rank(0).Plural())
		}
	case FullHouse:
		if valid(2) {
			return fmt.Sprintf("Full House, %s over %s", rank(0).Plural(), rank(1).Plural())
		}
	}
	return v.Category.String()
}

// Hand is an evaluated hand: its value and the five cards that make it.
type Hand struct {
	Value Value        `json:"value"`
	Cards []poker.Card `json:"cards"`
}

// String returns a string representation of the hand
func (h Hand) String() string {
	parts := make([]string, len(h.Cards))
	for i, c := range h.Cards {
		parts[i] = c.String()
	}
	return fmt.Sprintf("%s [%s]", h.Value, strings.Join(parts, " "))
}

// Compare compares two hands by value.
func (h Hand) Compare(other Hand) int {
	return h.Value.Compare(other.Value)
}
