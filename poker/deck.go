package poker

import (
	"errors"
	rand "math/rand/v2"
)

// DeckSize is the number of cards in a standard deck.
const DeckSize = 52

// ErrDeckExhausted is returned when more cards are requested than remain.
var ErrDeckExhausted = errors.New("deck exhausted")

// Deck is an ordered stack of cards; index 0 is the top.
type Deck []Card

// NewDeck returns the 52 cards in canonical suit-major order.
func NewDeck() Deck {
	d := make(Deck, 0, DeckSize)
	for suit := Clubs; suit <= Spades; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			d = append(d, NewCard(rank, suit))
		}
	}
	return d
}

// Shuffle returns a Fisher-Yates permutation of d drawn from rng. The input is
// not modified. A nil rng falls back to the global source.
func Shuffle(d Deck, rng *rand.Rand) Deck {
	out := make(Deck, len(d))
	copy(out, d)
	for i := len(out) - 1; i > 0; i-- {
		var j int
		if rng != nil {
			j = rng.IntN(i + 1)
		} else {
			j = rand.IntN(i + 1)
		}
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Deal takes n cards from the top of d and returns them with the remaining deck.
func Deal(d Deck, n int) ([]Card, Deck, error) {
	if n < 0 || n > len(d) {
		return nil, d, ErrDeckExhausted
	}
	return d[:n:n], d[n:], nil
}

// Burn removes the top card. The burned card is returned for audit only and must
// never be shown to players.
func Burn(d Deck) (Card, Deck, error) {
	if len(d) == 0 {
		return Card{}, d, ErrDeckExhausted
	}
	return d[0], d[1:], nil
}

// Contains reports whether c is still in the deck.
func (d Deck) Contains(c Card) bool {
	for _, dc := range d {
		if dc == c {
			return true
		}
	}
	return false
}

// Clone returns an independent copy of the deck.
func (d Deck) Clone() Deck {
	if d == nil {
		return nil
	}
	out := make(Deck, len(d))
	copy(out, d)
	return out
}
