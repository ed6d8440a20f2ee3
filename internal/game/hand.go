package game

import (
	"errors"
	rand "math/rand/v2"
	"time"

	"github.com/lox/holdem-engine/poker"
)

// InitializeHand starts a new hand: it resets the seats, rotates the dealer,
// shuffles a fresh deck and posts the blinds. The hand is left in the dealing
// round.
func InitializeHand(g *Game, rng *rand.Rand) (*Game, error) {
	if r := g.Table.CurrentRound; r != RoundWaiting && r != "" {
		return nil, newError(CodeGameAlreadyInProgress, "hand %d is in progress", g.HandNumber)
	}
	if g.Status == StatusPaused || g.Status == StatusEnded {
		return nil, newError(CodeInvalidAction, "game is %s", g.Status)
	}

	g = g.Clone()
	for _, s := range g.Seats {
		if s == nil {
			continue
		}
		s.CurrentBet, s.TotalBet = 0, 0
		s.HasActed = false
		s.IsDealer, s.IsSmallBlind, s.IsBigBlind = false, false, false
		if s.Chips > 0 && !s.Away {
			s.Status = SeatActive
		} else {
			s.Status = SeatSittingOut
		}
	}

	if n := g.countSeats((*Seat).CanAct); n < 2 {
		return nil, newError(CodeNotEnoughPlayers, "need at least 2 players, have %d", n).with("players", n)
	}

	dealer := g.seatsAfter(g.Table.DealerSeat, (*Seat).CanAct)[0]
	dealer.IsDealer = true

	t := &g.Table
	*t = Table{
		CurrentRound:        RoundWaiting,
		DealerSeat:          dealer.Number,
		ConsecutiveTimeouts: t.ConsecutiveTimeouts,
		CurrentBet:          g.Meta.Blinds.Big,
		MinRaise:            g.Meta.Blinds.Big,
		Deck:                poker.Shuffle(poker.NewDeck(), rng),
	}

	ring := g.inHandSeats(dealer.Number)
	sb, bb := ring[0], ring[1]
	if len(ring) == 2 {
		sb, bb = dealer, ring[0]
	}
	sb.IsSmallBlind = true
	commit(sb, g.Meta.Blinds.Small)
	bb.IsBigBlind = true
	commit(bb, g.Meta.Blinds.Big)

	g.HandNumber++
	g.Status = StatusPlaying
	if err := transition(g, RoundDealing); err != nil {
		return nil, err
	}
	return g, nil
}

// DealHoleCards deals two cards to every in-hand seat, one at a time starting
// left of the dealer, and opens preflop betting.
func DealHoleCards(g *Game) (*Game, HoleCards, error) {
	if g.Table.CurrentRound != RoundDealing {
		return nil, nil, newError(CodeInvalidAction, "cannot deal hole cards during %s", g.Table.CurrentRound)
	}
	g = g.Clone()

	ring := g.inHandSeats(g.Table.DealerSeat)
	holes := make(HoleCards, len(ring))
	for round := 0; round < 2; round++ {
		for _, s := range ring {
			cards, rest, err := poker.Deal(g.Table.Deck, 1)
			if err != nil {
				return nil, nil, deckError(err)
			}
			g.Table.Deck = rest
			hc := holes[s.PlayerID]
			hc[round] = cards[0]
			holes[s.PlayerID] = hc
		}
	}

	if err := transition(g, RoundPreflop); err != nil {
		return nil, nil, err
	}
	openStreet(g)
	return g, holes, nil
}

// DealFlop burns a card and deals three community cards.
func DealFlop(g *Game) (*Game, error) {
	if g.Table.CurrentRound != RoundPreflop {
		return nil, newError(CodeInvalidAction, "cannot deal the flop during %s", g.Table.CurrentRound)
	}
	return dealStreet(g, RoundFlop, 3)
}

// DealTurnOrRiver burns a card and deals one community card for round, which
// must be RoundTurn or RoundRiver.
func DealTurnOrRiver(g *Game, round Round) (*Game, error) {
	switch {
	case round == RoundTurn && g.Table.CurrentRound == RoundFlop,
		round == RoundRiver && g.Table.CurrentRound == RoundTurn:
		return dealStreet(g, round, 1)
	}
	return nil, newError(CodeInvalidAction, "cannot deal %s during %s", round, g.Table.CurrentRound)
}

func dealStreet(g *Game, round Round, n int) (*Game, error) {
	g = g.Clone()
	sweepBets(g)

	cards, err := burnAndDeal(&g.Table, n)
	if err != nil {
		return nil, err
	}
	g.Table.CommunityCards = append(g.Table.CommunityCards, cards...)

	if err := transition(g, round); err != nil {
		return nil, err
	}
	openStreet(g)
	return g, nil
}

func burnAndDeal(t *Table, n int) ([]poker.Card, error) {
	burned, deck, err := poker.Burn(t.Deck)
	if err != nil {
		return nil, deckError(err)
	}
	cards, deck, err := poker.Deal(deck, n)
	if err != nil {
		return nil, deckError(err)
	}
	t.Burned = append(t.Burned, burned)
	t.Deck = deck
	return cards, nil
}

// Advance moves a hand whose street is complete to the next round: it deals the
// next street, or sweeps the bets and enters last_man or showdown.
func Advance(g *Game) (*Game, error) {
	if !IsBetting(g) {
		return nil, newError(CodeInvalidAction, "no street to advance during %s", g.Table.CurrentRound)
	}
	if !IsRoundComplete(g) {
		return nil, newError(CodeInvalidAction, "%s betting is not complete", g.Table.CurrentRound)
	}

	switch next := GetNextState(g); next {
	case RoundFlop:
		return DealFlop(g)
	case RoundTurn, RoundRiver:
		return DealTurnOrRiver(g, next)
	default:
		g = g.Clone()
		sweepBets(g)
		clearTurn(g)
		if err := transition(g, next); err != nil {
			return nil, err
		}
		return g, nil
	}
}

// RunOut deals every remaining street, with burns, without betting.
func RunOut(g *Game) (*Game, error) {
	g = g.Clone()
	sweepBets(g)
	for len(g.Table.CommunityCards) < 5 {
		n := 1
		if len(g.Table.CommunityCards) == 0 {
			n = 3
		}
		cards, err := burnAndDeal(&g.Table, n)
		if err != nil {
			return nil, err
		}
		g.Table.CommunityCards = append(g.Table.CommunityCards, cards...)
	}
	return g, nil
}

// BeginTurn stamps the current turn with the caller's token and deadline.
func BeginTurn(g *Game, turnID string, deadline time.Time) *Game {
	g = g.Clone()
	if g.Table.CurrentTurn == "" {
		return g
	}
	g.Table.CurrentTurnID = turnID
	g.Table.TurnDeadline = deadline
	return g
}

// openStreet resets per-street betting and picks the first player to act.
func openStreet(g *Game) {
	if g.Table.CurrentRound != RoundPreflop {
		for _, s := range g.Seats {
			if s != nil {
				s.CurrentBet = 0
			}
		}
		g.Table.CurrentBet = 0
		g.Table.LastRaise = 0
	}
	g.Table.MinRaise = g.Meta.Blinds.Big
	for _, s := range g.Seats {
		if s != nil {
			s.HasActed = false
		}
	}

	clearTurn(g)
	if !IsRoundComplete(g) {
		g.Table.CurrentTurn = GetFirstToAct(g)
	}
}

// sweepBets moves street bets into the main and side pots.
func sweepBets(g *Game) {
	pots := g.Pots()
	for _, s := range g.Seats {
		if s != nil {
			s.CurrentBet = 0
		}
	}

	g.Table.CurrentBet = 0
	g.Table.Pot, g.Table.SidePots = 0, nil
	switch {
	case len(pots) > 0:
		g.Table.Pot = pots[0].Amount
		if len(pots) > 1 {
			g.Table.SidePots = pots[1:]
		}
	default:
		g.Table.Pot = g.committed()
	}
}

func deckError(err error) error {
	if errors.Is(err, poker.ErrDeckExhausted) {
		return newError(CodeDeckExhausted, "deck exhausted")
	}
	return err
}
