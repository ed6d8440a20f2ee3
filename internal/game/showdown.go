package game

import (
	"fmt"
	"slices"

	"github.com/lox/holdem-engine/internal/evaluator"
	"github.com/lox/holdem-engine/internal/pot"
	"github.com/lox/holdem-engine/poker"
)

// HandResult is the settled outcome of a hand.
type HandResult struct {
	HandNumber int                `json:"handNumber"`
	Board      []poker.Card       `json:"board"`
	Pots       []pot.Pot          `json:"pots"`
	Winnings   map[string]int     `json:"winnings"`
	WonByFold  bool               `json:"wonByFold"`
	Showdown   []evaluator.Result `json:"showdown,omitempty"`
	// SecondShowdown holds the second runout's hands when the board was run twice.
	SecondShowdown []evaluator.Result `json:"secondShowdown,omitempty"`
	Runouts        *Runouts           `json:"runouts,omitempty"`
	// Aborted is set when the hand was called off and every bet refunded.
	Aborted bool `json:"aborted,omitempty"`
}

func (r HandResult) clone() HandResult {
	c := r
	c.Board = slices.Clone(r.Board)
	c.Pots = clonePots(r.Pots)
	if r.Winnings != nil {
		c.Winnings = make(map[string]int, len(r.Winnings))
		for k, v := range r.Winnings {
			c.Winnings[k] = v
		}
	}
	c.Showdown = slices.Clone(r.Showdown)
	c.SecondShowdown = slices.Clone(r.SecondShowdown)
	if r.Runouts != nil {
		ro := r.Runouts.clone()
		c.Runouts = &ro
	}
	return c
}

// Runouts are the two boards dealt when an all-in pair runs it twice.
type Runouts struct {
	PlayerIDs   []string     `json:"playerIds"`
	Runout1     []poker.Card `json:"runout1"`
	Runout2     []poker.Card `json:"runout2"`
	OriginalPot int          `json:"originalPot"`
}

func (r Runouts) clone() Runouts {
	return Runouts{
		PlayerIDs:   slices.Clone(r.PlayerIDs),
		Runout1:     slices.Clone(r.Runout1),
		Runout2:     slices.Clone(r.Runout2),
		OriginalPot: r.OriginalPot,
	}
}

// Winners is the outcome of CalculateWinners.
type Winners struct {
	PlayerIDs []string
	WonByFold bool
	Results   []evaluator.Result
}

// CalculateWinners finds the players holding the best hand. When a single seat
// remains it wins by fold and no hand is evaluated.
func CalculateWinners(g *Game, holes HoleCards) (Winners, error) {
	return winnersOn(g, holes, g.Table.CommunityCards)
}

func winnersOn(g *Game, holes HoleCards, board []poker.Card) (Winners, error) {
	var inHand []*Seat
	for _, s := range g.Seats {
		if s.InHand() {
			inHand = append(inHand, s)
		}
	}
	switch len(inHand) {
	case 0:
		return Winners{}, pot.ErrNoEligibleWinner
	case 1:
		return Winners{PlayerIDs: []string{inHand[0].PlayerID}, WonByFold: true}, nil
	}

	contenders := make([]evaluator.Contender, 0, len(inHand))
	for _, s := range inHand {
		hc, ok := holes[s.PlayerID]
		if !ok {
			return Winners{}, fmt.Errorf("no hole cards for %s", s.PlayerID)
		}
		contenders = append(contenders, evaluator.Contender{PlayerID: s.PlayerID, HoleCards: hc[:]})
	}

	sd, err := evaluator.DetermineWinners(contenders, board)
	if err != nil {
		return Winners{}, err
	}
	return Winners{PlayerIDs: sd.Winners, Results: sd.Results}, nil
}

// Settle pays out the hand. A showdown with an incomplete board is run out first.
// The hand passes through settling and the round returns to waiting.
func Settle(g *Game, holes HoleCards) (*Game, error) {
	round := g.Table.CurrentRound
	if round != RoundLastMan && round != RoundShowdown {
		return nil, newError(CodeInvalidAction, "cannot settle during %s", round)
	}

	var err error
	if round == RoundShowdown && len(g.Table.CommunityCards) < 5 {
		if g, err = RunOut(g); err != nil {
			return nil, err
		}
	} else {
		g = g.Clone()
		sweepBets(g)
	}

	w, err := CalculateWinners(g, holes)
	if err != nil {
		return nil, err
	}

	pots := g.Pots()
	result := HandResult{
		HandNumber: g.HandNumber,
		Board:      slices.Clone(g.Table.CommunityCards),
		Pots:       pots,
		WonByFold:  w.WonByFold,
		Showdown:   w.Results,
	}

	if w.WonByFold {
		result.Winnings = map[string]int{w.PlayerIDs[0]: g.committed()}
	} else {
		result.Winnings, err = pot.Distribute(pots, w.Results, seating(g))
		if err != nil {
			return nil, err
		}
	}

	if err := finishHand(g, result); err != nil {
		return nil, err
	}
	return g, nil
}

// RunItTwice deals the rest of the board twice for two all-in players. Both
// runouts come from disjoint cards of the same deck: the second continues where
// the first stopped.
func RunItTwice(g *Game, playerIDs []string) (*Game, Runouts, error) {
	round := g.Table.CurrentRound
	if !(IsBetting(g) && IsRoundComplete(g)) && round != RoundShowdown {
		return nil, Runouts{}, newError(CodeInvalidAction, "cannot run it twice during %s", round)
	}

	var inHand []string
	for _, s := range g.Seats {
		if s.InHand() {
			inHand = append(inHand, s.PlayerID)
		}
	}
	if len(inHand) != 2 || !bettingClosed(g) {
		return nil, Runouts{}, newError(CodeInvalidAction, "run it twice needs exactly two all-in players")
	}
	if len(playerIDs) != 2 || !slices.Contains(playerIDs, inHand[0]) || !slices.Contains(playerIDs, inHand[1]) {
		return nil, Runouts{}, newError(CodeInvalidAction, "run it twice must be agreed by %s and %s", inHand[0], inHand[1])
	}
	board := g.Table.CommunityCards
	if len(board) >= 5 {
		return nil, Runouts{}, newError(CodeInvalidAction, "board is already complete")
	}

	g = g.Clone()
	sweepBets(g)
	clearTurn(g)
	if round != RoundShowdown {
		if err := transition(g, RoundShowdown); err != nil {
			return nil, Runouts{}, err
		}
	}

	r := Runouts{PlayerIDs: inHand, OriginalPot: pot.Total(g.Pots())}
	for run := 0; run < 2; run++ {
		cards := slices.Clone(board)
		for len(cards) < 5 {
			n := 1
			if len(cards) == 0 {
				n = 3
			}
			dealt, err := burnAndDeal(&g.Table, n)
			if err != nil {
				return nil, Runouts{}, err
			}
			cards = append(cards, dealt...)
		}
		if run == 0 {
			r.Runout1 = cards
		} else {
			r.Runout2 = cards
		}
	}

	stored := r.clone()
	g.Table.RunItTwice = &stored
	return g, r, nil
}

// CanRunItTwice reports whether the hand is eligible to run the board twice:
// exactly two players remain, no more betting is possible and the board is
// incomplete.
func CanRunItTwice(g *Game) bool {
	if len(g.Table.CommunityCards) >= 5 || g.Table.RunItTwice != nil {
		return false
	}
	round := g.Table.CurrentRound
	if !(round.IsStreet() && IsRoundComplete(g)) && round != RoundShowdown {
		return false
	}
	return g.countSeats((*Seat).InHand) == 2 && bettingClosed(g)
}

// SettleRunItTwice splits every pot between the two runouts, the odd chip going
// to the first, and pays each half to that runout's winners.
func SettleRunItTwice(g *Game, holes HoleCards) (*Game, error) {
	r := g.Table.RunItTwice
	if r == nil || g.Table.CurrentRound != RoundShowdown {
		return nil, newError(CodeInvalidAction, "board has not been run twice")
	}
	g = g.Clone()
	r = g.Table.RunItTwice

	pots := g.Pots()
	first := make([]pot.Pot, len(pots))
	second := make([]pot.Pot, len(pots))
	for i, p := range pots {
		half, odd := pot.Split(p.Amount, 2)
		first[i], second[i] = p, p
		first[i].Amount = half + odd
		second[i].Amount = half
	}

	w1, err := winnersOn(g, holes, r.Runout1)
	if err != nil {
		return nil, err
	}
	w2, err := winnersOn(g, holes, r.Runout2)
	if err != nil {
		return nil, err
	}

	seats := seating(g)
	won1, err := pot.Distribute(first, w1.Results, seats)
	if err != nil {
		return nil, err
	}
	won2, err := pot.Distribute(second, w2.Results, seats)
	if err != nil {
		return nil, err
	}
	for id, amount := range won2 {
		won1[id] += amount
	}

	runouts := r.clone()
	g.Table.CommunityCards = slices.Clone(r.Runout1)
	result := HandResult{
		HandNumber:     g.HandNumber,
		Board:          slices.Clone(r.Runout1),
		Pots:           pots,
		Winnings:       won1,
		Showdown:       w1.Results,
		SecondShowdown: w2.Results,
		Runouts:        &runouts,
	}
	if err := finishHand(g, result); err != nil {
		return nil, err
	}
	return g, nil
}

func seating(g *Game) pot.Seating {
	s := pot.Seating{
		SeatOf:     make(map[string]int),
		DealerSeat: g.Table.DealerSeat,
		TotalSeats: len(g.Seats),
	}
	for _, seat := range g.Seats {
		if seat != nil {
			s.SeatOf[seat.PlayerID] = seat.Number
		}
	}
	return s
}

// AbortHand calls off the hand in progress: every seat gets back what it bet
// this hand and the table returns to waiting. It is for hands whose state can
// no longer be trusted, such as lost hole cards.
func AbortHand(g *Game) (*Game, error) {
	if g.Table.CurrentRound == RoundWaiting || g.Table.CurrentRound == "" {
		return nil, newError(CodeInvalidAction, "no hand in progress")
	}
	g = g.Clone()

	refunds := make(map[string]int)
	for _, s := range g.Seats {
		if s == nil || s.TotalBet == 0 {
			continue
		}
		s.Chips += s.TotalBet
		refunds[s.PlayerID] = s.TotalBet
	}
	g.LastHand = &HandResult{
		HandNumber: g.HandNumber,
		Board:      slices.Clone(g.Table.CommunityCards),
		Winnings:   refunds,
		Aborted:    true,
	}
	g.Table.CurrentRound = RoundSettling
	if err := resetHand(g); err != nil {
		return nil, err
	}
	return g, nil
}

// finishHand credits winnings, records the result and returns the table to
// waiting.
func finishHand(g *Game, result HandResult) error {
	for id, amount := range result.Winnings {
		seat := g.SeatByPlayer(id)
		if seat == nil {
			return fmt.Errorf("winner %s is not seated", id)
		}
		seat.Chips += amount
	}
	g.LastHand = &result

	if err := transition(g, RoundSettling); err != nil {
		return err
	}
	return resetHand(g)
}

// resetHand clears the per-hand table and seat state of a settling hand and
// returns the table to waiting.
func resetHand(g *Game) error {
	t := &g.Table
	t.Pot, t.SidePots = 0, nil
	t.CurrentBet, t.LastRaise = 0, 0
	t.RunItTwice = nil
	t.Deck, t.Burned = nil, nil
	clearTurn(g)
	for i, s := range g.Seats {
		if s == nil {
			continue
		}
		s.CurrentBet, s.TotalBet = 0, 0
		s.HasActed = false
		if s.Leaving {
			g.Seats[i] = nil
		}
	}

	if g.countSeats(func(s *Seat) bool { return s.Chips > 0 }) < 2 {
		g.Status = StatusCompleted
	}
	return transition(g, RoundWaiting)
}
