package game

// transitions is the table of legal round changes.
var transitions = map[Round][]Round{
	RoundWaiting:  {RoundDealing},
	RoundDealing:  {RoundPreflop},
	RoundPreflop:  {RoundFlop, RoundLastMan, RoundShowdown},
	RoundFlop:     {RoundTurn, RoundLastMan, RoundShowdown},
	RoundTurn:     {RoundRiver, RoundLastMan, RoundShowdown},
	RoundRiver:    {RoundShowdown, RoundLastMan},
	RoundLastMan:  {RoundSettling},
	RoundShowdown: {RoundSettling},
	RoundSettling: {RoundWaiting},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to Round) bool {
	for _, r := range transitions[from] {
		if r == to {
			return true
		}
	}
	return false
}

// Transition moves the hand to round to.
func Transition(g *Game, to Round) (*Game, error) {
	g = g.Clone()
	if err := transition(g, to); err != nil {
		return nil, err
	}
	return g, nil
}

func transition(g *Game, to Round) error {
	from := g.Table.CurrentRound
	if from == "" {
		from = RoundWaiting
	}
	if !CanTransition(from, to) {
		return newError(CodeInvalidAction, "cannot move from %s to %s", from, to)
	}
	g.Table.CurrentRound = to
	return nil
}

// GetNextState returns the round the hand moves to once the current street is
// complete.
func GetNextState(g *Game) Round {
	round := g.Table.CurrentRound
	if round.IsStreet() {
		inHand := g.countSeats((*Seat).InHand)
		if inHand <= 1 {
			return RoundLastMan
		}
		if bettingClosed(g) {
			return RoundShowdown
		}
	}

	switch round {
	case RoundWaiting, "":
		return RoundDealing
	case RoundDealing:
		return RoundPreflop
	case RoundPreflop:
		return RoundFlop
	case RoundFlop:
		return RoundTurn
	case RoundTurn:
		return RoundRiver
	case RoundRiver:
		return RoundShowdown
	case RoundLastMan, RoundShowdown:
		return RoundSettling
	}
	return RoundWaiting
}

// bettingClosed reports whether no further betting is possible this hand: every
// in-hand seat is all-in, or all but one and that one has matched the bet.
func bettingClosed(g *Game) bool {
	var live []*Seat
	for _, s := range g.Seats {
		if s.CanAct() {
			live = append(live, s)
		}
	}
	switch len(live) {
	case 0:
		return true
	case 1:
		return live[0].CurrentBet >= g.Table.CurrentBet
	}
	return false
}

// IsRoundComplete reports whether the current street has no action left.
func IsRoundComplete(g *Game) bool {
	if g.countSeats((*Seat).InHand) <= 1 {
		return true
	}

	var live []*Seat
	for _, s := range g.Seats {
		if s.CanAct() {
			live = append(live, s)
		}
	}

	switch len(live) {
	case 0:
		return true
	case 1:
		if live[0].CurrentBet >= g.Table.CurrentBet {
			return true
		}
	}

	for _, s := range live {
		if !s.HasActed || s.CurrentBet != g.Table.CurrentBet {
			return false
		}
	}
	return true
}

// IsBetting reports whether the hand is on a betting street.
func IsBetting(g *Game) bool {
	return g.Table.CurrentRound.IsStreet()
}

// GetFirstToAct returns the player who opens the current street, or "" when no
// seat can act.
//
// Preflop the seat after the big blind opens, except heads-up where the dealer
// (who posts the small blind) does. After the flop the first active seat after
// the dealer opens.
func GetFirstToAct(g *Game) string {
	ring := g.inHandSeats(g.Table.DealerSeat)
	if len(ring) == 0 {
		return ""
	}

	start := 0
	if g.Table.CurrentRound == RoundPreflop {
		if len(ring) == 2 {
			start = 1
		} else {
			start = 2 % len(ring)
		}
	}

	for i := range ring {
		s := ring[(start+i)%len(ring)]
		if s.CanAct() {
			return s.PlayerID
		}
	}
	return ""
}

// NextToAct returns the first seat clockwise after seat from that still owes an
// action this street, or "".
func NextToAct(g *Game, from int) string {
	for _, s := range g.seatsAfter(from, (*Seat).CanAct) {
		if !s.HasActed || s.CurrentBet < g.Table.CurrentBet {
			return s.PlayerID
		}
	}
	return ""
}
