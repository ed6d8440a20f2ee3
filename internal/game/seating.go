package game

// Seating operations. They apply between hands or to seats that are not in the
// current hand, except Leave which folds an in-hand seat first.

// SitDown seats playerID at seat number with a buy-in.
func SitDown(g *Game, number int, playerID, name string, buyIn int) (*Game, error) {
	if number < 0 || number >= len(g.Seats) {
		return nil, newError(CodeSeatUnavailable, "seat %d does not exist", number).with("seats", len(g.Seats))
	}
	if g.Seats[number] != nil {
		return nil, newError(CodeSeatUnavailable, "seat %d is taken", number)
	}
	if g.SeatByPlayer(playerID) != nil {
		return nil, newError(CodeAlreadySeated, "player %s is already seated", playerID)
	}
	if buyIn < g.Meta.MinBuyIn || (g.Meta.MaxBuyIn > 0 && buyIn > g.Meta.MaxBuyIn) {
		return nil, newError(CodeInvalidBuyIn, "buy-in must be between %d and %d", g.Meta.MinBuyIn, g.Meta.MaxBuyIn).
			with("min", g.Meta.MinBuyIn).with("max", g.Meta.MaxBuyIn)
	}

	g = g.Clone()
	g.Seats[number] = &Seat{
		Number:      number,
		PlayerID:    playerID,
		DisplayName: name,
		Chips:       buyIn,
		Status:      SeatSittingOut,
	}
	if g.Status == StatusCompleted && g.countSeats(func(s *Seat) bool { return s.Chips > 0 }) >= 2 {
		g.Status = StatusPlaying
	}
	return g, nil
}

// FirstOpenSeat returns the lowest empty seat number, or -1 when the table is full.
func FirstOpenSeat(g *Game) int {
	for i, s := range g.Seats {
		if s == nil {
			return i
		}
	}
	return -1
}

// Leave removes playerID. A seat still in the hand is folded and removed when
// the hand settles.
func Leave(g *Game, playerID string) (*Game, error) {
	seat := g.SeatByPlayer(playerID)
	if seat == nil {
		return nil, newError(CodePlayerNotFound, "player %s is not seated", playerID)
	}

	if seat.InHand() && g.Table.CurrentRound != RoundWaiting {
		g, err := ForceFold(g, playerID)
		if err != nil {
			return nil, err
		}
		s := g.SeatByPlayer(playerID)
		s.Leaving, s.Away = true, true
		return g, nil
	}

	g = g.Clone()
	if seat.TotalBet > 0 {
		// Folded seats keep their contribution until the hand settles.
		s := g.SeatByPlayer(playerID)
		s.Leaving, s.Away = true, true
		return g, nil
	}
	g.Seats[seat.Number] = nil
	return g, nil
}

// SetAway marks a seat as sitting out from the next hand, or returns it to play.
func SetAway(g *Game, playerID string, away bool) (*Game, error) {
	if g.SeatByPlayer(playerID) == nil {
		return nil, newError(CodePlayerNotFound, "player %s is not seated", playerID)
	}
	g = g.Clone()
	s := g.SeatByPlayer(playerID)
	s.Away = away
	if !away {
		s.MissedTurns = 0
	}
	return g, nil
}
