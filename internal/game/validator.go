package game

// ValidatePlayerAction checks whether playerID may take action now. It returns
// nil or a *Error and never modifies g.
func ValidatePlayerAction(g *Game, playerID string, action Action) error {
	if g.Table.CurrentTurn != playerID {
		return newError(CodeNotYourTurn, "it is not %s's turn", playerID)
	}
	seat := g.SeatByPlayer(playerID)
	if seat == nil {
		return newError(CodePlayerNotFound, "player %s is not seated", playerID)
	}
	switch seat.Status {
	case SeatFolded:
		return newError(CodeAlreadyFolded, "player %s has folded", playerID)
	case SeatAllIn, SeatSittingOut:
		return newError(CodeInvalidPlayerStatus, "player %s is %s", playerID, seat.Status)
	}

	callAmount := g.Table.CurrentBet - seat.CurrentBet

	switch action.Kind {
	case Fold:
		return nil

	case Check:
		if callAmount > 0 {
			return newError(CodeCannotCheck, "cannot check, %d to call", callAmount).with("callAmount", callAmount)
		}
		if g.Meta.StrictCheck {
			for _, s := range g.Seats {
				if s != nil && s.Status == SeatAllIn && s.CurrentBet > seat.CurrentBet {
					return newError(CodeCannotCheck, "cannot check against an all-in of %d", s.CurrentBet).
						with("callAmount", s.CurrentBet-seat.CurrentBet)
				}
			}
		}
		return nil

	case Call:
		if callAmount <= 0 {
			return newError(CodeNothingToCall, "nothing to call")
		}
		if callAmount > seat.Chips {
			return newError(CodeNotEnoughChips, "call of %d exceeds stack of %d", callAmount, seat.Chips).
				with("callAmount", callAmount).with("chips", seat.Chips)
		}
		return nil

	case Raise:
		minIncrement := g.Table.CurrentBet + g.Table.MinRaise - seat.CurrentBet
		if action.Amount <= 0 || action.Amount < minIncrement {
			return newError(CodeInvalidRaiseAmount, "raise must add at least %d", minIncrement).
				with("minimum", minIncrement)
		}
		if action.Amount > seat.Chips {
			return newError(CodeInsufficientChips, "raise of %d exceeds stack of %d", action.Amount, seat.Chips).
				with("chips", seat.Chips)
		}
		return nil

	case AllIn:
		if seat.Chips <= 0 {
			return newError(CodeNoChipsForAllIn, "no chips to go all-in")
		}
		return nil
	}

	return newError(CodeInvalidAction, "unknown action %q", action.Kind)
}

// LegalActions lists the action kinds playerID may take right now.
func LegalActions(g *Game, playerID string) []ActionKind {
	var legal []ActionKind
	for _, kind := range ActionKinds {
		a := Action{Kind: kind}
		if kind == Raise {
			a.Amount, _ = RaiseBounds(g, playerID)
		}
		if ValidatePlayerAction(g, playerID, a) == nil {
			legal = append(legal, kind)
		}
	}
	return legal
}

// RaiseBounds returns the smallest legal raise increment and the player's stack,
// which is the largest.
func RaiseBounds(g *Game, playerID string) (minimum, stack int) {
	seat := g.SeatByPlayer(playerID)
	if seat == nil {
		return 0, 0
	}
	return g.Table.CurrentBet + g.Table.MinRaise - seat.CurrentBet, seat.Chips
}

// CallAmount returns the chips playerID must add to match the current bet.
func CallAmount(g *Game, playerID string) int {
	seat := g.SeatByPlayer(playerID)
	if seat == nil {
		return 0
	}
	return max(0, g.Table.CurrentBet-seat.CurrentBet)
}

// TimeoutAction is the action taken for a player whose turn expires: a check
// when that is legal, otherwise a fold.
func TimeoutAction(g *Game, playerID string) Action {
	if ValidatePlayerAction(g, playerID, Action{Kind: Check}) == nil {
		return Action{Kind: Check}
	}
	return Action{Kind: Fold}
}
