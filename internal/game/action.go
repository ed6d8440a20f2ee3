package game

import (
	"strconv"
	"strings"
	"time"
)

// ActionKind is a player decision.
type ActionKind string

const (
	Fold  ActionKind = "fold"
	Check ActionKind = "check"
	Call  ActionKind = "call"
	Raise ActionKind = "raise"
	AllIn ActionKind = "all_in"
)

// ActionKinds lists every kind in a stable order.
var ActionKinds = []ActionKind{Fold, Check, Call, Raise, AllIn}

func (k ActionKind) String() string { return string(k) }

// ParseActionKind converts a wire token into an ActionKind.
func ParseActionKind(s string) (ActionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fold":
		return Fold, nil
	case "check":
		return Check, nil
	case "call":
		return Call, nil
	case "raise", "bet":
		return Raise, nil
	case "all_in", "allin", "all-in":
		return AllIn, nil
	}
	return "", newError(CodeInvalidAction, "unknown action %q", s)
}

// Action is a decision with its payload. Amount is only meaningful for Raise and
// is the number of chips added to the seat's street bet.
type Action struct {
	Kind   ActionKind `json:"action"`
	Amount int        `json:"amount,omitempty"`
}

func (a Action) String() string {
	if a.Kind == Raise {
		return "raise " + strconv.Itoa(a.Amount)
	}
	return string(a.Kind)
}

// ApplyAction validates and then processes an action.
func ApplyAction(g *Game, playerID string, action Action) (*Game, error) {
	if err := ValidatePlayerAction(g, playerID, action); err != nil {
		return nil, err
	}
	return ProcessAction(g, playerID, action)
}

// ProcessAction applies an already validated action and passes the turn on. When
// the street is complete CurrentTurn is cleared and the caller should Advance.
func ProcessAction(g *Game, playerID string, action Action) (*Game, error) {
	g = g.Clone()
	seat := g.SeatByPlayer(playerID)
	if seat == nil {
		return nil, newError(CodePlayerNotFound, "player %s is not seated", playerID)
	}
	t := &g.Table
	betBefore := t.CurrentBet

	switch action.Kind {
	case Fold:
		seat.Status = SeatFolded

	case Check:

	case Call:
		commit(seat, min(t.CurrentBet-seat.CurrentBet, seat.Chips))

	case Raise:
		commit(seat, action.Amount)
		raiseBy := seat.CurrentBet - t.CurrentBet
		t.MinRaise = max(t.MinRaise, raiseBy)
		t.LastRaise = raiseBy
		t.CurrentBet = seat.CurrentBet

	case AllIn:
		commit(seat, seat.Chips)
		if seat.CurrentBet > t.CurrentBet {
			raiseBy := seat.CurrentBet - t.CurrentBet
			if raiseBy >= t.MinRaise {
				t.MinRaise = raiseBy
				t.LastRaise = raiseBy
			}
			t.CurrentBet = seat.CurrentBet
		}

	default:
		return nil, newError(CodeInvalidAction, "unknown action %q", action.Kind)
	}

	seat.HasActed = true
	if t.CurrentBet > betBefore {
		for _, s := range g.Seats {
			if s != nil && s != seat {
				s.HasActed = false
			}
		}
	}

	passTurn(g, seat.Number)
	return g, nil
}

// ForceFold folds playerID out of turn, for example when they leave mid-hand.
func ForceFold(g *Game, playerID string) (*Game, error) {
	seat := g.SeatByPlayer(playerID)
	if seat == nil {
		return nil, newError(CodePlayerNotFound, "player %s is not seated", playerID)
	}
	if !seat.InHand() || !g.Table.CurrentRound.IsStreet() && g.Table.CurrentRound != RoundDealing {
		return g.Clone(), nil
	}
	if g.Table.CurrentTurn == playerID {
		return ProcessAction(g, playerID, Action{Kind: Fold})
	}

	g = g.Clone()
	seat = g.SeatByPlayer(playerID)
	seat.Status = SeatFolded
	if IsRoundComplete(g) {
		clearTurn(g)
	}
	return g, nil
}

// commit moves chips from the seat's stack to its street bet.
func commit(seat *Seat, amount int) {
	amount = min(amount, seat.Chips)
	seat.Chips -= amount
	seat.CurrentBet += amount
	seat.TotalBet += amount
	if seat.Chips == 0 {
		seat.Status = SeatAllIn
	}
}

// passTurn moves CurrentTurn to the next seat owing an action after seat from,
// or clears it when the street is complete.
func passTurn(g *Game, from int) {
	clearTurn(g)
	if IsRoundComplete(g) {
		return
	}
	g.Table.CurrentTurn = NextToAct(g, from)
}

func clearTurn(g *Game) {
	g.Table.CurrentTurn = ""
	g.Table.CurrentTurnID = ""
	g.Table.TurnDeadline = time.Time{}
}
