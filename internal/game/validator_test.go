package game

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePlayerAction(t *testing.T) {
	t.Parallel()
	// p0 is first to act facing the 10 big blind with 1000 behind.
	g, _ := startHand(t, newTestGame(t, 1000, 1000, 1000), 1)

	tests := []struct {
		name   string
		player string
		action Action
		want   *Error
	}{
		{"fold", "p0", Action{Kind: Fold}, nil},
		{"call", "p0", Action{Kind: Call}, nil},
		{"min raise", "p0", Action{Kind: Raise, Amount: 20}, nil},
		{"raise whole stack", "p0", Action{Kind: Raise, Amount: 1000}, nil},
		{"all in", "p0", Action{Kind: AllIn}, nil},
		{"not your turn", "p1", Action{Kind: Fold}, ErrNotYourTurn},
		{"check facing a bet", "p0", Action{Kind: Check}, ErrCannotCheck},
		{"raise below minimum", "p0", Action{Kind: Raise, Amount: 19}, ErrInvalidRaiseAmount},
		{"zero raise", "p0", Action{Kind: Raise}, ErrInvalidRaiseAmount},
		{"raise above stack", "p0", Action{Kind: Raise, Amount: 1001}, ErrInsufficientChips},
		{"unknown action", "p0", Action{Kind: "dance"}, ErrInvalidAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidatePlayerAction(g, tt.player, tt.action)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidateRaiseReportsMinimum(t *testing.T) {
	t.Parallel()
	g, _ := startHand(t, newTestGame(t, 1000, 1000, 1000), 1)

	err := ValidatePlayerAction(g, "p0", Action{Kind: Raise, Amount: 15})
	var ge *Error
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, CodeInvalidRaiseAmount, ge.Code)
	assert.Equal(t, 20, ge.Context["minimum"])
}

func TestValidateNothingToCall(t *testing.T) {
	t.Parallel()
	g, _ := startHand(t, newTestGame(t, 1000, 1000, 1000), 1)
	g = act(t, g, "p0", Call)
	g = act(t, g, "p1", Call)

	assert.ErrorIs(t, ValidatePlayerAction(g, "p2", Action{Kind: Call}), ErrNothingToCall)
	assert.NoError(t, ValidatePlayerAction(g, "p2", Action{Kind: Check}))
}

func TestValidateShortStack(t *testing.T) {
	t.Parallel()
	g, _ := startHand(t, newTestGame(t, 1000, 1000, 1000, 8), 1)
	// p3 is first to act with 8 chips facing 10.
	require.Equal(t, "p3", g.Table.CurrentTurn)

	assert.ErrorIs(t, ValidatePlayerAction(g, "p3", Action{Kind: Call}), ErrNotEnoughChips)
	assert.NoError(t, ValidatePlayerAction(g, "p3", Action{Kind: AllIn}))
	assert.Equal(t, []ActionKind{Fold, AllIn}, LegalActions(g, "p3"))
}

func TestValidateSeatStatus(t *testing.T) {
	t.Parallel()
	g, _ := startHand(t, newTestGame(t, 1000, 1000, 1000), 1)

	folded := g.Clone()
	folded.Seats[0].Status = SeatFolded
	assert.ErrorIs(t, ValidatePlayerAction(folded, "p0", Action{Kind: Fold}), ErrAlreadyFolded)

	allIn := g.Clone()
	allIn.Seats[0].Status = SeatAllIn
	allIn.Seats[0].Chips = 0
	assert.ErrorIs(t, ValidatePlayerAction(allIn, "p0", Action{Kind: Fold}), ErrInvalidPlayerStatus)

	ghost := g.Clone()
	ghost.Table.CurrentTurn = "ghost"
	assert.ErrorIs(t, ValidatePlayerAction(ghost, "ghost", Action{Kind: Fold}), ErrPlayerNotFound)

	broke := g.Clone()
	broke.Seats[0].Chips = 0
	assert.ErrorIs(t, ValidatePlayerAction(broke, "p0", Action{Kind: AllIn}), ErrNoChipsForAllIn)
}

func TestStrictCheck(t *testing.T) {
	t.Parallel()
	g, _ := startHand(t, newTestGame(t, 1000, 1000, 1000), 1)
	g = act(t, g, "p0", Call)
	g = act(t, g, "p1", Call)
	// Seat p0 as all-in above the table bet, which only an inconsistent
	// document can produce.
	g.Seats[0].Status = SeatAllIn
	g.Seats[0].CurrentBet = 15

	assert.NoError(t, ValidatePlayerAction(g, "p2", Action{Kind: Check}))

	g.Meta.StrictCheck = true
	assert.ErrorIs(t, ValidatePlayerAction(g, "p2", Action{Kind: Check}), ErrCannotCheck)
}

func TestLegalActions(t *testing.T) {
	t.Parallel()
	g, _ := startHand(t, newTestGame(t, 1000, 1000, 1000), 1)
	assert.Equal(t, []ActionKind{Fold, Call, Raise, AllIn}, LegalActions(g, "p0"))
	assert.Empty(t, LegalActions(g, "p1"))

	g = act(t, g, "p0", Call)
	g = act(t, g, "p1", Call)
	assert.Equal(t, []ActionKind{Fold, Check, Raise, AllIn}, LegalActions(g, "p2"))
}

func TestTimeoutAction(t *testing.T) {
	t.Parallel()
	g, _ := startHand(t, newTestGame(t, 1000, 1000, 1000), 1)
	assert.Equal(t, Fold, TimeoutAction(g, "p0").Kind)

	g = act(t, g, "p0", Call)
	g = act(t, g, "p1", Call)
	assert.Equal(t, Check, TimeoutAction(g, "p2").Kind)
}

func TestParseActionKind(t *testing.T) {
	t.Parallel()
	for token, want := range map[string]ActionKind{
		"fold": Fold, "CHECK": Check, "call": Call, "raise": Raise, "bet": Raise,
		"all_in": AllIn, "allin": AllIn, "all-in": AllIn,
	} {
		got, err := ParseActionKind(token)
		require.NoError(t, err, token)
		assert.Equal(t, want, got, token)
	}

	_, err := ParseActionKind("muck")
	assert.ErrorIs(t, err, ErrInvalidAction)
}
