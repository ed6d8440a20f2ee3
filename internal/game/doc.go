// Package game implements the Texas Hold'em hand engine.
//
// A Game is the persisted aggregate for one table. Every exported operation is a
// pure transform: it clones the input, applies the change and returns the new
// *Game, leaving the original untouched. Callers commit the result with an
// optimistic compare-and-commit keyed by Game.Version and simply discard it when a
// rule is violated.
//
// # Hand lifecycle
//
//	g, err := game.InitializeHand(g, rng)     // blinds, dealer rotation, shuffle
//	g, holes, err := game.DealHoleCards(g)    // dealing -> preflop
//	g, err = game.ApplyAction(g, "alice", game.Action{Kind: game.Call})
//	for game.IsBetting(g) && g.Table.CurrentTurn == "" {
//	    g, err = game.Advance(g)              // next street, last_man or showdown
//	}
//	g, err = game.Settle(g, holes)            // pots, winners, chips
//
// Street bets stay on Seat.CurrentBet until the street ends and they are swept
// into Table.Pot (the main pot) and Table.SidePots.
//
// The package performs no I/O and owns no timers. Turn ids and deadlines are
// supplied by the caller through BeginTurn.
package game
