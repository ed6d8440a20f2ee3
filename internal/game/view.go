package game

// PublicView returns a copy of g that is safe to show to players: the deck and
// the burned cards are removed. Hole cards are never part of a Game.
func PublicView(g *Game) *Game {
	v := g.Clone()
	v.Table.Deck = nil
	v.Table.Burned = nil
	return v
}
