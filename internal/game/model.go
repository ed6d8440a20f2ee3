package game

import (
	"fmt"
	"slices"
	"time"

	"github.com/lox/holdem-engine/internal/pot"
	"github.com/lox/holdem-engine/poker"
)

// Status is the lifecycle state of a game.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusPlaying   Status = "playing"
	StatusPaused    Status = "paused"
	StatusEnded     Status = "ended"
	StatusCompleted Status = "completed"
)

// Round is the position of the current hand in the state machine.
type Round string

const (
	RoundWaiting  Round = "waiting"
	RoundDealing  Round = "dealing"
	RoundPreflop  Round = "preflop"
	RoundFlop     Round = "flop"
	RoundTurn     Round = "turn"
	RoundRiver    Round = "river"
	RoundLastMan  Round = "last_man"
	RoundShowdown Round = "showdown"
	RoundSettling Round = "settling"
)

// IsStreet reports whether the round is a betting street.
func (r Round) IsStreet() bool {
	switch r {
	case RoundPreflop, RoundFlop, RoundTurn, RoundRiver:
		return true
	}
	return false
}

// SeatStatus is a seat's state within the current hand.
type SeatStatus string

const (
	SeatActive     SeatStatus = "active"
	SeatFolded     SeatStatus = "folded"
	SeatAllIn      SeatStatus = "all_in"
	SeatSittingOut SeatStatus = "sitting_out"
)

// Blinds are the forced bets.
type Blinds struct {
	Small int `json:"small"`
	Big   int `json:"big"`
}

// Meta holds the table rules. It does not change during a game.
type Meta struct {
	MaxPlayers int    `json:"maxPlayers"`
	Blinds     Blinds `json:"blinds"`
	MinBuyIn   int    `json:"minBuyIn"`
	MaxBuyIn   int    `json:"maxBuyIn"`
	// StrictCheck refuses a check while an all-in seat has bet more than the
	// checking seat this street.
	StrictCheck bool `json:"strictCheck,omitempty"`
}

// MaxSeats bounds MaxPlayers.
const MaxSeats = 10

// Validate checks the rules describe a playable table.
func (m Meta) Validate() error {
	switch {
	case m.MaxPlayers < 2 || m.MaxPlayers > MaxSeats:
		return fmt.Errorf("max players must be between 2 and %d, got %d", MaxSeats, m.MaxPlayers)
	case m.Blinds.Small <= 0 || m.Blinds.Big < m.Blinds.Small:
		return fmt.Errorf("invalid blinds %d/%d", m.Blinds.Small, m.Blinds.Big)
	case m.MinBuyIn <= 0:
		return fmt.Errorf("min buy-in must be positive, got %d", m.MinBuyIn)
	case m.MaxBuyIn > 0 && m.MaxBuyIn < m.MinBuyIn:
		return fmt.Errorf("max buy-in %d is below min buy-in %d", m.MaxBuyIn, m.MinBuyIn)
	}
	return nil
}

// Table is the shared per-hand state.
type Table struct {
	Pot            int          `json:"pot"`
	SidePots       []pot.Pot    `json:"sidePots,omitempty"`
	CommunityCards []poker.Card `json:"communityCards"`
	Burned         []poker.Card `json:"burned,omitempty"`
	CurrentRound   Round        `json:"currentRound"`
	CurrentBet     int          `json:"currentBet"`
	MinRaise       int          `json:"minRaise"`
	LastRaise      int          `json:"lastRaise"`
	DealerSeat     int          `json:"dealerSeat"`

	CurrentTurn         string    `json:"currentTurn,omitempty"`
	CurrentTurnID       string    `json:"currentTurnId,omitempty"`
	TurnDeadline        time.Time `json:"turnDeadline,omitzero"`
	ConsecutiveTimeouts int       `json:"consecutiveTimeouts"`

	RunItTwice *Runouts   `json:"runItTwice,omitempty"`
	Deck       poker.Deck `json:"deck,omitempty"`
}

// Seat is one position at the table.
type Seat struct {
	Number       int        `json:"number"`
	PlayerID     string     `json:"playerId"`
	DisplayName  string     `json:"displayName"`
	Chips        int        `json:"chips"`
	CurrentBet   int        `json:"currentBet"`
	TotalBet     int        `json:"totalBet"`
	Status       SeatStatus `json:"status"`
	IsDealer     bool       `json:"isDealer"`
	IsSmallBlind bool       `json:"isSmallBlind"`
	IsBigBlind   bool       `json:"isBigBlind"`
	HasActed     bool       `json:"hasActed"`
	Away         bool       `json:"away,omitempty"`
	Leaving      bool       `json:"leaving,omitempty"`
	MissedTurns  int        `json:"missedTurns,omitempty"`
}

// InHand reports whether the seat holds cards and has not folded.
func (s *Seat) InHand() bool {
	return s != nil && (s.Status == SeatActive || s.Status == SeatAllIn)
}

// CanAct reports whether the seat can still make betting decisions.
func (s *Seat) CanAct() bool {
	return s != nil && s.Status == SeatActive
}

// HoleCards maps player ids to their private cards for one hand.
type HoleCards map[string][2]poker.Card

// Game is the aggregate root for one table.
type Game struct {
	ID          string      `json:"id"`
	Version     int64       `json:"version"`
	Status      Status      `json:"status"`
	HandNumber  int         `json:"handNumber"`
	Meta        Meta        `json:"meta"`
	Table       Table       `json:"table"`
	Seats       []*Seat     `json:"seats"`
	LastHand    *HandResult `json:"lastHand,omitempty"`
	AutoCloseID string      `json:"autoCloseId,omitempty"`
}

// New returns an empty game in the waiting state.
func New(id string, meta Meta) *Game {
	return &Game{
		ID:     id,
		Status: StatusWaiting,
		Meta:   meta,
		Table: Table{
			CurrentRound: RoundWaiting,
			DealerSeat:   -1,
		},
		Seats: make([]*Seat, meta.MaxPlayers),
	}
}

// Clone returns a deep copy of g.
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	c := *g
	c.Table.SidePots = clonePots(g.Table.SidePots)
	c.Table.CommunityCards = slices.Clone(g.Table.CommunityCards)
	c.Table.Burned = slices.Clone(g.Table.Burned)
	c.Table.Deck = g.Table.Deck.Clone()
	if g.Table.RunItTwice != nil {
		r := g.Table.RunItTwice.clone()
		c.Table.RunItTwice = &r
	}
	c.Seats = make([]*Seat, len(g.Seats))
	for i, s := range g.Seats {
		if s != nil {
			cs := *s
			c.Seats[i] = &cs
		}
	}
	if g.LastHand != nil {
		lh := g.LastHand.clone()
		c.LastHand = &lh
	}
	return &c
}

func clonePots(pots []pot.Pot) []pot.Pot {
	if pots == nil {
		return nil
	}
	out := make([]pot.Pot, len(pots))
	for i, p := range pots {
		p.EligiblePlayerIDs = slices.Clone(p.EligiblePlayerIDs)
		out[i] = p
	}
	return out
}

// SeatByPlayer returns the seat held by playerID, or nil.
func (g *Game) SeatByPlayer(playerID string) *Seat {
	for _, s := range g.Seats {
		if s != nil && s.PlayerID == playerID {
			return s
		}
	}
	return nil
}

// ChipsInPlay returns every chip on the table: stacks, street bets and pots.
func (g *Game) ChipsInPlay() int {
	total := g.Table.Pot + pot.Total(g.Table.SidePots)
	for _, s := range g.Seats {
		if s != nil {
			total += s.Chips + s.CurrentBet
		}
	}
	return total
}

// Pots layers every seat's contribution to the hand into the main pot and side
// pots, including bets not yet swept.
func (g *Game) Pots() []pot.Pot {
	return pot.CalculateSidePots(g.contributions())
}

// committed sums every chip bet this hand.
func (g *Game) committed() int {
	total := 0
	for _, s := range g.Seats {
		if s != nil {
			total += s.TotalBet
		}
	}
	return total
}

func (g *Game) contributions() []pot.Contribution {
	var out []pot.Contribution
	for _, s := range g.Seats {
		if s == nil || s.TotalBet == 0 {
			continue
		}
		out = append(out, pot.Contribution{
			PlayerID: s.PlayerID,
			Seat:     s.Number,
			TotalBet: s.TotalBet,
			Folded:   !s.InHand(),
		})
	}
	return out
}

// SeatedCount returns the number of occupied seats.
func (g *Game) SeatedCount() int {
	n := 0
	for _, s := range g.Seats {
		if s != nil {
			n++
		}
	}
	return n
}

// InHandCount returns the number of seats still contesting the hand.
func (g *Game) InHandCount() int {
	return g.countSeats((*Seat).InHand)
}

// inHandSeats returns the in-hand seats in clockwise order starting strictly
// after seat from.
func (g *Game) inHandSeats(from int) []*Seat {
	return g.seatsAfter(from, (*Seat).InHand)
}

func (g *Game) seatsAfter(from int, keep func(*Seat) bool) []*Seat {
	n := len(g.Seats)
	out := make([]*Seat, 0, n)
	for i := 1; i <= n; i++ {
		s := g.Seats[mod(from+i, n)]
		if s != nil && keep(s) {
			out = append(out, s)
		}
	}
	return out
}

func (g *Game) countSeats(keep func(*Seat) bool) int {
	n := 0
	for _, s := range g.Seats {
		if s != nil && keep(s) {
			n++
		}
	}
	return n
}

func mod(a, n int) int {
	if n <= 0 {
		return 0
	}
	return (a%n + n) % n
}
