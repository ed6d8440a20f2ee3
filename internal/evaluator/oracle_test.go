package evaluator

import (
	"testing"

	oracle "github.com/paulhankin/poker"

	"github.com/lox/holdem-engine/internal/randutil"
	"github.com/lox/holdem-engine/poker"
	"github.com/stretchr/testify/require"
)

// toOracle converts a card to paulhankin/poker's representation, where the ace
// is rank 1 and suits run clubs, diamonds, hearts, spades.
func toOracle(t *testing.T, c poker.Card) oracle.Card {
	t.Helper()
	rank := oracle.Rank(c.Rank)
	if c.Rank == poker.Ace {
		rank = 1
	}
	oc, err := oracle.MakeCard(oracle.Suit(c.Suit), rank)
	require.NoError(t, err)
	return oc
}

func oracleEval(t *testing.T, cards []poker.Card) int16 {
	t.Helper()
	var seven [7]oracle.Card
	for i, c := range cards {
		seven[i] = toOracle(t, c)
	}
	return oracle.Eval7(&seven)
}

func sign(x int) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// TestEvaluateAgreesWithOracle compares head-to-head outcomes against an
// independent evaluator over many random boards.
func TestEvaluateAgreesWithOracle(t *testing.T) {
	t.Parallel()
	rng := randutil.New(20240611)

	for i := 0; i < 5000; i++ {
		d := poker.Shuffle(poker.NewDeck(), rng)
		board := d[4:9]
		a := append([]poker.Card{d[0], d[1]}, board...)
		b := append([]poker.Card{d[2], d[3]}, board...)

		ours := MustEvaluate(a).Compare(MustEvaluate(b))
		theirs := sign(int(oracleEval(t, a)) - int(oracleEval(t, b)))

		require.Equal(t, theirs, ours, "hand %d: %s vs %s on %s", i,
			poker.FormatCards(a[:2]), poker.FormatCards(b[:2]), poker.FormatCards(board))
	}
}
