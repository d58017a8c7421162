package league

import (
	"testing"

	"github.com/cectt/ttleague/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoPlayerMatch() Match {
	return Match{
		ID:        uuid.New(),
		Player1ID: utils.Ptr(uuid.New()),
		Player2ID: utils.Ptr(uuid.New()),
	}
}

func TestGameScoresSkipsIncompletePairs(t *testing.T) {
	m := twoPlayerMatch()
	m.Game1Score1 = utils.Ptr(21)
	m.Game1Score2 = utils.Ptr(15)
	m.Game2Score1 = utils.Ptr(19)

	scores := m.GameScores()
	require.Len(t, scores, 1)
	assert.Equal(t, GameScore{Score1: 21, Score2: 15}, scores[0])
}

func TestAggregatePointsPrefersGameData(t *testing.T) {
	m := twoPlayerMatch()
	m.Game1Score1 = utils.Ptr(21)
	m.Game1Score2 = utils.Ptr(15)
	m.Game2Score1 = utils.Ptr(21)
	m.Game2Score2 = utils.Ptr(10)
	m.Score1 = utils.Ptr(99)
	m.Score2 = utils.Ptr(99)

	total1, total2 := m.AggregatePoints()
	assert.Equal(t, 42, total1)
	assert.Equal(t, 25, total2)
}

func TestAggregatePointsFallsBackToStoredTotals(t *testing.T) {
	m := twoPlayerMatch()
	m.Score1 = utils.Ptr(21)
	m.Score2 = utils.Ptr(18)

	total1, total2 := m.AggregatePoints()
	assert.Equal(t, 21, total1)
	assert.Equal(t, 18, total2)
}

func TestWinnerID(t *testing.T) {
	t.Run("bye resolves to player 1 immediately", func(t *testing.T) {
		m := twoPlayerMatch()
		m.Player2ID = nil

		winner := m.WinnerID()
		require.NotNil(t, winner)
		assert.Equal(t, *m.Player1ID, *winner)
	})

	t.Run("unreported has no winner", func(t *testing.T) {
		m := twoPlayerMatch()
		assert.Nil(t, m.WinnerID())
	})

	t.Run("double forfeit has no winner", func(t *testing.T) {
		m := twoPlayerMatch()
		m.Reported = true
		m.DoubleForfeit = true
		m.Score1 = utils.Ptr(0)
		m.Score2 = utils.Ptr(0)
		assert.Nil(t, m.WinnerID())
	})

	t.Run("game wins decide over aggregate", func(t *testing.T) {
		m := twoPlayerMatch()
		m.Reported = true
		// Player 2 takes two close games; player 1's blowout win means
		// they lead on points but still lose the match.
		m.Game1Score1 = utils.Ptr(21)
		m.Game1Score2 = utils.Ptr(2)
		m.Game2Score1 = utils.Ptr(19)
		m.Game2Score2 = utils.Ptr(21)
		m.Game3Score1 = utils.Ptr(19)
		m.Game3Score2 = utils.Ptr(21)

		winner := m.WinnerID()
		require.NotNil(t, winner)
		assert.Equal(t, *m.Player2ID, *winner)
	})

	t.Run("aggregate decides when no game data", func(t *testing.T) {
		m := twoPlayerMatch()
		m.Reported = true
		m.Score1 = utils.Ptr(15)
		m.Score2 = utils.Ptr(21)

		winner := m.WinnerID()
		require.NotNil(t, winner)
		assert.Equal(t, *m.Player2ID, *winner)
	})

	t.Run("tied aggregate has no winner", func(t *testing.T) {
		m := twoPlayerMatch()
		m.Reported = true
		m.Score1 = utils.Ptr(21)
		m.Score2 = utils.Ptr(21)
		assert.Nil(t, m.WinnerID())
	})
}

func TestSummary(t *testing.T) {
	t.Run("bye", func(t *testing.T) {
		m := twoPlayerMatch()
		m.Player2ID = nil
		require.NotNil(t, m.Summary())
		assert.Equal(t, "Bye", *m.Summary())
	})

	t.Run("double forfeit", func(t *testing.T) {
		m := twoPlayerMatch()
		m.Reported = true
		m.DoubleForfeit = true
		require.NotNil(t, m.Summary())
		assert.Equal(t, "Double Forfeit", *m.Summary())
	})

	t.Run("unreported has none", func(t *testing.T) {
		m := twoPlayerMatch()
		assert.Nil(t, m.Summary())
	})

	t.Run("aggregate only", func(t *testing.T) {
		m := twoPlayerMatch()
		m.Reported = true
		m.Score1 = utils.Ptr(21)
		m.Score2 = utils.Ptr(15)
		require.NotNil(t, m.Summary())
		assert.Equal(t, "21 - 15", *m.Summary())
	})

	t.Run("per-game detail", func(t *testing.T) {
		m := twoPlayerMatch()
		m.Reported = true
		m.Game1Score1 = utils.Ptr(21)
		m.Game1Score2 = utils.Ptr(15)
		m.Game2Score1 = utils.Ptr(18)
		m.Game2Score2 = utils.Ptr(21)
		m.Game3Score1 = utils.Ptr(21)
		m.Game3Score2 = utils.Ptr(19)
		require.NotNil(t, m.Summary())
		assert.Equal(t, "2-1 (21-15, 18-21, 21-19)", *m.Summary())
	})
}
