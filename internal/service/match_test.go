package service

import (
	"context"
	"testing"

	"github.com/cectt/ttleague/internal/league"
	"github.com/cectt/ttleague/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func games(rows ...[2]string) [league.MaxGames][2]string {
	var raw [league.MaxGames][2]string
	copy(raw[:], rows)
	return raw
}

func unreportedWeekMatch(week int, p1, p2 uuid.UUID) league.Match {
	m := reportedWeekMatch(week, p1, p2, 0, 0, 0, 0)
	m.Reported = false
	m.Game1Score1, m.Game1Score2 = nil, nil
	m.Game2Score1, m.Game2Score2 = nil, nil
	m.Score1, m.Score2 = nil, nil
	return m
}

func TestReportScoreValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ada := env.addPlayer(t, "Ada", "Lovelace", "AL001")
	alan := env.addPlayer(t, "Alan", "Turing", "AT001")

	testCases := []struct {
		name  string
		raw   [league.MaxGames][2]string
		valid bool
	}{
		{"clean two-game win", games([2]string{"21", "15"}, [2]string{"21", "18"}), true},
		{"three-game win", games([2]string{"21", "15"}, [2]string{"18", "21"}, [2]string{"21", "19"}), true},
		{"blank middle row is skipped", games([2]string{"21", "15"}, [2]string{"", ""}, [2]string{"21", "19"}), true},
		{"single game", games([2]string{"21", "15"}), false},
		{"no games", games(), false},
		{"half-filled game", games([2]string{"21", ""}, [2]string{"21", "15"}), false},
		{"non-numeric", games([2]string{"21", "abc"}, [2]string{"21", "15"}), false},
		{"out of range", games([2]string{"100", "15"}, [2]string{"21", "15"}), false},
		{"negative", games([2]string{"-1", "15"}, [2]string{"21", "15"}), false},
		{"tied game", games([2]string{"21", "21"}, [2]string{"21", "15"}), false},
		{"split with no decider", games([2]string{"21", "15"}, [2]string{"15", "21"}), false},
		{"sweep plus extra game", games([2]string{"21", "15"}, [2]string{"21", "15"}, [2]string{"21", "15"}), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := unreportedWeekMatch(1, ada.ID, alan.ID)
			env.insertMatches(t, m)

			err := env.matches.ReportScore(ctx, m.ID, tc.raw)
			if tc.valid {
				require.NoError(t, err)
			} else {
				assert.True(t, IsValidation(err), "expected validation error, got %v", err)
			}
		})
	}
}

func TestReportScorePersistsResult(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ada := env.addPlayer(t, "Ada", "Lovelace", "AL001")
	alan := env.addPlayer(t, "Alan", "Turing", "AT001")
	m := unreportedWeekMatch(1, ada.ID, alan.ID)
	env.insertMatches(t, m)

	err := env.matches.ReportScore(ctx, m.ID, games([2]string{"21", "15"}, [2]string{"18", "21"}, [2]string{"21", "19"}))
	require.NoError(t, err)

	got, err := env.store.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.Reported)
	require.NotNil(t, got.Score1)
	assert.Equal(t, 60, *got.Score1)
	assert.Equal(t, 55, *got.Score2)

	winner := got.WinnerID()
	require.NotNil(t, winner)
	assert.Equal(t, ada.ID, *winner)
}

func TestReportScoreGating(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ada := env.addPlayer(t, "Ada", "Lovelace", "AL001")
	alan := env.addPlayer(t, "Alan", "Turing", "AT001")
	win := games([2]string{"21", "15"}, [2]string{"21", "18"})

	t.Run("wrong week", func(t *testing.T) {
		m := unreportedWeekMatch(2, ada.ID, alan.ID)
		env.insertMatches(t, m)
		err := env.matches.ReportScore(ctx, m.ID, win)
		assert.True(t, IsStateConflict(err))
	})

	t.Run("bye", func(t *testing.T) {
		bye := league.Match{ID: uuid.New(), Week: utils.Ptr(1), Player1ID: utils.Ptr(ada.ID), Reported: true, Score1: utils.Ptr(0), Score2: utils.Ptr(0)}
		env.insertMatches(t, bye)
		err := env.matches.ReportScore(ctx, bye.ID, win)
		assert.True(t, IsStateConflict(err))
	})

	t.Run("already reported", func(t *testing.T) {
		m := unreportedWeekMatch(1, ada.ID, alan.ID)
		env.insertMatches(t, m)
		require.NoError(t, env.matches.ReportScore(ctx, m.ID, win))
		err := env.matches.ReportScore(ctx, m.ID, win)
		assert.True(t, IsStateConflict(err))
	})

	t.Run("playoff match outside open round", func(t *testing.T) {
		m := playoffMatch(2, 1, utils.Ptr(ada.ID), utils.Ptr(alan.ID))
		env.insertMatches(t, m)
		env.setPlayoffRound(t, 1)
		err := env.matches.ReportScore(ctx, m.ID, win)
		assert.True(t, IsStateConflict(err))
	})

	t.Run("missing match", func(t *testing.T) {
		err := env.matches.ReportScore(ctx, uuid.New(), win)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeleteMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ada := env.addPlayer(t, "Ada", "Lovelace", "AL001")
	alan := env.addPlayer(t, "Alan", "Turing", "AT001")
	m := unreportedWeekMatch(1, ada.ID, alan.ID)
	env.insertMatches(t, m)

	require.NoError(t, env.matches.DeleteMatch(ctx, m.ID))

	err := env.matches.DeleteMatch(ctx, m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
