package service

import (
	"context"
	"testing"
	"time"

	"github.com/cectt/ttleague/internal/league"
	"github.com/cectt/ttleague/internal/store"
	"github.com/cectt/ttleague/internal/utils"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")
	database.SetMaxOpenConns(1)

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err, "Failed to create migrate driver instance")

	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"sqlite3",
		driver,
	)
	require.NoError(t, err, "Failed to create migrate instance")

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "Failed to apply migrations")
	}

	return database
}

type testEnv struct {
	db        *sqlx.DB
	store     *store.LeagueStore
	standings *StandingsService
	schedule  *ScheduleService
	bracket   *BracketService
	matches   *MatchService
	players   *PlayerService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	t.Cleanup(func() { db.Close() })

	leagueStore := store.NewLeagueStore(db)
	standings := NewStandingsService(leagueStore)
	bracket := NewBracketService(db, leagueStore, standings)
	return &testEnv{
		db:        db,
		store:     leagueStore,
		standings: standings,
		schedule:  NewScheduleService(db, leagueStore),
		bracket:   bracket,
		matches:   NewMatchService(db, leagueStore, bracket),
		players:   NewPlayerService(db, leagueStore, standings),
	}
}

func (env *testEnv) addPlayer(t *testing.T, firstName, lastName, cecID string) *league.Player {
	t.Helper()
	player := &league.Player{
		ID:        uuid.New(),
		FirstName: firstName,
		LastName:  lastName,
		CecID:     cecID,
		Approved:  true,
		CreatedAt: time.Now(),
	}
	require.NoError(t, env.store.CreatePlayer(context.Background(), player))
	return player
}

func (env *testEnv) insertMatches(t *testing.T, rows ...league.Match) {
	t.Helper()
	ctx := context.Background()
	tx, err := env.db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, env.store.CreateMatchesTx(ctx, tx, rows))
	require.NoError(t, tx.Commit())
}

// reportedWeekMatch builds a reported regular-season row where player 1 won
// both games with the given scores.
func reportedWeekMatch(week int, p1, p2 uuid.UUID, g1p1, g1p2, g2p1, g2p2 int) league.Match {
	return league.Match{
		ID:          uuid.New(),
		Week:        utils.Ptr(week),
		Player1ID:   utils.Ptr(p1),
		Player2ID:   utils.Ptr(p2),
		Game1Score1: utils.Ptr(g1p1),
		Game1Score2: utils.Ptr(g1p2),
		Game2Score1: utils.Ptr(g2p1),
		Game2Score2: utils.Ptr(g2p2),
		Score1:      utils.Ptr(g1p1 + g2p1),
		Score2:      utils.Ptr(g1p2 + g2p2),
		Reported:    true,
		CreatedAt:   time.Now(),
	}
}

func playoffMatch(round, matchNumber int, p1, p2 *uuid.UUID) league.Match {
	m := league.Match{
		ID:           uuid.New(),
		Player1ID:    p1,
		Player2ID:    p2,
		Playoff:      true,
		PlayoffRound: utils.Ptr(round),
		MatchNumber:  utils.Ptr(matchNumber),
		CreatedAt:    time.Now(),
	}
	return m
}

func (env *testEnv) setPlayoffRound(t *testing.T, round int) {
	t.Helper()
	ctx := context.Background()
	tx, err := env.db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, env.store.SetCurrentPlayoffRoundTx(ctx, tx, round))
	require.NoError(t, tx.Commit())
}

// reportWin marks a match as won by the given side with a clean 2-0.
func (env *testEnv) reportWin(t *testing.T, matchID uuid.UUID, bySide int) {
	t.Helper()
	games := []league.GameScore{{Score1: 21, Score2: 15}, {Score1: 21, Score2: 15}}
	total1, total2 := 42, 30
	if bySide == 2 {
		games = []league.GameScore{{Score1: 15, Score2: 21}, {Score1: 15, Score2: 21}}
		total1, total2 = 30, 42
	}
	ok, err := env.store.ReportScore(context.Background(), matchID, games, total1, total2)
	require.NoError(t, err)
	require.True(t, ok)
}
