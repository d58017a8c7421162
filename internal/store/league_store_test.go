package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/cectt/ttleague/internal/league"
	"github.com/cectt/ttleague/internal/utils"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
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

func createTestPlayer(t *testing.T, s *LeagueStore, firstName, lastName, cecID string, approved bool) *league.Player {
	t.Helper()
	player := &league.Player{
		ID:        uuid.New(),
		FirstName: firstName,
		LastName:  lastName,
		CecID:     cecID,
		Approved:  approved,
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.CreatePlayer(context.Background(), player))
	return player
}

func TestPlayerRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	s := NewLeagueStore(db)
	ctx := context.Background()

	created := createTestPlayer(t, s, "Ada", "Lovelace", "AL001", false)

	got, err := s.GetPlayer(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.FirstName)
	assert.False(t, got.Approved)

	byCec, err := s.GetPlayerByCecID(ctx, "al001")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byCec.ID)

	now := time.Now()
	require.NoError(t, s.SetPlayerApproval(ctx, created.ID, true, &now))

	approved, err := s.ListApprovedPlayers(ctx)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.True(t, approved[0].Approved)
}

func TestSetPlayerApprovalMissingPlayer(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	s := NewLeagueStore(db)

	err := s.SetPlayerApproval(context.Background(), uuid.New(), true, nil)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestReportScoreIsCompareAndSet(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	s := NewLeagueStore(db)
	ctx := context.Background()

	p1 := createTestPlayer(t, s, "Ada", "Lovelace", "AL001", true)
	p2 := createTestPlayer(t, s, "Alan", "Turing", "AT001", true)

	match := league.Match{
		ID:        uuid.New(),
		Week:      utils.Ptr(1),
		Player1ID: utils.Ptr(p1.ID),
		Player2ID: utils.Ptr(p2.ID),
		CreatedAt: time.Now(),
	}
	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateMatchesTx(ctx, tx, []league.Match{match}))
	require.NoError(t, tx.Commit())

	games := []league.GameScore{{Score1: 21, Score2: 15}, {Score1: 21, Score2: 18}}
	ok, err := s.ReportScore(ctx, match.ID, games, 42, 33)
	require.NoError(t, err)
	assert.True(t, ok)

	// The second write must lose: the reported flag already flipped.
	ok, err = s.ReportScore(ctx, match.ID, games, 42, 33)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.True(t, got.Reported)
	require.NotNil(t, got.Game2Score2)
	assert.Equal(t, 18, *got.Game2Score2)
	assert.Nil(t, got.Game3Score1)
}

func TestForfeitWeekRange(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	s := NewLeagueStore(db)
	ctx := context.Background()

	p1 := createTestPlayer(t, s, "Ada", "Lovelace", "AL001", true)
	p2 := createTestPlayer(t, s, "Alan", "Turing", "AT001", true)

	rows := []league.Match{
		{ID: uuid.New(), Week: utils.Ptr(1), Player1ID: utils.Ptr(p1.ID), Player2ID: utils.Ptr(p2.ID), CreatedAt: time.Now()},
		{ID: uuid.New(), Week: utils.Ptr(2), Player1ID: utils.Ptr(p1.ID), Player2ID: utils.Ptr(p2.ID), CreatedAt: time.Now()},
		// A bye is outside the forfeit sweep even when its week is skipped.
		{ID: uuid.New(), Week: utils.Ptr(2), Player1ID: utils.Ptr(p2.ID), Reported: true, Score1: utils.Ptr(0), Score2: utils.Ptr(0), CreatedAt: time.Now()},
		{ID: uuid.New(), Week: utils.Ptr(3), Player1ID: utils.Ptr(p1.ID), Player2ID: utils.Ptr(p2.ID), CreatedAt: time.Now()},
	}
	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateMatchesTx(ctx, tx, rows))
	require.NoError(t, tx.Commit())

	pending, err := s.CountForfeitCandidates(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)

	tx, err = db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	forfeited, err := s.ForfeitWeekRangeTx(ctx, tx, 1, 3)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.EqualValues(t, 2, forfeited)

	week3, err := s.ListWeekMatches(ctx, 3)
	require.NoError(t, err)
	require.Len(t, week3, 1)
	assert.False(t, week3[0].Reported)

	week1, err := s.ListWeekMatches(ctx, 1)
	require.NoError(t, err)
	require.Len(t, week1, 1)
	assert.True(t, week1[0].Reported)
	assert.True(t, week1[0].DoubleForfeit)
}

func TestSettingsDefaults(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	s := NewLeagueStore(db)
	ctx := context.Background()

	week, err := s.CurrentWeek(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, week)

	round, err := s.CurrentPlayoffRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, league.NoActiveRound, round)

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, s.SetCurrentWeekTx(ctx, tx, 5))
	require.NoError(t, s.SetCurrentPlayoffRoundTx(ctx, tx, 2))
	require.NoError(t, tx.Commit())

	week, err = s.CurrentWeek(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, week)

	round, err = s.CurrentPlayoffRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, round)
}

func TestRoundMatchOrdering(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	s := NewLeagueStore(db)
	ctx := context.Background()

	p1 := createTestPlayer(t, s, "Ada", "Lovelace", "AL001", true)
	p2 := createTestPlayer(t, s, "Alan", "Turing", "AT001", true)

	base := time.Now()
	rows := []league.Match{
		{ID: uuid.New(), Player1ID: utils.Ptr(p1.ID), Player2ID: utils.Ptr(p2.ID), Playoff: true, PlayoffRound: utils.Ptr(1), MatchNumber: utils.Ptr(2), CreatedAt: base},
		{ID: uuid.New(), Player1ID: utils.Ptr(p1.ID), Player2ID: utils.Ptr(p2.ID), Playoff: true, PlayoffRound: utils.Ptr(1), MatchNumber: utils.Ptr(1), CreatedAt: base.Add(time.Second)},
		{ID: uuid.New(), Player1ID: utils.Ptr(p1.ID), Player2ID: utils.Ptr(p2.ID), Playoff: true, PlayoffRound: utils.Ptr(1), CreatedAt: base.Add(2 * time.Second)},
	}
	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateMatchesTx(ctx, tx, rows))
	require.NoError(t, tx.Commit())

	got, err := s.ListRoundMatches(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 1, *got[0].MatchNumber)
	assert.Equal(t, 2, *got[1].MatchNumber)
	assert.Nil(t, got[2].MatchNumber)
}

func TestResetTx(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	s := NewLeagueStore(db)
	ctx := context.Background()

	p1 := createTestPlayer(t, s, "Ada", "Lovelace", "AL001", true)
	p2 := createTestPlayer(t, s, "Alan", "Turing", "AT001", true)
	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateMatchesTx(ctx, tx, []league.Match{
		{ID: uuid.New(), Week: utils.Ptr(1), Player1ID: utils.Ptr(p1.ID), Player2ID: utils.Ptr(p2.ID), CreatedAt: time.Now()},
	}))
	require.NoError(t, s.SetCurrentWeekTx(ctx, tx, 4))
	require.NoError(t, tx.Commit())

	tx, err = db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, s.ResetTx(ctx, tx))
	require.NoError(t, tx.Commit())

	players, err := s.ListPlayers(ctx)
	require.NoError(t, err)
	assert.Empty(t, players)

	week, err := s.CurrentWeek(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, week)

	round, err := s.CurrentPlayoffRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, league.NoActiveRound, round)
}
