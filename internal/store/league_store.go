package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/cectt/ttleague/internal/league"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// LeagueStore is the persistence collaborator for players, matches and
// settings. Reads run against the pool; writes that are part of a larger
// operation take the caller's transaction.
type LeagueStore struct {
	db *sqlx.DB
}

func NewLeagueStore(db *sqlx.DB) *LeagueStore {
	return &LeagueStore{db: db}
}

const matchOrderClause = `ORDER BY (match_number IS NULL), match_number ASC, created_at ASC, id ASC`

// --- players ---

func (s *LeagueStore) CreatePlayer(ctx context.Context, player *league.Player) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO players (id, first_name, last_name, cec_id, approved, approved_at, created_at)
		VALUES (:id, :first_name, :last_name, :cec_id, :approved, :approved_at, :created_at)`, player)
	return err
}

func (s *LeagueStore) GetPlayer(ctx context.Context, id uuid.UUID) (*league.Player, error) {
	var player league.Player
	err := s.db.GetContext(ctx, &player, "SELECT * FROM players WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *LeagueStore) GetPlayerByCecID(ctx context.Context, cecID string) (*league.Player, error) {
	var player league.Player
	err := s.db.GetContext(ctx, &player, "SELECT * FROM players WHERE UPPER(cec_id) = UPPER(?)", cecID)
	if err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *LeagueStore) ListPlayers(ctx context.Context) ([]league.Player, error) {
	var players []league.Player
	err := s.db.SelectContext(ctx, &players, "SELECT * FROM players ORDER BY created_at ASC, id ASC")
	return players, err
}

func (s *LeagueStore) ListApprovedPlayers(ctx context.Context) ([]league.Player, error) {
	var players []league.Player
	err := s.db.SelectContext(ctx, &players, "SELECT * FROM players WHERE approved = 1 ORDER BY created_at ASC, id ASC")
	return players, err
}

func (s *LeagueStore) SetPlayerApproval(ctx context.Context, id uuid.UUID, approved bool, approvedAt *time.Time) error {
	res, err := s.db.ExecContext(ctx, "UPDATE players SET approved = ?, approved_at = ? WHERE id = ?", approved, approvedAt, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// CountReportedMatches counts reported two-player matches the player took
// part in. Deleting a player is only safe while this is zero.
func (s *LeagueStore) CountReportedMatches(ctx context.Context, playerID uuid.UUID) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM matches
		WHERE (player1_id = ? OR player2_id = ?)
		  AND reported = 1
		  AND player2_id IS NOT NULL`, playerID, playerID)
	return count, err
}

func (s *LeagueStore) CountPlayoffMatches(ctx context.Context, playerID uuid.UUID) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM matches WHERE (player1_id = ? OR player2_id = ?) AND playoff = 1",
		playerID, playerID)
	return count, err
}

// DeletePlayerTx removes the player and every match referencing them.
func (s *LeagueStore) DeletePlayerTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM matches WHERE player1_id = ? OR player2_id = ?", id, id); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "DELETE FROM players WHERE id = ?", id)
	return err
}

// --- matches ---

func (s *LeagueStore) CreateMatchesTx(ctx context.Context, tx *sqlx.Tx, matches []league.Match) error {
	if len(matches) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO matches (
			id, week, player1_id, player2_id,
			game1_score1, game1_score2, game2_score1, game2_score2, game3_score1, game3_score2,
			score1, score2, reported, double_forfeit, playoff, playoff_round, match_number, created_at
		) VALUES (
			:id, :week, :player1_id, :player2_id,
			:game1_score1, :game1_score2, :game2_score1, :game2_score2, :game3_score1, :game3_score2,
			:score1, :score2, :reported, :double_forfeit, :playoff, :playoff_round, :match_number, :created_at
		)`, matches)
	return err
}

func (s *LeagueStore) GetMatch(ctx context.Context, id uuid.UUID) (*league.Match, error) {
	var match league.Match
	err := s.db.GetContext(ctx, &match, "SELECT * FROM matches WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &match, nil
}

func (s *LeagueStore) ListWeekMatches(ctx context.Context, week int) ([]league.Match, error) {
	var matches []league.Match
	err := s.db.SelectContext(ctx, &matches,
		"SELECT * FROM matches WHERE playoff = 0 AND week = ? ORDER BY created_at ASC, id ASC", week)
	return matches, err
}

func (s *LeagueStore) ListMatchesForPlayer(ctx context.Context, playerID uuid.UUID) ([]league.Match, error) {
	var matches []league.Match
	err := s.db.SelectContext(ctx, &matches, `SELECT * FROM matches
		WHERE (player1_id = ? OR player2_id = ?)
		  AND reported = 1
		  AND player2_id IS NOT NULL
		ORDER BY created_at DESC, id DESC`, playerID, playerID)
	return matches, err
}

func (s *LeagueStore) ListAllMatches(ctx context.Context) ([]league.Match, error) {
	var matches []league.Match
	err := s.db.SelectContext(ctx, &matches, `SELECT * FROM matches
		ORDER BY playoff ASC, COALESCE(week, playoff_round) ASC, created_at ASC, id ASC`)
	return matches, err
}

// ListReportedMatches returns reported two-player matches, the qualifying
// input for standings. Playoff rows are excluded unless requested.
func (s *LeagueStore) ListReportedMatches(ctx context.Context, includePlayoffs bool) ([]league.Match, error) {
	query := `SELECT * FROM matches
		WHERE reported = 1
		  AND player1_id IS NOT NULL
		  AND player2_id IS NOT NULL`
	if !includePlayoffs {
		query += " AND playoff = 0"
	}
	var matches []league.Match
	err := s.db.SelectContext(ctx, &matches, query)
	return matches, err
}

func (s *LeagueStore) ListPlayoffMatches(ctx context.Context) ([]league.Match, error) {
	var matches []league.Match
	err := s.db.SelectContext(ctx, &matches, `SELECT * FROM matches WHERE playoff = 1
		ORDER BY playoff_round ASC, (match_number IS NULL), match_number ASC, created_at ASC, id ASC`)
	return matches, err
}

func (s *LeagueStore) ListRoundMatches(ctx context.Context, round int) ([]league.Match, error) {
	var matches []league.Match
	err := s.db.SelectContext(ctx, &matches,
		"SELECT * FROM matches WHERE playoff = 1 AND playoff_round = ? "+matchOrderClause, round)
	return matches, err
}

func (s *LeagueStore) ListRoundMatchesTx(ctx context.Context, tx *sqlx.Tx, round int) ([]league.Match, error) {
	var matches []league.Match
	err := tx.SelectContext(ctx, &matches,
		"SELECT * FROM matches WHERE playoff = 1 AND playoff_round = ? "+matchOrderClause, round)
	return matches, err
}

func (s *LeagueStore) ListPlayoffRoundNumbers(ctx context.Context) ([]int, error) {
	var rounds []int
	err := s.db.SelectContext(ctx, &rounds,
		"SELECT DISTINCT playoff_round FROM matches WHERE playoff = 1 ORDER BY playoff_round ASC")
	return rounds, err
}

func (s *LeagueStore) PlayoffsExist(ctx context.Context) (bool, error) {
	var exists int
	err := s.db.GetContext(ctx, &exists, "SELECT COUNT(*) FROM (SELECT 1 FROM matches WHERE playoff = 1 LIMIT 1)")
	return exists > 0, err
}

func (s *LeagueStore) RoundExistsTx(ctx context.Context, tx *sqlx.Tx, round int) (bool, error) {
	var exists int
	err := tx.GetContext(ctx, &exists,
		"SELECT COUNT(*) FROM (SELECT 1 FROM matches WHERE playoff = 1 AND playoff_round = ? LIMIT 1)", round)
	return exists > 0, err
}

// RoundMatchCounts maps each playoff round to its match count, highest round
// first. The champion lookup wants the unique single-match round.
func (s *LeagueStore) RoundMatchCounts(ctx context.Context) ([]RoundCount, error) {
	var counts []RoundCount
	err := s.db.SelectContext(ctx, &counts, `SELECT playoff_round AS round, COUNT(*) AS count
		FROM matches WHERE playoff = 1
		GROUP BY playoff_round ORDER BY playoff_round DESC`)
	return counts, err
}

type RoundCount struct {
	Round int `db:"round"`
	Count int `db:"count"`
}

// MaxRegularWeek returns the highest generated week, 0 when no regular
// season exists.
func (s *LeagueStore) MaxRegularWeek(ctx context.Context) (int, error) {
	var week sql.NullInt64
	err := s.db.GetContext(ctx, &week, "SELECT MAX(week) FROM matches WHERE playoff = 0")
	if err != nil {
		return 0, err
	}
	return int(week.Int64), nil
}

func (s *LeagueStore) CountUnreportedRegular(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM matches
		WHERE playoff = 0 AND reported = 0 AND player2_id IS NOT NULL`)
	return count, err
}

func (s *LeagueStore) CountReportedRegular(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM matches WHERE playoff = 0 AND reported = 1")
	return count, err
}

func (s *LeagueStore) CountReportedPlayoff(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM matches WHERE playoff = 1 AND reported = 1")
	return count, err
}

// ReportScore writes game scores and totals onto an unreported match. The
// reported flag doubles as a compare-and-set guard: a concurrent second
// submission matches zero rows and is reported back as such.
func (s *LeagueStore) ReportScore(ctx context.Context, id uuid.UUID, games []league.GameScore, total1, total2 int) (bool, error) {
	padded := make([]*int, 2*league.MaxGames)
	for i, g := range games {
		g := g
		padded[2*i] = &g.Score1
		padded[2*i+1] = &g.Score2
	}
	res, err := s.db.ExecContext(ctx, `UPDATE matches
		SET score1 = ?, score2 = ?,
		    game1_score1 = ?, game1_score2 = ?,
		    game2_score1 = ?, game2_score2 = ?,
		    game3_score1 = ?, game3_score2 = ?,
		    double_forfeit = 0,
		    reported = 1
		WHERE id = ? AND reported = 0`,
		total1, total2,
		padded[0], padded[1], padded[2], padded[3], padded[4], padded[5],
		id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (s *LeagueStore) SetMatchPlayerTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, slot int, playerID uuid.UUID) error {
	column := "player1_id"
	if slot == 2 {
		column = "player2_id"
	}
	_, err := tx.ExecContext(ctx, "UPDATE matches SET "+column+" = ? WHERE id = ?", playerID, id)
	return err
}

func (s *LeagueStore) DeleteMatch(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM matches WHERE id = ?", id)
	return err
}

func (s *LeagueStore) DeleteRegularMatchesTx(ctx context.Context, tx *sqlx.Tx) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM matches WHERE playoff = 0")
	return err
}

func (s *LeagueStore) DeletePlayoffMatchesTx(ctx context.Context, tx *sqlx.Tx) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM matches WHERE playoff = 1")
	return err
}

// CountForfeitCandidates counts unreported two-player matches in weeks
// [from, to), the rows a week jump would auto-forfeit.
func (s *LeagueStore) CountForfeitCandidates(ctx context.Context, from, to int) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM matches
		WHERE playoff = 0 AND week IS NOT NULL AND week >= ? AND week < ?
		  AND player2_id IS NOT NULL AND reported = 0`, from, to)
	return count, err
}

// ForfeitWeekRangeTx double-forfeits unreported two-player matches in weeks
// [from, to) and returns how many rows it touched.
func (s *LeagueStore) ForfeitWeekRangeTx(ctx context.Context, tx *sqlx.Tx, from, to int) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE matches
		SET reported = 1, double_forfeit = 1,
		    score1 = 0, score2 = 0,
		    game1_score1 = NULL, game1_score2 = NULL,
		    game2_score1 = NULL, game2_score2 = NULL,
		    game3_score1 = NULL, game3_score2 = NULL
		WHERE playoff = 0 AND week IS NOT NULL AND week >= ? AND week < ?
		  AND player2_id IS NOT NULL AND reported = 0`, from, to)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ResetTx wipes all league data back to a fresh state.
func (s *LeagueStore) ResetTx(ctx context.Context, tx *sqlx.Tx) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM matches"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM players"); err != nil {
		return err
	}
	if err := s.SetSettingTx(ctx, tx, league.SettingCurrentWeek, "1"); err != nil {
		return err
	}
	return s.SetSettingTx(ctx, tx, league.SettingCurrentPlayoffRound, strconv.Itoa(league.NoActiveRound))
}

// --- settings ---

func (s *LeagueStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM settings WHERE key = ?", key)
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *LeagueStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value",
		key, value)
	return err
}

func (s *LeagueStore) SetSettingTx(ctx context.Context, tx *sqlx.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value",
		key, value)
	return err
}

// CurrentWeek reads the open week, defaulting to 1 when the setting is
// missing or mangled.
func (s *LeagueStore) CurrentWeek(ctx context.Context) (int, error) {
	value, err := s.GetSetting(ctx, league.SettingCurrentWeek)
	if errors.Is(err, sql.ErrNoRows) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	week, err := strconv.Atoi(value)
	if err != nil || week < 1 {
		return 1, nil
	}
	return week, nil
}

func (s *LeagueStore) SetCurrentWeekTx(ctx context.Context, tx *sqlx.Tx, week int) error {
	return s.SetSettingTx(ctx, tx, league.SettingCurrentWeek, strconv.Itoa(week))
}

// CurrentPlayoffRound reads the open playoff round, defaulting to
// NoActiveRound when the setting is missing or mangled.
func (s *LeagueStore) CurrentPlayoffRound(ctx context.Context) (int, error) {
	value, err := s.GetSetting(ctx, league.SettingCurrentPlayoffRound)
	if errors.Is(err, sql.ErrNoRows) {
		return league.NoActiveRound, nil
	}
	if err != nil {
		return 0, err
	}
	round, err := strconv.Atoi(value)
	if err != nil {
		return league.NoActiveRound, nil
	}
	return round, nil
}

func (s *LeagueStore) SetCurrentPlayoffRoundTx(ctx context.Context, tx *sqlx.Tx, round int) error {
	return s.SetSettingTx(ctx, tx, league.SettingCurrentPlayoffRound, strconv.Itoa(round))
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
