package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cectt/ttleague/internal/league"
	"github.com/cectt/ttleague/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type MatchService struct {
	db      *sqlx.DB
	store   *store.LeagueStore
	bracket *BracketService
}

func NewMatchService(db *sqlx.DB, leagueStore *store.LeagueStore, bracket *BracketService) *MatchService {
	return &MatchService{db: db, store: leagueStore, bracket: bracket}
}

func autoAdvanceEnabled() bool {
	return strings.EqualFold(os.Getenv("ADVANCE_MODE"), "auto")
}

// parseGames turns the raw form inputs into completed games. A game row is
// either fully blank (skipped) or two in-range integers.
func parseGames(raw [league.MaxGames][2]string) ([]league.GameScore, error) {
	var games []league.GameScore
	for i, pair := range raw {
		a := strings.TrimSpace(pair[0])
		b := strings.TrimSpace(pair[1])
		if a == "" && b == "" {
			continue
		}
		if a == "" || b == "" {
			return nil, validationf("Game %d is missing a score.", i+1)
		}
		score1, err1 := strconv.Atoi(a)
		score2, err2 := strconv.Atoi(b)
		if err1 != nil || err2 != nil {
			return nil, validationf("Game %d scores must be whole numbers.", i+1)
		}
		if score1 < 0 || score1 > 99 || score2 < 0 || score2 > 99 {
			return nil, validationf("Game %d scores must be between 0 and 99.", i+1)
		}
		if score1 == score2 {
			return nil, validationf("Game %d cannot end in a tie.", i+1)
		}
		games = append(games, league.GameScore{Score1: score1, Score2: score2})
	}
	return games, nil
}

// validateBestOfThree enforces the match format: at least two games, and a
// winner with exactly two game wins.
func validateBestOfThree(games []league.GameScore) error {
	if len(games) < 2 {
		return validationf("At least two games are required.")
	}
	wins1, wins2 := league.GameWins(games)
	if wins1 == 3 || wins2 == 3 {
		return validationf("A third game cannot be played after a player has won two.")
	}
	if wins1 != 2 && wins2 != 2 {
		return validationf("The match is incomplete: a player must win two games.")
	}
	return nil
}

// ReportScore records a best-of-three result on a match. Regular-season
// matches are only reportable during their week and playoff matches only
// during their round; byes are never reportable. The write itself is a
// compare-and-set on the reported flag, so racing submissions lose cleanly.
func (s *MatchService) ReportScore(ctx context.Context, matchID uuid.UUID, raw [league.MaxGames][2]string) error {
	m, err := s.store.GetMatch(ctx, matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("match %s: %w", matchID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("loading match: %w", err)
	}

	if m.IsBye() {
		return conflictf("Bye matches cannot be reported.")
	}
	if m.Reported {
		return conflictf("This match has already been reported.")
	}

	if m.Playoff {
		round, err := s.store.CurrentPlayoffRound(ctx)
		if err != nil {
			return fmt.Errorf("reading current round: %w", err)
		}
		if round == league.NoActiveRound || m.PlayoffRound == nil || *m.PlayoffRound != round {
			return conflictf("This match is not in the current playoff round.")
		}
	} else {
		week, err := s.store.CurrentWeek(ctx)
		if err != nil {
			return fmt.Errorf("reading current week: %w", err)
		}
		if m.Week == nil || *m.Week != week {
			return conflictf("This match is not in the current week.")
		}
	}

	games, err := parseGames(raw)
	if err != nil {
		return err
	}
	if err := validateBestOfThree(games); err != nil {
		return err
	}

	var total1, total2 int
	for _, g := range games {
		total1 += g.Score1
		total2 += g.Score2
	}

	ok, err := s.store.ReportScore(ctx, matchID, games, total1, total2)
	if err != nil {
		return fmt.Errorf("saving result: %w", err)
	}
	if !ok {
		return conflictf("This match has already been reported.")
	}

	if m.Playoff && autoAdvanceEnabled() {
		if err := s.bracket.AutoAdvance(ctx); err != nil {
			return fmt.Errorf("auto-advancing bracket: %w", err)
		}
	}
	return nil
}

// DeleteMatch removes a match outright. Admin-only; used to correct a
// mistaken pairing before results exist for it.
func (s *MatchService) DeleteMatch(ctx context.Context, matchID uuid.UUID) error {
	_, err := s.store.GetMatch(ctx, matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("match %s: %w", matchID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("loading match: %w", err)
	}
	return s.store.DeleteMatch(ctx, matchID)
}
