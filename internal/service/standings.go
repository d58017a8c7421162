package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/cectt/ttleague/internal/league"
	"github.com/cectt/ttleague/internal/store"
	"github.com/google/uuid"
)

// PlayerStanding is one ranked row of the standings table.
type PlayerStanding struct {
	PlayerID      uuid.UUID
	FirstName     string
	LastName      string
	Wins          int
	Losses        int
	PointsScored  int
	PointsAgainst int
	PointDiff     int
	Rank          int
}

func (s *PlayerStanding) FullName() string {
	return s.FirstName + " " + s.LastName
}

type StandingsService struct {
	store *store.LeagueStore
}

func NewStandingsService(leagueStore *store.LeagueStore) *StandingsService {
	return &StandingsService{store: leagueStore}
}

// Standings folds every reported two-player match into per-player totals and
// ranks the approved roster. A double forfeit is a loss for both sides and
// contributes no points; a tied result with no per-game data records neither
// a win nor a loss but still counts its points.
func (s *StandingsService) Standings(ctx context.Context, includePlayoffs bool) ([]PlayerStanding, error) {
	players, err := s.store.ListApprovedPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}

	stats := make(map[uuid.UUID]*PlayerStanding, len(players))
	for _, p := range players {
		stats[p.ID] = &PlayerStanding{
			PlayerID:  p.ID,
			FirstName: p.FirstName,
			LastName:  p.LastName,
		}
	}

	matches, err := s.store.ListReportedMatches(ctx, includePlayoffs)
	if err != nil {
		return nil, fmt.Errorf("listing reported matches: %w", err)
	}

	for i := range matches {
		applyMatch(stats, &matches[i])
	}

	rows := make([]PlayerStanding, 0, len(stats))
	for _, row := range stats {
		row.PointDiff = row.PointsScored - row.PointsAgainst
		rows = append(rows, *row)
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.PointDiff != b.PointDiff {
			return a.PointDiff > b.PointDiff
		}
		if a.PointsScored != b.PointsScored {
			return a.PointsScored > b.PointsScored
		}
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		return a.FirstName < b.FirstName
	})

	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}

// applyMatch folds one match into the stats map. Matches involving players
// outside the map (unapproved or deleted mid-season) contribute only to the
// sides that are present.
func applyMatch(stats map[uuid.UUID]*PlayerStanding, m *league.Match) {
	s1 := stats[*m.Player1ID]
	s2 := stats[*m.Player2ID]
	if s1 == nil && s2 == nil {
		return
	}

	if m.DoubleForfeit {
		if s1 != nil {
			s1.Losses++
		}
		if s2 != nil {
			s2.Losses++
		}
		return
	}

	total1, total2 := m.AggregatePoints()
	if s1 != nil {
		s1.PointsScored += total1
		s1.PointsAgainst += total2
	}
	if s2 != nil {
		s2.PointsScored += total2
		s2.PointsAgainst += total1
	}

	winner := m.WinnerID()
	if winner == nil {
		return
	}
	if *winner == *m.Player1ID {
		if s1 != nil {
			s1.Wins++
		}
		if s2 != nil {
			s2.Losses++
		}
	} else {
		if s2 != nil {
			s2.Wins++
		}
		if s1 != nil {
			s1.Losses++
		}
	}
}
