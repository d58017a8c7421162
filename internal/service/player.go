package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cectt/ttleague/internal/league"
	"github.com/cectt/ttleague/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PlayerService struct {
	db        *sqlx.DB
	store     *store.LeagueStore
	standings *StandingsService
}

func NewPlayerService(db *sqlx.DB, leagueStore *store.LeagueStore, standings *StandingsService) *PlayerService {
	return &PlayerService{db: db, store: leagueStore, standings: standings}
}

// Signup registers a new player awaiting admin approval. CEC IDs are stored
// uppercased and must be unique.
func (s *PlayerService) Signup(ctx context.Context, firstName, lastName, cecID string) (*league.Player, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	cecID = strings.ToUpper(strings.TrimSpace(cecID))

	if firstName == "" || lastName == "" {
		return nil, validationf("First and last name are required.")
	}
	if cecID == "" {
		return nil, validationf("CEC ID is required.")
	}

	_, err := s.store.GetPlayerByCecID(ctx, cecID)
	if err == nil {
		return nil, conflictf("A player with CEC ID %s already exists.", cecID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checking CEC ID: %w", err)
	}

	player := &league.Player{
		ID:        uuid.New(),
		FirstName: firstName,
		LastName:  lastName,
		CecID:     cecID,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreatePlayer(ctx, player); err != nil {
		return nil, fmt.Errorf("creating player: %w", err)
	}
	return player, nil
}

func (s *PlayerService) Approve(ctx context.Context, playerID uuid.UUID) error {
	now := time.Now()
	err := s.store.SetPlayerApproval(ctx, playerID, true, &now)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("player %s: %w", playerID, ErrNotFound)
	}
	return err
}

// Reject removes a pending signup. It shares the delete guard, so a player
// who somehow accrued results cannot be rejected away.
func (s *PlayerService) Reject(ctx context.Context, playerID uuid.UUID) error {
	return s.DeletePlayer(ctx, playerID)
}

// DeletePlayer removes a player and their unreported pairings. Players with
// reported results or any playoff involvement are kept: removing them would
// falsify standings and tear holes in the bracket.
func (s *PlayerService) DeletePlayer(ctx context.Context, playerID uuid.UUID) error {
	_, err := s.store.GetPlayer(ctx, playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("player %s: %w", playerID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("loading player: %w", err)
	}

	reported, err := s.store.CountReportedMatches(ctx, playerID)
	if err != nil {
		return fmt.Errorf("counting reported matches: %w", err)
	}
	playoff, err := s.store.CountPlayoffMatches(ctx, playerID)
	if err != nil {
		return fmt.Errorf("counting playoff matches: %w", err)
	}
	if reported > 0 || playoff > 0 {
		return conflictf("Cannot delete a player with reported or playoff matches.")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.store.DeletePlayerTx(ctx, tx, playerID); err != nil {
		return fmt.Errorf("deleting player: %w", err)
	}
	return tx.Commit()
}

// PlayerProfile is the per-player summary page model: record, points, rank
// and full match history, split between regular season and playoffs.
type PlayerProfile struct {
	Player        league.Player
	Rank          int
	Wins          int
	Losses        int
	PlayoffWins   int
	PlayoffLosses int
	PointsFor     int
	PointsAgainst int
	WinPct        float64
	History       []MatchHistoryEntry
}

type MatchHistoryEntry struct {
	Match        league.Match
	OpponentName string
	Won          *bool
	Summary      string
}

func (s *PlayerService) Profile(ctx context.Context, playerID uuid.UUID) (*PlayerProfile, error) {
	player, err := s.store.GetPlayer(ctx, playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("player %s: %w", playerID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading player: %w", err)
	}

	profile := &PlayerProfile{Player: *player}

	standings, err := s.standings.Standings(ctx, false)
	if err != nil {
		return nil, err
	}
	for _, row := range standings {
		if row.PlayerID == playerID {
			profile.Rank = row.Rank
			break
		}
	}

	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	names := make(map[uuid.UUID]string, len(players))
	for _, p := range players {
		names[p.ID] = p.FullName()
	}

	matches, err := s.store.ListMatchesForPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("listing matches: %w", err)
	}

	for i := range matches {
		m := matches[i]
		total1, total2 := m.AggregatePoints()
		forPoints, againstPoints := total1, total2
		opponentID := m.Player2ID
		if m.Player2ID != nil && *m.Player2ID == playerID {
			forPoints, againstPoints = total2, total1
			opponentID = m.Player1ID
		}

		var won *bool
		if winner := m.WinnerID(); winner != nil {
			v := *winner == playerID
			won = &v
		} else if m.DoubleForfeit {
			v := false
			won = &v
		}

		if !m.DoubleForfeit {
			profile.PointsFor += forPoints
			profile.PointsAgainst += againstPoints
		}
		if won != nil {
			if *won {
				if m.Playoff {
					profile.PlayoffWins++
				} else {
					profile.Wins++
				}
			} else {
				if m.Playoff {
					profile.PlayoffLosses++
				} else {
					profile.Losses++
				}
			}
		}

		entry := MatchHistoryEntry{Match: m, Won: won}
		if opponentID != nil {
			entry.OpponentName = names[*opponentID]
		}
		if summary := m.Summary(); summary != nil {
			entry.Summary = *summary
		}
		profile.History = append(profile.History, entry)
	}

	played := profile.Wins + profile.Losses + profile.PlayoffWins + profile.PlayoffLosses
	if played > 0 {
		profile.WinPct = float64(profile.Wins+profile.PlayoffWins) / float64(played) * 100
	}
	return profile, nil
}
