package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cectt/ttleague/internal/league"
	"github.com/cectt/ttleague/internal/store"
	"github.com/cectt/ttleague/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// maxAdvancePasses bounds how many rounds a single auto-advance call can
// resolve. Byes can chain, so the loop needs a hard stop.
const maxAdvancePasses = 10

type BracketService struct {
	db        *sqlx.DB
	store     *store.LeagueStore
	standings *StandingsService
}

func NewBracketService(db *sqlx.DB, leagueStore *store.LeagueStore, standings *StandingsService) *BracketService {
	return &BracketService{db: db, store: leagueStore, standings: standings}
}

// AdvanceResult is the outcome of advancing one round: either the number of
// the newly opened round, or the champion when the final was just resolved.
type AdvanceResult struct {
	NextRound  int
	ChampionID *uuid.UUID
}

// largestBracketSize returns the biggest power of two that fits inside n.
func largestBracketSize(n int) int {
	size := 1
	for size*2 <= n {
		size *= 2
	}
	return size
}

// StartPlayoffs seeds a fresh bracket once the regular season is finished:
// a schedule must exist, every two-player regular match must be reported, and
// no bracket may exist yet. Replacing an existing bracket goes through
// ForceCreateBracket so reported playoff results are never discarded silently.
func (s *BracketService) StartPlayoffs(ctx context.Context) error {
	exists, err := s.store.PlayoffsExist(ctx)
	if err != nil {
		return fmt.Errorf("checking bracket: %w", err)
	}
	if exists {
		return conflictf("Playoffs have already been started. Use the rebuild action to recreate the bracket.")
	}
	maxWeek, err := s.store.MaxRegularWeek(ctx)
	if err != nil {
		return fmt.Errorf("checking season: %w", err)
	}
	if maxWeek == 0 {
		return conflictf("Cannot start playoffs: no regular season has been generated.")
	}
	unreported, err := s.store.CountUnreportedRegular(ctx)
	if err != nil {
		return fmt.Errorf("counting unreported matches: %w", err)
	}
	if unreported > 0 {
		return conflictf("Cannot start playoffs: %d regular-season match(es) are still unreported.", unreported)
	}
	return s.createBracket(ctx)
}

// ForceCreateBracket rebuilds the bracket regardless of season state. When
// reported playoff results would be thrown away it demands confirmation.
func (s *BracketService) ForceCreateBracket(ctx context.Context, confirmed bool) error {
	reported, err := s.store.CountReportedPlayoff(ctx)
	if err != nil {
		return fmt.Errorf("counting playoff results: %w", err)
	}
	if reported > 0 && !confirmed {
		return conflictf("Rebuilding the bracket will discard %d reported playoff result(s). Confirm to proceed.", reported)
	}
	return s.createBracket(ctx)
}

// buildBracketRows seeds a single-elimination bracket. When the field is not
// a power of two, the lowest seeds meet in a play-in round whose winners take
// over the bottom bracket seeds; the play-in match_number records the target
// seed its winner will occupy.
func buildBracketRows(seeds []uuid.UUID, now time.Time) []league.Match {
	n := len(seeds)
	bracketSize := largestBracketSize(n)
	numPlayIn := n - bracketSize
	directSeeds := bracketSize - numPlayIn

	var rows []league.Match

	for target := bracketSize; target > directSeeds; target-- {
		// Best of the play-in pool meets the worst; the stronger seed's
		// slot is the one being played for.
		opponent := n + directSeeds + 1 - target
		rows = append(rows, league.Match{
			ID:           uuid.New(),
			Player1ID:    utils.Ptr(seeds[target-1]),
			Player2ID:    utils.Ptr(seeds[opponent-1]),
			Playoff:      true,
			PlayoffRound: utils.Ptr(0),
			MatchNumber:  utils.Ptr(target),
			CreatedAt:    now,
		})
	}

	for k := 1; k <= bracketSize/2; k++ {
		high, low := k, bracketSize+1-k
		m := league.Match{
			ID:           uuid.New(),
			Playoff:      true,
			PlayoffRound: utils.Ptr(1),
			MatchNumber:  utils.Ptr(k),
			CreatedAt:    now,
		}
		if high <= directSeeds {
			m.Player1ID = utils.Ptr(seeds[high-1])
		}
		if low <= directSeeds {
			m.Player2ID = utils.Ptr(seeds[low-1])
		}
		rows = append(rows, m)
	}
	return rows
}

func (s *BracketService) seedOrder(ctx context.Context) ([]uuid.UUID, error) {
	standings, err := s.standings.Standings(ctx, false)
	if err != nil {
		return nil, err
	}
	seeds := make([]uuid.UUID, len(standings))
	for i, row := range standings {
		seeds[i] = row.PlayerID
	}
	return seeds, nil
}

// PreviewBracket builds the bracket the current standings would produce
// without persisting anything. An empty result means the field is too small.
func (s *BracketService) PreviewBracket(ctx context.Context) ([]league.Match, error) {
	seeds, err := s.seedOrder(ctx)
	if err != nil {
		return nil, err
	}
	if len(seeds) < 2 {
		return nil, nil
	}
	return buildBracketRows(seeds, time.Now()), nil
}

// createBracket replaces all playoff rows with a bracket seeded from the
// regular-season standings.
func (s *BracketService) createBracket(ctx context.Context) error {
	seeds, err := s.seedOrder(ctx)
	if err != nil {
		return err
	}
	if len(seeds) < 2 {
		return conflictf("Cannot start playoffs: at least 2 approved players are required.")
	}

	rows := buildBracketRows(seeds, time.Now())
	numPlayIn := len(seeds) - largestBracketSize(len(seeds))

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.store.DeletePlayoffMatchesTx(ctx, tx); err != nil {
		return fmt.Errorf("clearing bracket: %w", err)
	}
	if err := s.store.CreateMatchesTx(ctx, tx, rows); err != nil {
		return fmt.Errorf("inserting bracket: %w", err)
	}

	openRound := 1
	if numPlayIn > 0 {
		openRound = 0
	}
	if err := s.store.SetCurrentPlayoffRoundTx(ctx, tx, openRound); err != nil {
		return fmt.Errorf("opening round: %w", err)
	}

	return tx.Commit()
}

// AdvanceRound closes the current playoff round and opens the next one. Every
// match in the round must be reported with a decisive winner. Play-in winners
// slot into the first round by target seed; later rounds are created from the
// winners in bracket order, with an odd winner resolved by a trailing bye.
// When the finished round was the final, the champion is returned instead and
// the playoffs close.
func (s *BracketService) AdvanceRound(ctx context.Context) (*AdvanceResult, error) {
	round, err := s.store.CurrentPlayoffRound(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading current round: %w", err)
	}
	if round == league.NoActiveRound {
		return nil, conflictf("Playoffs are not active.")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	matches, err := s.store.ListRoundMatchesTx(ctx, tx, round)
	if err != nil {
		return nil, fmt.Errorf("listing round matches: %w", err)
	}
	if len(matches) == 0 {
		return nil, conflictf("The current round has no matches.")
	}

	unreported := 0
	for i := range matches {
		if !matches[i].Reported {
			unreported++
		}
	}
	if unreported > 0 {
		return nil, conflictf("Cannot advance: %d match(es) in the current round are unreported.", unreported)
	}

	winners := make([]uuid.UUID, 0, len(matches))
	for i := range matches {
		w := matches[i].WinnerID()
		if w == nil {
			return nil, conflictf("Cannot advance: a match in the current round has no winner.")
		}
		winners = append(winners, *w)
	}

	// A single-match round with a winner is terminal even when that match is
	// a bye (possible after an admin deletes a playoff match); opening another
	// round would just fabricate an endless chain of bye finals.
	if round > 0 && len(matches) == 1 {
		champion := winners[0]
		if err := s.store.SetCurrentPlayoffRoundTx(ctx, tx, league.NoActiveRound); err != nil {
			return nil, fmt.Errorf("closing playoffs: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return &AdvanceResult{NextRound: league.NoActiveRound, ChampionID: &champion}, nil
	}

	if round == 0 {
		if err := s.fillRoundOne(ctx, tx, matches, winners); err != nil {
			return nil, err
		}
	} else {
		if err := s.openNextRound(ctx, tx, round+1, winners); err != nil {
			return nil, err
		}
	}

	next := round + 1
	if err := s.store.SetCurrentPlayoffRoundTx(ctx, tx, next); err != nil {
		return nil, fmt.Errorf("opening round: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &AdvanceResult{NextRound: next}, nil
}

// fillRoundOne places play-in winners into the empty first-round slots. Rows
// that carry a target seed go to the slot that seed owns; rows without one
// (brackets written before target seeds were recorded) fall back to filling
// empty slots in order.
func (s *BracketService) fillRoundOne(ctx context.Context, tx *sqlx.Tx, playIns []league.Match, winners []uuid.UUID) error {
	roundOne, err := s.store.ListRoundMatchesTx(ctx, tx, 1)
	if err != nil {
		return fmt.Errorf("listing first round: %w", err)
	}
	if len(roundOne) == 0 {
		return conflictf("The bracket has no first round to fill.")
	}
	bracketSize := len(roundOne) * 2

	legacy := false
	for i := range playIns {
		if playIns[i].MatchNumber == nil {
			legacy = true
			break
		}
	}

	if legacy {
		idx := 0
		for i := range roundOne {
			for slot := 1; slot <= 2; slot++ {
				if idx >= len(winners) {
					return nil
				}
				filled := roundOne[i].Player1ID
				if slot == 2 {
					filled = roundOne[i].Player2ID
				}
				if filled != nil {
					continue
				}
				if err := s.store.SetMatchPlayerTx(ctx, tx, roundOne[i].ID, slot, winners[idx]); err != nil {
					return fmt.Errorf("placing play-in winner: %w", err)
				}
				idx++
			}
		}
		return nil
	}

	byNumber := make(map[int]*league.Match, len(roundOne))
	for i := range roundOne {
		if roundOne[i].MatchNumber != nil {
			byNumber[*roundOne[i].MatchNumber] = &roundOne[i]
		}
	}

	for i := range playIns {
		target := *playIns[i].MatchNumber
		k, slot := target, 1
		if target > bracketSize/2 {
			k, slot = bracketSize+1-target, 2
		}
		dest := byNumber[k]
		if dest == nil {
			return conflictf("The bracket is missing first-round match %d.", k)
		}
		if err := s.store.SetMatchPlayerTx(ctx, tx, dest.ID, slot, winners[i]); err != nil {
			return fmt.Errorf("placing play-in winner: %w", err)
		}
	}
	return nil
}

// openNextRound pairs winners in bracket order into the next round, creating
// it if it does not exist yet or filling its empty slots if it does. An odd
// winner count leaves a trailing bye, settled immediately at 0-0.
func (s *BracketService) openNextRound(ctx context.Context, tx *sqlx.Tx, round int, winners []uuid.UUID) error {
	exists, err := s.store.RoundExistsTx(ctx, tx, round)
	if err != nil {
		return fmt.Errorf("checking next round: %w", err)
	}

	if exists {
		existing, err := s.store.ListRoundMatchesTx(ctx, tx, round)
		if err != nil {
			return fmt.Errorf("listing next round: %w", err)
		}
		idx := 0
		for i := range existing {
			for slot := 1; slot <= 2; slot++ {
				if idx >= len(winners) {
					return nil
				}
				filled := existing[i].Player1ID
				if slot == 2 {
					filled = existing[i].Player2ID
				}
				if filled != nil {
					continue
				}
				if err := s.store.SetMatchPlayerTx(ctx, tx, existing[i].ID, slot, winners[idx]); err != nil {
					return fmt.Errorf("placing winner: %w", err)
				}
				idx++
			}
		}
		if idx < len(winners) {
			return conflictf("The next round has no open slots for all winners.")
		}
		return nil
	}

	now := time.Now()
	var rows []league.Match
	for i := 0; i < len(winners); i += 2 {
		m := league.Match{
			ID:           uuid.New(),
			Player1ID:    utils.Ptr(winners[i]),
			Playoff:      true,
			PlayoffRound: utils.Ptr(round),
			MatchNumber:  utils.Ptr(i/2 + 1),
			CreatedAt:    now,
		}
		if i+1 < len(winners) {
			m.Player2ID = utils.Ptr(winners[i+1])
		} else {
			m.Reported = true
			m.Score1 = utils.Ptr(0)
			m.Score2 = utils.Ptr(0)
		}
		rows = append(rows, m)
	}
	if err := s.store.CreateMatchesTx(ctx, tx, rows); err != nil {
		return fmt.Errorf("inserting next round: %w", err)
	}
	return nil
}

// AutoAdvance advances as many rounds as the reported results allow. It stops
// quietly at the first round that is still waiting on results, so it is safe
// to call after every playoff report.
func (s *BracketService) AutoAdvance(ctx context.Context) error {
	for pass := 0; pass < maxAdvancePasses; pass++ {
		result, err := s.AdvanceRound(ctx)
		if err != nil {
			if IsStateConflict(err) {
				return nil
			}
			return err
		}
		if result.ChampionID != nil {
			return nil
		}
	}
	return nil
}

// Champion returns the winner of the bracket, or nil while it is undecided.
// The final is the unique round holding a single match; it must be reported
// and have both participants before it names a champion.
func (s *BracketService) Champion(ctx context.Context) (*league.Player, error) {
	counts, err := s.store.RoundMatchCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting rounds: %w", err)
	}

	finalRound, singles := 0, 0
	for _, rc := range counts {
		if rc.Round > 0 && rc.Count == 1 {
			if singles == 0 {
				finalRound = rc.Round
			}
			singles++
		}
	}
	if singles != 1 {
		return nil, nil
	}

	matches, err := s.store.ListRoundMatches(ctx, finalRound)
	if err != nil || len(matches) != 1 {
		return nil, err
	}
	final := &matches[0]
	if !final.Reported || final.Player2ID == nil {
		return nil, nil
	}
	winner := final.WinnerID()
	if winner == nil {
		return nil, nil
	}
	return s.store.GetPlayer(ctx, *winner)
}
