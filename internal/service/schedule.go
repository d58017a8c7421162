package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/cectt/ttleague/internal/league"
	"github.com/cectt/ttleague/internal/store"
	"github.com/cectt/ttleague/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	weekAttempts = 500
	planAttempts = 200
)

type ScheduleService struct {
	db    *sqlx.DB
	store *store.LeagueStore
}

func NewScheduleService(db *sqlx.DB, leagueStore *store.LeagueStore) *ScheduleService {
	return &ScheduleService{db: db, store: leagueStore}
}

// pairKey is an order-independent key for a pairing, so A-vs-B and B-vs-A
// count as the same matchup.
type pairKey [2]uuid.UUID

func pairOf(a, b uuid.UUID) pairKey {
	if a.String() > b.String() {
		a, b = b, a
	}
	return pairKey{a, b}
}

// GenerateSchedule replaces the regular season with a fresh round-robin plan
// for the approved roster and resets the current week to 1. Regenerating over
// reported results throws them away, so that case requires explicit
// confirmation. With fewer than two approved players the season is simply
// emptied.
func (s *ScheduleService) GenerateSchedule(ctx context.Context, confirmed bool) error {
	reported, err := s.store.CountReportedRegular(ctx)
	if err != nil {
		return fmt.Errorf("counting reported matches: %w", err)
	}
	if reported > 0 && !confirmed {
		return conflictf("Regenerating the schedule will discard %d reported match(es) and reset to week 1. Confirm to proceed.", reported)
	}

	players, err := s.store.ListApprovedPlayers(ctx)
	if err != nil {
		return fmt.Errorf("listing players: %w", err)
	}

	ids := make([]uuid.UUID, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}

	var plan [][][2]uuid.UUID
	if len(ids) >= 2 {
		paddedSize := len(ids)
		if paddedSize%2 == 1 {
			paddedSize++
		}
		weeks := league.MaxWeeks
		// A roster of N padded players only has N-1 distinct rounds before
		// pairings must repeat.
		if paddedSize-1 < weeks {
			weeks = paddedSize - 1
		}

		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		plan, err = buildSeasonPairings(ids, weeks, rng)
		if err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.store.DeleteRegularMatchesTx(ctx, tx); err != nil {
		return fmt.Errorf("clearing schedule: %w", err)
	}

	now := time.Now()
	var rows []league.Match
	for weekIdx, weekPairs := range plan {
		for _, pair := range weekPairs {
			m := league.Match{
				ID:        uuid.New(),
				Week:      utils.Ptr(weekIdx + 1),
				Player1ID: utils.Ptr(pair[0]),
				CreatedAt: now,
			}
			if pair[1] == uuid.Nil {
				// Byes are settled up front so week completion checks
				// never wait on them.
				m.Reported = true
				m.Score1 = utils.Ptr(0)
				m.Score2 = utils.Ptr(0)
			} else {
				m.Player2ID = utils.Ptr(pair[1])
			}
			rows = append(rows, m)
		}
	}

	if err := s.store.CreateMatchesTx(ctx, tx, rows); err != nil {
		return fmt.Errorf("inserting schedule: %w", err)
	}
	if err := s.store.SetCurrentWeekTx(ctx, tx, 1); err != nil {
		return fmt.Errorf("resetting current week: %w", err)
	}

	return tx.Commit()
}

// buildSeasonPairings assembles a repeat-free season of weekly pairings. Each
// week is filled by a randomized most-constrained-first matcher with restarts;
// if some week cannot be filled the whole plan is retried from scratch. Odd
// rosters get a uuid.Nil placeholder whose pairings become byes.
func buildSeasonPairings(playerIDs []uuid.UUID, weeks int, rng *rand.Rand) ([][][2]uuid.UUID, error) {
	padded := make([]uuid.UUID, len(playerIDs))
	copy(padded, playerIDs)
	if len(padded)%2 == 1 {
		padded = append(padded, uuid.Nil)
	}

	for attempt := 0; attempt < planAttempts; attempt++ {
		used := make(map[pairKey]bool)
		plan := make([][][2]uuid.UUID, 0, weeks)
		ok := true

		for w := 0; w < weeks; w++ {
			weekPairs, found := buildWeekPairings(padded, used, rng)
			if !found {
				ok = false
				break
			}
			for _, pair := range weekPairs {
				used[pairOf(pair[0], pair[1])] = true
			}
			plan = append(plan, dropEmptyPairs(weekPairs))
		}

		if ok {
			return plan, nil
		}
	}
	return nil, ErrScheduleExhausted
}

// buildWeekPairings pairs off every player exactly once without repeating a
// used matchup, retrying from scratch when the greedy choice dead-ends.
func buildWeekPairings(playerIDs []uuid.UUID, used map[pairKey]bool, rng *rand.Rand) ([][2]uuid.UUID, bool) {
	for attempt := 0; attempt < weekAttempts; attempt++ {
		if pairs, ok := tryWeek(playerIDs, used, rng); ok {
			return pairs, true
		}
	}
	return nil, false
}

func tryWeek(playerIDs []uuid.UUID, used map[pairKey]bool, rng *rand.Rand) ([][2]uuid.UUID, bool) {
	remaining := make([]uuid.UUID, len(playerIDs))
	copy(remaining, playerIDs)
	rng.Shuffle(len(remaining), func(i, j int) {
		remaining[i], remaining[j] = remaining[j], remaining[i]
	})

	var pairs [][2]uuid.UUID
	for len(remaining) > 0 {
		// Pick the player with the fewest open opponents left; the shuffle
		// above randomizes ties.
		pickIdx := 0
		pickOptions := -1
		for i, id := range remaining {
			options := 0
			for j, other := range remaining {
				if i == j || used[pairOf(id, other)] {
					continue
				}
				options++
			}
			if pickOptions == -1 || options < pickOptions {
				pickIdx = i
				pickOptions = options
			}
		}
		if pickOptions == 0 {
			return nil, false
		}

		player := remaining[pickIdx]
		remaining = append(remaining[:pickIdx], remaining[pickIdx+1:]...)

		var candidates []int
		for i, other := range remaining {
			if !used[pairOf(player, other)] {
				candidates = append(candidates, i)
			}
		}
		oppIdx := candidates[rng.Intn(len(candidates))]
		opponent := remaining[oppIdx]
		remaining = append(remaining[:oppIdx], remaining[oppIdx+1:]...)

		if player == uuid.Nil {
			player, opponent = opponent, player
		}
		pairs = append(pairs, [2]uuid.UUID{player, opponent})
	}
	return pairs, true
}

// dropEmptyPairs removes placeholder-vs-placeholder pairings, which occur
// only when the padded roster shrinks to nothing.
func dropEmptyPairs(pairs [][2]uuid.UUID) [][2]uuid.UUID {
	out := pairs[:0]
	for _, pair := range pairs {
		if pair[0] == uuid.Nil && pair[1] == uuid.Nil {
			continue
		}
		out = append(out, pair)
	}
	return out
}

// SetCurrentWeek moves the open week. Jumping forward past weeks that still
// have unreported two-player matches double-forfeits them, which is
// destructive enough to require explicit confirmation. It returns the number
// of matches forfeited.
func (s *ScheduleService) SetCurrentWeek(ctx context.Context, week int, confirmed bool) (int64, error) {
	if week < 1 || week > league.MaxWeeks {
		return 0, validationf("Week must be between 1 and %d.", league.MaxWeeks)
	}

	current, err := s.store.CurrentWeek(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading current week: %w", err)
	}

	if week > current {
		pending, err := s.store.CountForfeitCandidates(ctx, current, week)
		if err != nil {
			return 0, fmt.Errorf("counting unreported matches: %w", err)
		}
		if pending > 0 && !confirmed {
			return 0, conflictf("Advancing to week %d will forfeit %d unreported match(es). Confirm to proceed.", week, pending)
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var forfeited int64
	if week > current {
		forfeited, err = s.store.ForfeitWeekRangeTx(ctx, tx, current, week)
		if err != nil {
			return 0, fmt.Errorf("forfeiting skipped weeks: %w", err)
		}
	}
	if err := s.store.SetCurrentWeekTx(ctx, tx, week); err != nil {
		return 0, fmt.Errorf("setting current week: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return forfeited, nil
}

// ResetLeague wipes players, matches and settings back to a fresh league.
func (s *ScheduleService) ResetLeague(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.store.ResetTx(ctx, tx); err != nil {
		return fmt.Errorf("resetting league: %w", err)
	}
	return tx.Commit()
}
