package views

import (
	"fmt"
	"sort"

	"github.com/cectt/ttleague/internal/league"
	"github.com/cectt/ttleague/internal/utils"
	"github.com/google/uuid"
)

// MatchState drives how the playoffs page renders one bracket slot.
type MatchState string

const (
	// StatePreview marks a match from the hypothetical bracket shown
	// before playoffs start.
	StatePreview MatchState = "preview"
	// StateFuture marks a persisted match in a round that is not open yet.
	StateFuture MatchState = "future"
	// StatePending marks an unreported match in the open round.
	StatePending  MatchState = "pending"
	StateComplete MatchState = "complete"
	StateForfeit  MatchState = "forfeit"
)

// BracketMatch is one rendered bracket slot. DisplayIndex is the 1-based
// position within the round column; NextDisplayIndex is the position in the
// following column this match's winner feeds into, 0 for the final.
type BracketMatch struct {
	ID               uuid.UUID
	Player1Name      string
	Player2Name      string
	Summary          string
	State            MatchState
	IsBye            bool
	Reportable       bool
	DisplayIndex     int
	NextDisplayIndex int
}

type BracketRound struct {
	Round   int
	Label   string
	Matches []BracketMatch
}

// RoundLabel names a playoff round by its match count. Round 0 is always the
// play-in round regardless of size.
func RoundLabel(round, matchCount int) string {
	if round == 0 {
		return "Play-in Round"
	}
	switch matchCount {
	case 1:
		return "Finals"
	case 2:
		return "Semifinals"
	case 4:
		return "Quarterfinals"
	case 8:
		return "Round of 16"
	case 16:
		return "Round of 32"
	case 32:
		return "Round of 64"
	}
	if round == 1 {
		return "First Round"
	}
	return fmt.Sprintf("Round %d", round)
}

// BuildBracketRounds turns persisted playoff matches into render-ready round
// columns, extended with TBD placeholder rounds down to the final so the
// bracket always shows its full shape.
func BuildBracketRounds(matches []league.Match, names map[uuid.UUID]string, currentRound int) []BracketRound {
	return buildRounds(matches, names, currentRound, false)
}

// BuildPlayoffPreview renders a not-yet-persisted bracket, every slot in the
// preview state.
func BuildPlayoffPreview(matches []league.Match, names map[uuid.UUID]string) []BracketRound {
	return buildRounds(matches, names, league.NoActiveRound, true)
}

func buildRounds(matches []league.Match, names map[uuid.UUID]string, currentRound int, preview bool) []BracketRound {
	grouped := make(map[int][]league.Match)
	for _, m := range matches {
		if m.PlayoffRound == nil {
			continue
		}
		grouped[*m.PlayoffRound] = append(grouped[*m.PlayoffRound], m)
	}
	if len(grouped) == 0 {
		return nil
	}

	roundNumbers := make([]int, 0, len(grouped))
	for r := range grouped {
		roundNumbers = append(roundNumbers, r)
	}
	sort.Ints(roundNumbers)

	bracketSize := 2 * len(grouped[1])

	var rounds []BracketRound
	for _, r := range roundNumbers {
		rows := grouped[r]
		sortRoundMatches(r, rows)

		round := BracketRound{Round: r, Label: RoundLabel(r, len(rows))}
		isFinal := r == roundNumbers[len(roundNumbers)-1] && r > 0 && len(rows) == 1
		for i, m := range rows {
			bm := buildMatchView(&m, names, currentRound, preview)
			bm.DisplayIndex = i + 1
			if !isFinal {
				bm.NextDisplayIndex = nextDisplayIndex(r, bm.DisplayIndex, m.MatchNumber, bracketSize)
			}
			round.Matches = append(round.Matches, bm)
		}
		rounds = append(rounds, round)
	}

	return appendPlaceholderRounds(rounds, preview)
}

// sortRoundMatches orders a round column for display: play-ins by descending
// target seed, every other round by ascending match number.
func sortRoundMatches(round int, rows []league.Match) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].MatchNumber, rows[j].MatchNumber
		if a == nil || b == nil {
			return a != nil
		}
		if round == 0 {
			return *a > *b
		}
		return *a < *b
	})
}

func buildMatchView(m *league.Match, names map[uuid.UUID]string, currentRound int, preview bool) BracketMatch {
	isBye := m.Reported && m.Player2ID == nil

	bm := BracketMatch{
		ID:          m.ID,
		Player1Name: slotName(m.Player1ID, names, false),
		Player2Name: slotName(m.Player2ID, names, isBye),
		IsBye:       isBye,
	}
	if summary := m.Summary(); summary != nil {
		bm.Summary = *summary
	}

	round := utils.OrZero(m.PlayoffRound)

	switch {
	case preview:
		bm.State = StatePreview
	case m.Reported && m.DoubleForfeit:
		bm.State = StateForfeit
	case m.Reported:
		bm.State = StateComplete
	case round == currentRound:
		bm.State = StatePending
	default:
		bm.State = StateFuture
	}

	bm.Reportable = !preview && !isBye && !m.Reported &&
		round == currentRound && m.Player1ID != nil && m.Player2ID != nil
	return bm
}

func slotName(id *uuid.UUID, names map[uuid.UUID]string, isBye bool) string {
	if isBye {
		return "Bye"
	}
	if id == nil {
		return "TBD"
	}
	if name, ok := names[*id]; ok {
		return name
	}
	return "Unknown"
}

// nextDisplayIndex computes which slot of the following column a match feeds.
// A play-in winner lands wherever its target seed sits in the first round;
// later rounds pair adjacent matches.
func nextDisplayIndex(round, displayIndex int, matchNumber *int, bracketSize int) int {
	if round == 0 {
		if matchNumber == nil || bracketSize == 0 {
			return 0
		}
		seed := *matchNumber
		if seed <= bracketSize/2 {
			return seed
		}
		return bracketSize + 1 - seed
	}
	return (displayIndex + 1) / 2
}

// appendPlaceholderRounds extends the bracket with TBD rounds until a final
// exists, so an in-progress bracket still renders every column.
func appendPlaceholderRounds(rounds []BracketRound, preview bool) []BracketRound {
	if len(rounds) == 0 {
		return rounds
	}
	last := rounds[len(rounds)-1]
	if last.Round < 1 {
		return rounds
	}

	state := StateFuture
	if preview {
		state = StatePreview
	}

	count := len(last.Matches)
	round := last.Round
	for count > 1 {
		count = (count + 1) / 2
		round++
		placeholder := BracketRound{Round: round, Label: RoundLabel(round, count)}
		for i := 0; i < count; i++ {
			bm := BracketMatch{
				Player1Name:  "TBD",
				Player2Name:  "TBD",
				State:        state,
				DisplayIndex: i + 1,
			}
			if count > 1 {
				bm.NextDisplayIndex = (bm.DisplayIndex + 1) / 2
			}
			placeholder.Matches = append(placeholder.Matches, bm)
		}
		rounds = append(rounds, placeholder)
	}
	return rounds
}
