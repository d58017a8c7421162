package league

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GameScores returns the completed games of a match in game order. Slots
// where either side is null are skipped, so bye and forfeit rows (which only
// carry an aggregate) yield an empty slice.
func (m *Match) GameScores() []GameScore {
	pairs := [MaxGames][2]*int{
		{m.Game1Score1, m.Game1Score2},
		{m.Game2Score1, m.Game2Score2},
		{m.Game3Score1, m.Game3Score2},
	}
	var scores []GameScore
	for _, pair := range pairs {
		if pair[0] == nil || pair[1] == nil {
			continue
		}
		scores = append(scores, GameScore{Score1: *pair[0], Score2: *pair[1]})
	}
	return scores
}

// AggregatePoints sums per-game scores when any exist, otherwise falls back
// to the stored aggregate (null treated as 0). Byes and forfeits set only the
// aggregate, which is why the fallback exists.
func (m *Match) AggregatePoints() (int, int) {
	scores := m.GameScores()
	if len(scores) > 0 {
		var total1, total2 int
		for _, s := range scores {
			total1 += s.Score1
			total2 += s.Score2
		}
		return total1, total2
	}
	var total1, total2 int
	if m.Score1 != nil {
		total1 = *m.Score1
	}
	if m.Score2 != nil {
		total2 = *m.Score2
	}
	return total1, total2
}

// GameWins counts games each side won. Games cannot tie by construction, but
// a tied pair would simply count for neither side.
func GameWins(scores []GameScore) (int, int) {
	var wins1, wins2 int
	for _, s := range scores {
		if s.Score1 > s.Score2 {
			wins1++
		} else if s.Score2 > s.Score1 {
			wins2++
		}
	}
	return wins1, wins2
}

// WinnerID resolves the winner of a match, or nil when there is none: the
// match is unreported, a double forfeit, or tied at every level. A bye always
// resolves to player 1.
func (m *Match) WinnerID() *uuid.UUID {
	if m.Player2ID == nil {
		return m.Player1ID
	}
	if !m.Reported {
		return nil
	}
	if m.DoubleForfeit {
		// Nobody advances from a double forfeit; the bracket needs an
		// admin correction before the round can produce a winner here.
		return nil
	}
	scores := m.GameScores()
	if len(scores) > 0 {
		wins1, wins2 := GameWins(scores)
		if wins1 == wins2 {
			return nil
		}
		if wins1 > wins2 {
			return m.Player1ID
		}
		return m.Player2ID
	}
	if m.Score1 == nil || m.Score2 == nil || *m.Score1 == *m.Score2 {
		return nil
	}
	if *m.Score1 > *m.Score2 {
		return m.Player1ID
	}
	return m.Player2ID
}

// Summary renders a short human-readable result: "Bye", "Double Forfeit",
// "21 - 15" for aggregate-only rows, or "2-1 (21-15, 18-21, 21-19)" with
// per-game detail. Unreported matches have no summary.
func (m *Match) Summary() *string {
	if m.Player2ID == nil {
		s := "Bye"
		return &s
	}
	if m.DoubleForfeit {
		s := "Double Forfeit"
		return &s
	}
	if !m.Reported {
		return nil
	}
	scores := m.GameScores()
	total1, total2 := m.AggregatePoints()
	if len(scores) == 0 {
		if m.Score1 == nil || m.Score2 == nil {
			return nil
		}
		s := fmt.Sprintf("%d - %d", total1, total2)
		return &s
	}
	wins1, wins2 := GameWins(scores)
	details := make([]string, 0, len(scores))
	for _, score := range scores {
		details = append(details, fmt.Sprintf("%d-%d", score.Score1, score.Score2))
	}
	s := fmt.Sprintf("%d-%d (%s)", wins1, wins2, strings.Join(details, ", "))
	return &s
}
