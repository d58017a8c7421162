package views

import (
	"github.com/cectt/ttleague/internal/league"
	"github.com/cectt/ttleague/internal/utils"
	"github.com/google/uuid"
)

// PlayerNames builds the id-to-name lookup the match and bracket views use.
func PlayerNames(players []league.Player) map[uuid.UUID]string {
	names := make(map[uuid.UUID]string, len(players))
	for _, p := range players {
		names[p.ID] = p.FullName()
	}
	return names
}

// MatchLine is one scheduled match rendered on the week and admin pages.
type MatchLine struct {
	ID          uuid.UUID
	Player1Name string
	Player2Name string
	Summary     string
	Reported    bool
	IsBye       bool
	Reportable  bool
	Week        int
}

// BuildMatchLines renders schedule rows for one week. Matches are reportable
// only while their week is the current one.
func BuildMatchLines(matches []league.Match, names map[uuid.UUID]string, currentWeek int) []MatchLine {
	lines := make([]MatchLine, 0, len(matches))
	for i := range matches {
		m := &matches[i]
		line := MatchLine{
			ID:          m.ID,
			Player1Name: slotName(m.Player1ID, names, false),
			Player2Name: slotName(m.Player2ID, names, m.IsBye()),
			Reported:    m.Reported,
			IsBye:       m.IsBye(),
		}
		line.Week = utils.OrZero(m.Week)
		line.Reportable = line.Week > 0 && !m.Reported && !m.IsBye() && line.Week == currentWeek
		if summary := m.Summary(); summary != nil {
			line.Summary = *summary
		}
		lines = append(lines, line)
	}
	return lines
}
