package league

import (
	"time"

	"github.com/google/uuid"
)

const (
	// MaxWeeks is the length of the regular season.
	MaxWeeks = 8
	// MaxGames is the number of games in a best-of-three match.
	MaxGames = 3
)

// Settings keys persisted in the settings table.
const (
	SettingCurrentWeek         = "current_week"
	SettingCurrentPlayoffRound = "current_playoff_round"
)

// NoActiveRound is the playoff round value while playoffs are closed,
// both before the bracket exists and after a champion is crowned.
const NoActiveRound = -1

// Match is one pairing, regular season or playoff. A nil Player2ID marks a
// bye; bye rows are written pre-reported with a 0-0 aggregate. Playoff rows
// carry PlayoffRound (0 = play-ins) and MatchNumber, the seed slot the match
// occupies within its round. For play-in matches MatchNumber is the target
// seed its winner takes over in round 1.
type Match struct {
	ID   uuid.UUID `db:"id"`
	Week *int      `db:"week"`

	Player1ID *uuid.UUID `db:"player1_id"`
	Player2ID *uuid.UUID `db:"player2_id"`

	Game1Score1 *int `db:"game1_score1"`
	Game1Score2 *int `db:"game1_score2"`
	Game2Score1 *int `db:"game2_score1"`
	Game2Score2 *int `db:"game2_score2"`
	Game3Score1 *int `db:"game3_score1"`
	Game3Score2 *int `db:"game3_score2"`

	Score1 *int `db:"score1"`
	Score2 *int `db:"score2"`

	Reported      bool `db:"reported"`
	DoubleForfeit bool `db:"double_forfeit"`

	Playoff      bool `db:"playoff"`
	PlayoffRound *int `db:"playoff_round"`
	MatchNumber  *int `db:"match_number"`

	CreatedAt time.Time `db:"created_at"`
}

func (m *Match) IsBye() bool {
	return m.Player2ID == nil
}

// GameScore is one completed game within a match.
type GameScore struct {
	Score1 int
	Score2 int
}
