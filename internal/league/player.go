package league

import (
	"time"

	"github.com/google/uuid"
)

type Player struct {
	ID         uuid.UUID  `db:"id"`
	FirstName  string     `db:"first_name"`
	LastName   string     `db:"last_name"`
	CecID      string     `db:"cec_id"`
	Approved   bool       `db:"approved"`
	ApprovedAt *time.Time `db:"approved_at"`
	CreatedAt  time.Time  `db:"created_at"`
}

func (p *Player) FullName() string {
	return p.FirstName + " " + p.LastName
}
