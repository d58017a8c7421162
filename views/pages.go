package views

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"
	"github.com/cectt/ttleague/internal/league"
	"github.com/cectt/ttleague/internal/service"
	"github.com/google/uuid"
)

// htmlWriter accumulates output and the first write error, keeping the page
// bodies free of error plumbing.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

func (h *htmlWriter) f(format string, args ...any) {
	if h.err != nil {
		return
	}
	_, h.err = fmt.Fprintf(h.w, format, args...)
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

func page(title string, body func(h *htmlWriter)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw("<!DOCTYPE html><html lang=\"en\"><head><meta charset=\"utf-8\"><meta name=\"viewport\" content=\"width=device-width, initial-scale=1\"><title>")
		h.text(title)
		h.raw("</title><link rel=\"stylesheet\" href=\"/static/style.css\"></head><body>")
		h.raw("<nav><a href=\"/\">Standings</a> <a href=\"/schedule\">Schedule</a> <a href=\"/playoffs\">Playoffs</a> <a href=\"/signup\">Sign Up</a> <a href=\"/admin\">Admin</a></nav><main>")
		body(h)
		h.raw("</main></body></html>")
		return h.err
	})
}

func flash(h *htmlWriter, errMsg, okMsg string) {
	if errMsg != "" {
		h.raw("<p class=\"error\">")
		h.text(errMsg)
		h.raw("</p>")
	}
	if okMsg != "" {
		h.raw("<p class=\"success\">")
		h.text(okMsg)
		h.raw("</p>")
	}
}

func StandingsPage(rows []service.PlayerStanding, currentWeek int, champion *league.Player) templ.Component {
	return page("Standings", func(h *htmlWriter) {
		if champion != nil {
			h.raw("<p class=\"champion\">Champion: ")
			h.text(champion.FullName())
			h.raw("</p>")
		}
		h.f("<h1>Standings</h1><p>Week %d of %d</p>", currentWeek, league.MaxWeeks)
		h.raw("<table><thead><tr><th>#</th><th>Player</th><th>W</th><th>L</th><th>Diff</th><th>PF</th></tr></thead><tbody>")
		for _, row := range rows {
			h.f("<tr><td>%d</td><td><a href=\"/player/%s\">", row.Rank, row.PlayerID)
			h.text(row.FullName())
			h.f("</a></td><td>%d</td><td>%d</td><td>%d</td><td>%d</td></tr>",
				row.Wins, row.Losses, row.PointDiff, row.PointsScored)
		}
		h.raw("</tbody></table>")
	})
}

func SignupPage(pending []league.Player, errMsg, okMsg string) templ.Component {
	return page("Sign Up", func(h *htmlWriter) {
		h.raw("<h1>Sign Up</h1>")
		flash(h, errMsg, okMsg)
		h.raw("<form method=\"post\" action=\"/signup\">")
		h.raw("<label>First name <input name=\"first_name\" required></label>")
		h.raw("<label>Last name <input name=\"last_name\" required></label>")
		h.raw("<label>CEC ID <input name=\"cec_id\" required></label>")
		h.raw("<button type=\"submit\">Join the league</button></form>")
		if len(pending) > 0 {
			h.raw("<h2>Awaiting approval</h2><ul>")
			for _, p := range pending {
				h.raw("<li>")
				h.text(p.FullName())
				h.raw("</li>")
			}
			h.raw("</ul>")
		}
	})
}

func SchedulePage(week, maxWeek, currentWeek int, lines []MatchLine) templ.Component {
	return page("Schedule", func(h *htmlWriter) {
		h.f("<h1>Week %d</h1><nav class=\"weeks\">", week)
		for w := 1; w <= maxWeek; w++ {
			class := ""
			if w == currentWeek {
				class = " class=\"current\""
			}
			h.f("<a href=\"/schedule/%d\"%s>%d</a> ", w, class, w)
		}
		h.raw("</nav>")
		if len(lines) == 0 {
			h.raw("<p>No matches scheduled.</p>")
			return
		}
		h.raw("<ul class=\"matches\">")
		for _, line := range lines {
			h.raw("<li>")
			h.text(line.Player1Name)
			h.raw(" vs ")
			h.text(line.Player2Name)
			if line.Summary != "" {
				h.raw(" <span class=\"summary\">")
				h.text(line.Summary)
				h.raw("</span>")
			}
			if line.Reportable {
				h.f(" <a href=\"/match/%s\">Report</a>", line.ID)
			}
			h.raw("</li>")
		}
		h.raw("</ul>")
	})
}

func MatchReportPage(m *league.Match, names map[uuid.UUID]string, errMsg string) templ.Component {
	return page("Report Match", func(h *htmlWriter) {
		h.raw("<h1>")
		h.text(slotName(m.Player1ID, names, false))
		h.raw(" vs ")
		h.text(slotName(m.Player2ID, names, m.IsBye()))
		h.raw("</h1>")
		flash(h, errMsg, "")
		if summary := m.Summary(); summary != nil {
			h.raw("<p>")
			h.text(*summary)
			h.raw("</p>")
			return
		}
		h.f("<form method=\"post\" action=\"/match/%s\">", m.ID)
		for g := 1; g <= league.MaxGames; g++ {
			h.f("<fieldset><legend>Game %d</legend>", g)
			h.f("<input name=\"game%d_score1\" inputmode=\"numeric\" size=\"2\">", g)
			h.raw(" - ")
			h.f("<input name=\"game%d_score2\" inputmode=\"numeric\" size=\"2\">", g)
			h.raw("</fieldset>")
		}
		h.raw("<button type=\"submit\">Submit result</button></form>")
	})
}

func PlayoffsPage(rounds []BracketRound, champion *league.Player, preview bool) templ.Component {
	return page("Playoffs", func(h *htmlWriter) {
		h.raw("<h1>Playoffs</h1>")
		if champion != nil {
			h.raw("<p class=\"champion\">Champion: ")
			h.text(champion.FullName())
			h.raw("</p>")
		}
		if preview {
			h.raw("<p>Projected bracket from current standings. Seeding is final once playoffs begin.</p>")
		}
		if len(rounds) == 0 {
			h.raw("<p>Not enough players for a bracket yet.</p>")
			return
		}
		h.raw("<div class=\"bracket\">")
		for _, round := range rounds {
			h.f("<section class=\"round\" data-round=\"%d\"><h2>", round.Round)
			h.text(round.Label)
			h.raw("</h2>")
			for _, m := range round.Matches {
				h.f("<div class=\"match %s\" data-index=\"%d\" data-next=\"%d\">",
					string(m.State), m.DisplayIndex, m.NextDisplayIndex)
				h.raw("<span>")
				h.text(m.Player1Name)
				h.raw("</span><span>")
				h.text(m.Player2Name)
				h.raw("</span>")
				if m.Summary != "" {
					h.raw("<span class=\"summary\">")
					h.text(m.Summary)
					h.raw("</span>")
				}
				if m.Reportable {
					h.f("<a href=\"/match/%s\">Report</a>", m.ID)
				}
				h.raw("</div>")
			}
			h.raw("</section>")
		}
		h.raw("</div>")
	})
}

func PlayerProfilePage(profile *service.PlayerProfile) templ.Component {
	return page(profile.Player.FullName(), func(h *htmlWriter) {
		h.raw("<h1>")
		h.text(profile.Player.FullName())
		h.raw("</h1>")
		if profile.Rank > 0 {
			h.f("<p>Ranked #%d</p>", profile.Rank)
		}
		h.f("<p>Record %d-%d", profile.Wins, profile.Losses)
		if profile.PlayoffWins+profile.PlayoffLosses > 0 {
			h.f(" (playoffs %d-%d)", profile.PlayoffWins, profile.PlayoffLosses)
		}
		h.f(" &middot; %.0f%% &middot; points %d/%d</p>",
			profile.WinPct, profile.PointsFor, profile.PointsAgainst)
		if len(profile.History) == 0 {
			h.raw("<p>No matches played yet.</p>")
			return
		}
		h.raw("<h2>Match history</h2><ul>")
		for _, entry := range profile.History {
			h.raw("<li>")
			if entry.Won != nil {
				if *entry.Won {
					h.raw("<strong>W</strong> ")
				} else {
					h.raw("<strong>L</strong> ")
				}
			}
			h.raw("vs ")
			h.text(entry.OpponentName)
			if entry.Summary != "" {
				h.raw(": ")
				h.text(entry.Summary)
			}
			h.raw("</li>")
		}
		h.raw("</ul>")
	})
}

func AdminLoginPage(errMsg string) templ.Component {
	return page("Admin Login", func(h *htmlWriter) {
		h.raw("<h1>Admin Login</h1>")
		flash(h, errMsg, "")
		h.raw("<form method=\"post\" action=\"/admin/login\">")
		h.raw("<label>Password <input type=\"password\" name=\"password\" required></label>")
		h.raw("<button type=\"submit\">Log in</button></form>")
		h.raw("<p><a href=\"/auth/discord\">Log in with Discord</a> &middot; <a href=\"/auth/google\">Log in with Google</a></p>")
	})
}

// AdminDashboardData is everything the admin page shows: the roster with
// pending signups, every match, and the playoff controls' state.
type AdminDashboardData struct {
	Players          []league.Player
	Matches          []MatchLine
	CurrentWeek      int
	CanStartPlayoffs bool
	PlayoffsActive   bool
	ActiveRoundLabel string
	ForfeitNotice    string
	ErrMsg           string
	OkMsg            string
}

func AdminDashboard(data AdminDashboardData) templ.Component {
	return page("Admin", func(h *htmlWriter) {
		h.raw("<h1>Admin</h1>")
		flash(h, data.ErrMsg, data.OkMsg)
		if data.ForfeitNotice != "" {
			h.raw("<p class=\"notice\">")
			h.text(data.ForfeitNotice)
			h.raw("</p>")
		}

		h.f("<h2>Week</h2><form method=\"post\" action=\"/admin/week\"><select name=\"week\">")
		for w := 1; w <= league.MaxWeeks; w++ {
			selected := ""
			if w == data.CurrentWeek {
				selected = " selected"
			}
			h.f("<option value=\"%d\"%s>Week %d</option>", w, selected, w)
		}
		h.raw("</select><label><input type=\"checkbox\" name=\"confirm\" value=\"1\"> Forfeit skipped matches</label>")
		h.raw("<button type=\"submit\">Set week</button></form>")

		h.raw("<h2>Season</h2>")
		h.raw("<form method=\"post\" action=\"/admin/generate_schedule\"><label><input type=\"checkbox\" name=\"confirm\" value=\"1\"> Discard reported results</label><button type=\"submit\">Generate schedule</button></form>")
		if data.CanStartPlayoffs {
			h.raw("<form method=\"post\" action=\"/admin/start_playoffs\"><button type=\"submit\">Start playoffs</button></form>")
		}
		h.raw("<form method=\"post\" action=\"/admin/force_playoffs\"><label><input type=\"checkbox\" name=\"confirm\" value=\"1\"> Discard existing results</label><button type=\"submit\">Force rebuild bracket</button></form>")
		if data.PlayoffsActive {
			h.raw("<form method=\"post\" action=\"/admin/advance_playoff_round\"><button type=\"submit\">Advance ")
			h.text(data.ActiveRoundLabel)
			h.raw("</button></form>")
		}
		h.raw("<form method=\"post\" action=\"/admin/reset\"><label><input type=\"checkbox\" name=\"confirm\" value=\"1\"> I am sure</label><button type=\"submit\">Reset league</button></form>")

		h.raw("<h2>Players</h2><table><thead><tr><th>Player</th><th>CEC ID</th><th>Status</th><th></th></tr></thead><tbody>")
		for _, p := range data.Players {
			h.raw("<tr><td>")
			h.text(p.FullName())
			h.raw("</td><td>")
			h.text(p.CecID)
			h.raw("</td><td>")
			if p.Approved {
				h.raw("approved")
			} else {
				h.raw("pending")
			}
			h.raw("</td><td>")
			if !p.Approved {
				h.f("<form method=\"post\" action=\"/admin/player/%s/approve\"><button>Approve</button></form>", p.ID)
			}
			h.f("<form method=\"post\" action=\"/admin/player/%s/delete\"><button>Delete</button></form>", p.ID)
			h.raw("</td></tr>")
		}
		h.raw("</tbody></table>")

		h.raw("<h2>Matches</h2><table><thead><tr><th>Week</th><th>Match</th><th>Result</th><th></th></tr></thead><tbody>")
		for _, line := range data.Matches {
			week := "-"
			if line.Week > 0 {
				week = strconv.Itoa(line.Week)
			}
			h.raw("<tr><td>")
			h.text(week)
			h.raw("</td><td>")
			h.text(line.Player1Name)
			h.raw(" vs ")
			h.text(line.Player2Name)
			h.raw("</td><td>")
			if line.Summary != "" {
				h.text(line.Summary)
			} else {
				h.raw("unreported")
			}
			h.f("</td><td><form method=\"post\" action=\"/admin/match/%s/delete\"><button>Delete</button></form></td></tr>", line.ID)
		}
		h.raw("</tbody></table>")
	})
}
