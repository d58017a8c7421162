package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/alexedwards/scs/v2"
	"github.com/cectt/ttleague/internal/db"
	"github.com/cectt/ttleague/internal/httputil"
	"github.com/cectt/ttleague/internal/league"
	"github.com/cectt/ttleague/internal/middleware"
	"github.com/cectt/ttleague/internal/service"
	"github.com/cectt/ttleague/internal/store"
	"github.com/cectt/ttleague/views"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/markbates/goth/gothic"
)

func newRouter(sessionManager *scs.SessionManager) http.Handler {
	dbConn := db.GetDB()
	leagueStore := store.NewLeagueStore(dbConn)
	standingsService := service.NewStandingsService(leagueStore)
	scheduleService := service.NewScheduleService(dbConn, leagueStore)
	bracketService := service.NewBracketService(dbConn, leagueStore, standingsService)
	matchService := service.NewMatchService(dbConn, leagueStore, bracketService)
	playerService := service.NewPlayerService(dbConn, leagueStore, standingsService)

	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(sessionManager.LoadAndSave)

	// Serve static files
	fileServer := http.FileServer(http.Dir("./static"))
	r.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		rows, err := standingsService.Standings(r.Context(), false)
		if err != nil {
			httputil.InternalServerError(w, "Failed to compute standings", err)
			return
		}
		week, err := leagueStore.CurrentWeek(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to read current week", err)
			return
		}
		champion, err := bracketService.Champion(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to resolve champion", err)
			return
		}
		views.Render(w, r, views.StandingsPage(rows, week, champion))
	})

	r.Get("/signup", func(w http.ResponseWriter, r *http.Request) {
		pending, err := pendingPlayers(r.Context(), leagueStore)
		if err != nil {
			httputil.InternalServerError(w, "Failed to list players", err)
			return
		}
		okMsg := ""
		if r.URL.Query().Get("ok") != "" {
			okMsg = "Thanks for signing up! An admin will approve your spot."
		}
		views.Render(w, r, views.SignupPage(pending, "", okMsg))
	})

	r.Post("/signup", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			httputil.BadRequest(w, "Invalid form data", err)
			return
		}
		_, err := playerService.Signup(r.Context(),
			r.Form.Get("first_name"), r.Form.Get("last_name"), r.Form.Get("cec_id"))
		if err != nil {
			if service.IsValidation(err) || service.IsStateConflict(err) {
				pending, listErr := pendingPlayers(r.Context(), leagueStore)
				if listErr != nil {
					httputil.InternalServerError(w, "Failed to list players", listErr)
					return
				}
				views.Render(w, r, views.SignupPage(pending, err.Error(), ""))
				return
			}
			httputil.InternalServerError(w, "Failed to sign up", err)
			return
		}
		http.Redirect(w, r, "/signup?ok=1", http.StatusFound)
	})

	r.Get("/schedule", func(w http.ResponseWriter, r *http.Request) {
		week, err := leagueStore.CurrentWeek(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to read current week", err)
			return
		}
		http.Redirect(w, r, fmt.Sprintf("/schedule/%d", week), http.StatusFound)
	})

	r.Get("/schedule/{week}", func(w http.ResponseWriter, r *http.Request) {
		week, err := strconv.Atoi(chi.URLParam(r, "week"))
		if err != nil || week < 1 || week > league.MaxWeeks {
			httputil.BadRequest(w, "Invalid week", err)
			return
		}
		matches, err := leagueStore.ListWeekMatches(r.Context(), week)
		if err != nil {
			httputil.InternalServerError(w, "Failed to list matches", err)
			return
		}
		players, err := leagueStore.ListPlayers(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to list players", err)
			return
		}
		maxWeek, err := leagueStore.MaxRegularWeek(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to read season length", err)
			return
		}
		currentWeek, err := leagueStore.CurrentWeek(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to read current week", err)
			return
		}
		lines := views.BuildMatchLines(matches, views.PlayerNames(players), currentWeek)
		views.Render(w, r, views.SchedulePage(week, maxWeek, currentWeek, lines))
	})

	r.Get("/match/{id}", func(w http.ResponseWriter, r *http.Request) {
		match, names, ok := loadMatchPage(w, r, leagueStore)
		if !ok {
			return
		}
		views.Render(w, r, views.MatchReportPage(match, names, ""))
	})

	r.Post("/match/{id}", func(w http.ResponseWriter, r *http.Request) {
		match, names, ok := loadMatchPage(w, r, leagueStore)
		if !ok {
			return
		}
		if err := r.ParseForm(); err != nil {
			httputil.BadRequest(w, "Invalid form data", err)
			return
		}
		var raw [league.MaxGames][2]string
		for g := 0; g < league.MaxGames; g++ {
			raw[g][0] = r.Form.Get(fmt.Sprintf("game%d_score1", g+1))
			raw[g][1] = r.Form.Get(fmt.Sprintf("game%d_score2", g+1))
		}
		if err := matchService.ReportScore(r.Context(), match.ID, raw); err != nil {
			if service.IsValidation(err) || service.IsStateConflict(err) {
				views.Render(w, r, views.MatchReportPage(match, names, err.Error()))
				return
			}
			httputil.InternalServerError(w, "Failed to report score", err)
			return
		}
		if match.Playoff {
			http.Redirect(w, r, "/playoffs", http.StatusFound)
			return
		}
		http.Redirect(w, r, "/schedule", http.StatusFound)
	})

	r.Get("/playoffs", func(w http.ResponseWriter, r *http.Request) {
		players, err := leagueStore.ListPlayers(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to list players", err)
			return
		}
		names := views.PlayerNames(players)

		exists, err := leagueStore.PlayoffsExist(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to check playoffs", err)
			return
		}

		if !exists {
			preview, err := bracketService.PreviewBracket(r.Context())
			if err != nil {
				httputil.InternalServerError(w, "Failed to build bracket preview", err)
				return
			}
			views.Render(w, r, views.PlayoffsPage(views.BuildPlayoffPreview(preview, names), nil, true))
			return
		}

		matches, err := leagueStore.ListPlayoffMatches(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to list playoff matches", err)
			return
		}
		round, err := leagueStore.CurrentPlayoffRound(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to read current round", err)
			return
		}
		champion, err := bracketService.Champion(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to resolve champion", err)
			return
		}
		views.Render(w, r, views.PlayoffsPage(views.BuildBracketRounds(matches, names, round), champion, false))
	})

	r.Get("/player/{id}", func(w http.ResponseWriter, r *http.Request) {
		playerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.BadRequest(w, "Invalid player ID", err)
			return
		}
		profile, err := playerService.Profile(r.Context(), playerID)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				httputil.NotFound(w, "Player not found", err)
				return
			}
			httputil.InternalServerError(w, "Failed to load player", err)
			return
		}
		views.Render(w, r, views.PlayerProfilePage(profile))
	})

	r.Get("/auth/{provider}", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		r = r.WithContext(context.WithValue(r.Context(), "provider", provider))

		gothic.BeginAuthHandler(w, r)
	})

	r.Get("/auth/{provider}/callback", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		r = r.WithContext(context.WithValue(r.Context(), "provider", provider))

		gothUser, err := gothic.CompleteUserAuth(w, r)
		if err != nil {
			httputil.BadRequest(w, "Authentication failure", err)
			return
		}
		if !middleware.IsAdminEmail(gothUser.Email) {
			views.Render(w, r, views.AdminLoginPage("That account is not an admin."))
			return
		}
		if err := sessionManager.RenewToken(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to renew session", err)
			return
		}
		middleware.GrantAdmin(sessionManager, r.Context())
		http.Redirect(w, r, "/admin", http.StatusFound)
	})

	r.Get("/admin/login", func(w http.ResponseWriter, r *http.Request) {
		views.Render(w, r, views.AdminLoginPage(r.URL.Query().Get("error")))
	})

	r.Post("/admin/login", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			httputil.BadRequest(w, "Invalid form data", err)
			return
		}
		if !middleware.CheckAdminPassword(r.Form.Get("password")) {
			views.Render(w, r, views.AdminLoginPage("Incorrect password."))
			return
		}
		if err := sessionManager.RenewToken(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to renew session", err)
			return
		}
		middleware.GrantAdmin(sessionManager, r.Context())
		http.Redirect(w, r, "/admin", http.StatusFound)
	})

	r.Post("/admin/logout", func(w http.ResponseWriter, r *http.Request) {
		middleware.RevokeAdmin(sessionManager, r.Context())
		if err := sessionManager.Destroy(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to end session", err)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(sessionManager))

		r.Get("/admin", func(w http.ResponseWriter, r *http.Request) {
			data, err := buildDashboard(r, leagueStore)
			if err != nil {
				httputil.InternalServerError(w, "Failed to build dashboard", err)
				return
			}
			views.Render(w, r, views.AdminDashboard(*data))
		})

		r.Post("/admin/generate_schedule", func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				httputil.BadRequest(w, "Invalid form data", err)
				return
			}
			confirmed := r.Form.Get("confirm") == "1"
			if err := scheduleService.GenerateSchedule(r.Context(), confirmed); err != nil {
				if errors.Is(err, service.ErrScheduleExhausted) {
					redirectAdmin(w, r, "error", "Could not find a repeat-free schedule. Try again.")
					return
				}
				if !redirectServiceError(w, r, err) {
					httputil.InternalServerError(w, "Failed to generate schedule", err)
				}
				return
			}
			redirectAdmin(w, r, "ok", "Schedule generated.")
		})

		r.Post("/admin/week", func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				httputil.BadRequest(w, "Invalid form data", err)
				return
			}
			week, err := strconv.Atoi(r.Form.Get("week"))
			if err != nil {
				httputil.BadRequest(w, "Invalid week", err)
				return
			}
			confirmed := r.Form.Get("confirm") == "1"
			forfeited, err := scheduleService.SetCurrentWeek(r.Context(), week, confirmed)
			if err != nil {
				if !redirectServiceError(w, r, err) {
					httputil.InternalServerError(w, "Failed to set week", err)
				}
				return
			}
			msg := fmt.Sprintf("Current week set to %d.", week)
			if forfeited > 0 {
				msg = fmt.Sprintf("Current week set to %d; %d match(es) forfeited.", week, forfeited)
			}
			redirectAdmin(w, r, "ok", msg)
		})

		r.Post("/admin/start_playoffs", func(w http.ResponseWriter, r *http.Request) {
			if err := bracketService.StartPlayoffs(r.Context()); err != nil {
				if !redirectServiceError(w, r, err) {
					httputil.InternalServerError(w, "Failed to start playoffs", err)
				}
				return
			}
			http.Redirect(w, r, "/playoffs", http.StatusFound)
		})

		r.Post("/admin/force_playoffs", func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				httputil.BadRequest(w, "Invalid form data", err)
				return
			}
			confirmed := r.Form.Get("confirm") == "1"
			if err := bracketService.ForceCreateBracket(r.Context(), confirmed); err != nil {
				if !redirectServiceError(w, r, err) {
					httputil.InternalServerError(w, "Failed to rebuild bracket", err)
				}
				return
			}
			http.Redirect(w, r, "/playoffs", http.StatusFound)
		})

		r.Post("/admin/advance_playoff_round", func(w http.ResponseWriter, r *http.Request) {
			result, err := bracketService.AdvanceRound(r.Context())
			if err != nil {
				if !redirectServiceError(w, r, err) {
					httputil.InternalServerError(w, "Failed to advance round", err)
				}
				return
			}
			if result.ChampionID != nil {
				redirectAdmin(w, r, "ok", "Playoffs complete. A champion has been crowned!")
				return
			}
			redirectAdmin(w, r, "ok", fmt.Sprintf("Advanced to round %d.", result.NextRound))
		})

		r.Post("/admin/reset", func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				httputil.BadRequest(w, "Invalid form data", err)
				return
			}
			if r.Form.Get("confirm") != "1" {
				redirectAdmin(w, r, "error", "Resetting the league requires confirmation.")
				return
			}
			if err := scheduleService.ResetLeague(r.Context()); err != nil {
				httputil.InternalServerError(w, "Failed to reset league", err)
				return
			}
			redirectAdmin(w, r, "ok", "League reset.")
		})

		r.Post("/admin/player/{id}/approve", func(w http.ResponseWriter, r *http.Request) {
			playerID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid player ID", err)
				return
			}
			if err := playerService.Approve(r.Context(), playerID); err != nil {
				if errors.Is(err, service.ErrNotFound) {
					httputil.NotFound(w, "Player not found", err)
					return
				}
				httputil.InternalServerError(w, "Failed to approve player", err)
				return
			}
			redirectAdmin(w, r, "ok", "Player approved.")
		})

		r.Post("/admin/player/{id}/delete", func(w http.ResponseWriter, r *http.Request) {
			playerID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid player ID", err)
				return
			}
			if err := playerService.DeletePlayer(r.Context(), playerID); err != nil {
				if errors.Is(err, service.ErrNotFound) {
					httputil.NotFound(w, "Player not found", err)
					return
				}
				if !redirectServiceError(w, r, err) {
					httputil.InternalServerError(w, "Failed to delete player", err)
				}
				return
			}
			redirectAdmin(w, r, "ok", "Player deleted.")
		})

		r.Post("/admin/match/{id}/delete", func(w http.ResponseWriter, r *http.Request) {
			matchID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid match ID", err)
				return
			}
			if err := matchService.DeleteMatch(r.Context(), matchID); err != nil {
				if errors.Is(err, service.ErrNotFound) {
					httputil.NotFound(w, "Match not found", err)
					return
				}
				httputil.InternalServerError(w, "Failed to delete match", err)
				return
			}
			redirectAdmin(w, r, "ok", "Match deleted.")
		})
	})

	return r
}

func pendingPlayers(ctx context.Context, leagueStore *store.LeagueStore) ([]league.Player, error) {
	players, err := leagueStore.ListPlayers(ctx)
	if err != nil {
		return nil, err
	}
	var pending []league.Player
	for _, p := range players {
		if !p.Approved {
			pending = append(pending, p)
		}
	}
	return pending, nil
}

func loadMatchPage(w http.ResponseWriter, r *http.Request, leagueStore *store.LeagueStore) (*league.Match, map[uuid.UUID]string, bool) {
	matchID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "Invalid match ID", err)
		return nil, nil, false
	}
	match, err := leagueStore.GetMatch(r.Context(), matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httputil.NotFound(w, "Match not found", err)
			return nil, nil, false
		}
		httputil.InternalServerError(w, "Failed to load match", err)
		return nil, nil, false
	}
	players, err := leagueStore.ListPlayers(r.Context())
	if err != nil {
		httputil.InternalServerError(w, "Failed to list players", err)
		return nil, nil, false
	}
	return match, views.PlayerNames(players), true
}

func buildDashboard(r *http.Request, leagueStore *store.LeagueStore) (*views.AdminDashboardData, error) {
	ctx := r.Context()

	players, err := leagueStore.ListPlayers(ctx)
	if err != nil {
		return nil, err
	}
	matches, err := leagueStore.ListAllMatches(ctx)
	if err != nil {
		return nil, err
	}
	currentWeek, err := leagueStore.CurrentWeek(ctx)
	if err != nil {
		return nil, err
	}
	maxWeek, err := leagueStore.MaxRegularWeek(ctx)
	if err != nil {
		return nil, err
	}
	unreported, err := leagueStore.CountUnreportedRegular(ctx)
	if err != nil {
		return nil, err
	}
	round, err := leagueStore.CurrentPlayoffRound(ctx)
	if err != nil {
		return nil, err
	}

	data := &views.AdminDashboardData{
		Players:          players,
		Matches:          views.BuildMatchLines(matches, views.PlayerNames(players), currentWeek),
		CurrentWeek:      currentWeek,
		CanStartPlayoffs: maxWeek > 0 && unreported == 0,
		PlayoffsActive:   round != league.NoActiveRound,
		ErrMsg:           r.URL.Query().Get("error"),
		OkMsg:            r.URL.Query().Get("ok"),
	}
	if data.PlayoffsActive {
		roundMatches, err := leagueStore.ListRoundMatches(ctx, round)
		if err != nil {
			return nil, err
		}
		data.ActiveRoundLabel = views.RoundLabel(round, len(roundMatches))
	}
	return data, nil
}

// redirectServiceError sends validation and state-conflict failures back to
// the dashboard as a flash message. It reports whether it handled the error.
func redirectServiceError(w http.ResponseWriter, r *http.Request, err error) bool {
	if service.IsValidation(err) || service.IsStateConflict(err) {
		redirectAdmin(w, r, "error", err.Error())
		return true
	}
	return false
}

func redirectAdmin(w http.ResponseWriter, r *http.Request, key, msg string) {
	http.Redirect(w, r, "/admin?"+key+"="+url.QueryEscape(msg), http.StatusFound)
}
