package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/markbates/goth"
	"github.com/markbates/goth/providers/discord"
	"github.com/markbates/goth/providers/google"
)

const (
	adminFlagKey     = "isAdmin"
	adminLastSeenKey = "adminLastSeen"
)

// adminIdleTimeout is how long an admin session survives without a request.
const adminIdleTimeout = 30 * time.Minute

func InitAuth() {
	discordKey := os.Getenv("DISCORD_KEY")
	discordSecret := os.Getenv("DISCORD_SECRET")
	discordCallbackURL := os.Getenv("DISCORD_CALLBACK_URL")

	googleKey := os.Getenv("GOOGLE_KEY")
	googleSecret := os.Getenv("GOOGLE_SECRET")
	googleCallbackURL := os.Getenv("GOOGLE_CALLBACK_URL")

	goth.UseProviders(
		discord.New(discordKey, discordSecret, discordCallbackURL, discord.ScopeIdentify, discord.ScopeEmail),
		google.New(googleKey, googleSecret, googleCallbackURL, "email", "profile"),
	)
}

// CheckAdminPassword compares the submitted password against ADMIN_PASSWORD
// in constant time. An unset password disables password login entirely.
func CheckAdminPassword(password string) bool {
	expected := os.Getenv("ADMIN_PASSWORD")
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(expected)) == 1
}

// IsAdminEmail reports whether an OAuth account email is on the
// comma-separated ADMIN_EMAILS allow-list.
func IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, allowed := range strings.Split(os.Getenv("ADMIN_EMAILS"), ",") {
		if strings.ToLower(strings.TrimSpace(allowed)) == email {
			return true
		}
	}
	return false
}

func GrantAdmin(sessionManager *scs.SessionManager, ctx context.Context) {
	sessionManager.Put(ctx, adminFlagKey, true)
	sessionManager.Put(ctx, adminLastSeenKey, time.Now().Unix())
}

func RevokeAdmin(sessionManager *scs.SessionManager, ctx context.Context) {
	sessionManager.Remove(ctx, adminFlagKey)
	sessionManager.Remove(ctx, adminLastSeenKey)
}

// IsAdmin reports whether the session holds a live admin grant, expiring it
// after the inactivity timeout and refreshing the timestamp otherwise.
func IsAdmin(sessionManager *scs.SessionManager, ctx context.Context) bool {
	if !sessionManager.GetBool(ctx, adminFlagKey) {
		return false
	}
	lastSeen := sessionManager.GetInt64(ctx, adminLastSeenKey)
	if lastSeen == 0 || time.Since(time.Unix(lastSeen, 0)) > adminIdleTimeout {
		RevokeAdmin(sessionManager, ctx)
		return false
	}
	sessionManager.Put(ctx, adminLastSeenKey, time.Now().Unix())
	return true
}

func RequireAdmin(sessionManager *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsAdmin(sessionManager, r.Context()) {
				http.Redirect(w, r, "/admin/login", http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
