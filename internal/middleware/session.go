package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jo-hoe/oralvis/internal/auth"
	"github.com/jo-hoe/oralvis/internal/session"
	"github.com/labstack/echo/v4"
)

const sessionContextKey = "oralvis.session"

type SessionConfig struct {
	Secret     string
	CookieName string
	TokenTTL   time.Duration
	Secure     bool
}

// SessionCookies binds browser clients to server-side sessions through a signed cookie.
type SessionCookies struct {
	manager *session.Manager
	config  SessionConfig
}

func NewSessionCookies(manager *session.Manager, config SessionConfig) *SessionCookies {
	if config.CookieName == "" {
		config.CookieName = "oralvis_session"
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = 12 * time.Hour
	}
	return &SessionCookies{manager: manager, config: config}
}

// Middleware attaches the caller's live session, if any. Requests without a valid
// cookie pass through without one; sessions are only created by Login.
func (sc *SessionCookies) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if s, ok := sc.lookup(c); ok {
				c.Set(sessionContextKey, s)
			}
			return next(c)
		}
	}
}

func (sc *SessionCookies) lookup(c echo.Context) (*session.Session, bool) {
	cookie, err := c.Cookie(sc.config.CookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	claims, err := auth.ParseToken(cookie.Value, sc.config.Secret)
	if err != nil {
		slog.Debug("ignoring invalid session cookie", "error", err)
		return nil, false
	}
	return sc.manager.Get(claims.SessionID)
}

// Login authenticates on a fresh session and issues its cookie. The caller's
// previous session, if any, is ended whatever the outcome, so a session ID
// known before login is never the one that becomes authenticated. No cookie is
// issued when authentication fails.
func (sc *SessionCookies) Login(c echo.Context, email, password string) (auth.Identity, error) {
	if old, ok := SessionFrom(c); ok {
		sc.manager.End(old.ID())
		c.Set(sessionContextKey, nil)
	}

	s := sc.manager.Create()
	identity, err := s.Login(c.Request().Context(), email, password)
	if err != nil {
		sc.manager.End(s.ID())
		return auth.Identity{}, err
	}
	token, err := auth.MakeToken(s.ID(), sc.config.Secret, sc.config.TokenTTL)
	if err != nil {
		sc.manager.End(s.ID())
		return auth.Identity{}, fmt.Errorf("failed to issue session token: %w", err)
	}
	c.SetCookie(&http.Cookie{
		Name:     sc.config.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sc.config.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   sc.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	c.Set(sessionContextKey, s)
	return identity, nil
}

// End forgets the caller's session and expires the cookie.
func (sc *SessionCookies) End(c echo.Context) {
	if s, ok := SessionFrom(c); ok {
		sc.manager.End(s.ID())
	}
	c.Set(sessionContextKey, nil)
	c.SetCookie(&http.Cookie{
		Name:     sc.config.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sc.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func SessionFrom(c echo.Context) (*session.Session, bool) {
	s, ok := c.Get(sessionContextKey).(*session.Session)
	return s, ok && s != nil
}

// IdentityFrom returns nil for anonymous callers.
func IdentityFrom(c echo.Context) *auth.Identity {
	s, ok := SessionFrom(c)
	if !ok {
		return nil
	}
	id, ok := s.CurrentIdentity()
	if !ok {
		return nil
	}
	return &id
}
