// Package guard decides whether a caller may see a page. Decisions are plain
// values; turning them into redirects is left to Require and the router.
package guard

import (
	"net/http"
	"slices"
	"strings"

	"github.com/jo-hoe/oralvis/internal/auth"
	"github.com/jo-hoe/oralvis/internal/middleware"
	"github.com/labstack/echo/v4"
)

type Decision int

const (
	Allow Decision = iota
	RedirectLogin
	RedirectUnauthorized
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect-login"
	case RedirectUnauthorized:
		return "redirect-unauthorized"
	default:
		return "unknown"
	}
}

const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
	TechnicianPath   = "/technician"
	DentistPath      = "/dentist"
)

// Authorize is evaluated on every request and never cached.
func Authorize(identity *auth.Identity, required ...auth.Role) Decision {
	if identity == nil {
		return RedirectLogin
	}
	if !slices.Contains(required, identity.Role) {
		return RedirectUnauthorized
	}
	return Allow
}

// HomeFor is the landing page of a role.
func HomeFor(role auth.Role) string {
	switch role {
	case auth.RoleTechnician:
		return TechnicianPath
	case auth.RoleDentist:
		return DentistPath
	default:
		return UnauthorizedPath
	}
}

// Require guards a route group. Page routes are redirected, /api/ routes get 401/403.
func Require(roles ...auth.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			decision := Authorize(middleware.IdentityFrom(c), roles...)
			if decision == Allow {
				return next(c)
			}
			if strings.HasPrefix(c.Request().URL.Path, "/api/") {
				if decision == RedirectLogin {
					return echo.NewHTTPError(http.StatusUnauthorized, "login required")
				}
				return echo.NewHTTPError(http.StatusForbidden, "not permitted for this role")
			}
			if decision == RedirectLogin {
				return c.Redirect(http.StatusSeeOther, LoginPath)
			}
			return c.Redirect(http.StatusSeeOther, UnauthorizedPath)
		}
	}
}
