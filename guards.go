package auth

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// RouteGuard gates route access on the session controller's state. Guards
// never inspect the loading flag beyond rendering a placeholder; routing
// decisions are made only against settled AUTHENTICATED or ANONYMOUS state.
type RouteGuard struct {
	session          SessionReader
	cfg              Config
	Logger           Logger
	AuthErrorHandler func(c *fiber.Ctx, err error) error
	ErrorHandler     func(c *fiber.Ctx, err error) error
}

func NewRouteGuard(session SessionReader, cfg Config) (*RouteGuard, error) {
	if session == nil {
		return nil, errors.New("route guard requires a session reader", errors.CategoryBadInput)
	}

	g := &RouteGuard{
		session: session,
		cfg:     cfg,
		Logger:  defLogger{},
	}

	g.ErrorHandler = g.defaultErrHandler
	g.AuthErrorHandler = g.defaultAuthErrHandler

	return g, nil
}

// RequireAuthenticated admits any signed-in principal regardless of role.
// Anonymous visitors are bounced to the login page with the rejected path
// preserved so a successful login can return them.
func (g *RouteGuard) RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		session := g.session.Current()

		if session.Loading {
			return g.renderPlaceholder(c)
		}

		if !session.Authenticated() {
			return g.AuthErrorHandler(c, ErrUnauthorizedResponse)
		}

		return c.Next()
	}
}

// RequireAdmin admits admins only. Authenticated non-admins land on the
// dashboard entry route rather than the login page.
func (g *RouteGuard) RequireAdmin() fiber.Handler {
	return g.requireRole(CanAccessAdminViews)
}

// RequireDecorator admits decorators and admins.
func (g *RouteGuard) RequireDecorator() fiber.Handler {
	return g.requireRole(CanAccessDecoratorViews)
}

func (g *RouteGuard) requireRole(allowed func(Role) bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session := g.session.Current()

		if session.Loading {
			return g.renderPlaceholder(c)
		}

		if !session.Authenticated() {
			return g.AuthErrorHandler(c, ErrUnauthorizedResponse)
		}

		if !allowed(session.Role) {
			g.Logger.Info(
				"Insufficient role, redirecting to dashboard",
				"role", session.Role,
				"path", c.OriginalURL(),
			)
			return c.Redirect(g.cfg.GetRejectedRouteDefault(), redirectStatus(c))
		}

		return c.Next()
	}
}

// DashboardEntry resolves the dashboard landing page for the current role.
// Admins and decorators get redirected to their own homes; everyone else
// gets the end-user dashboard rendered in place.
func (g *RouteGuard) DashboardEntry() fiber.Handler {
	return func(c *fiber.Ctx) error {
		session := g.session.Current()

		if session.Loading {
			return g.renderPlaceholder(c)
		}

		if !session.Authenticated() {
			return g.AuthErrorHandler(c, ErrUnauthorizedResponse)
		}

		switch {
		case CanAccessAdminViews(session.Role):
			return c.Redirect("/dashboard/admin-home", redirectStatus(c))
		case CanAccessDecoratorViews(session.Role):
			return c.Redirect("/dashboard/decorator-home", redirectStatus(c))
		}

		return c.Render("dashboard/user", fiber.Map{"session": session})
	}
}

func (g *RouteGuard) GetRedirect(c *fiber.Ctx, def ...string) string {
	rejectedRoute := g.cfg.GetRejectedRouteKey()
	r := c.Cookies(rejectedRoute)
	if r == "" {
		return def[0]
	}
	g.cookieDel(c, rejectedRoute)
	return r
}

func (g *RouteGuard) GetRedirectOrDefault(c *fiber.Ctx) string {
	rejectedRoute := g.cfg.GetRejectedRouteKey()
	refererHeader := c.Get(fiber.HeaderReferer)

	r := c.Cookies(rejectedRoute, refererHeader)
	if r == "" {
		r = g.cfg.GetRejectedRouteDefault()
	}
	g.cookieDel(c, rejectedRoute)
	return r
}

func (g *RouteGuard) SetRedirect(c *fiber.Ctx) {
	rejectedRoute := g.cfg.GetRejectedRouteKey()

	g.Logger.Info("Setting redirect cookie", "key", rejectedRoute, "path", c.OriginalURL())

	c.Cookie(&fiber.Cookie{
		Name:     rejectedRoute,
		Value:    c.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (g *RouteGuard) renderPlaceholder(c *fiber.Ctx) error {
	return c.Render("loading", fiber.Map{
		"path": c.OriginalURL(),
	})
}

func (g *RouteGuard) cookieDel(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (g *RouteGuard) defaultAuthErrHandler(c *fiber.Ctx, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	g.Logger.Info(
		"Authentication error, redirecting to login",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	g.SetRedirect(c)

	return c.Redirect("/login", redirectStatus(c))
}

func (g *RouteGuard) defaultErrHandler(c *fiber.Ctx, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	g.Logger.Info(
		"Guard error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return g.AuthErrorHandler(c, richErr)
	default:
		return c.Status(richErr.Code).Render("errors/500", fiber.Map{
			"error": richErr,
		})
	}
}

func redirectStatus(c *fiber.Ctx) int {
	if c.Method() == fiber.MethodGet {
		return http.StatusFound
	}
	return http.StatusSeeOther
}
