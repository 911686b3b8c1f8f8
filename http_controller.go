package auth

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
)

// RegisterAuthRoutes mounts the login, registration, federated sign-in, and
// logout handlers on the app.
func RegisterAuthRoutes(app fiber.Router, opts ...AuthControllerOption) {
	controller := NewAuthController(opts...)

	app.Get(controller.Routes.Login, controller.LoginShow).Name("sign-in.get")
	app.Post(controller.Routes.Login, controller.LoginPost).Name("sign-in.post")
	app.Post(controller.Routes.Federated, controller.FederatedPost).Name("sign-in.federated")
	app.Get(controller.Routes.Logout, controller.LogOut).Name("sign-out.get")
	app.Get(controller.Routes.Register, controller.RegistrationShow).Name("register.get")
	app.Post(controller.Routes.Register, controller.RegistrationCreate).Name("register.post")
}

type AuthControllerRoutes struct {
	Login     string
	Logout    string
	Register  string
	Federated string
}

type AuthControllerViews struct {
	Login    string
	Register string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Session      SessionAuthenticator
	Guard        *RouteGuard
	Routes       *AuthControllerRoutes
	Views        *AuthControllerViews
	ErrorHandler func(c *fiber.Ctx, err error) error
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerSession(session SessionAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Session = session
		return c
	}
}

func WithControllerGuard(guard *RouteGuard) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Guard = guard
		return c
	}
}

func WithAuthControllerLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if l != nil {
			c.Logger = l
		}
		return c
	}
}

func WithAuthControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Routes: &AuthControllerRoutes{
			Login:     "/login",
			Logout:    "/logout",
			Register:  "/register",
			Federated: "/login/federated",
		},
		Views: &AuthControllerViews{
			Login:    "login",
			Register: "register",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Session == nil {
		panic("Missing SessionAuthenticator in auth controller...")
	}

	if c.Guard == nil {
		panic("Missing RouteGuard in auth controller...")
	}

	return c
}

func (a *AuthController) LoginShow(ctx *fiber.Ctx) error {
	return ctx.Render(a.Views.Login, fiber.Map{
		"errors": nil,
		"record": nil,
	})
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) LoginPost(ctx *fiber.Ctx) error {
	payload := new(LoginRequest)
	formErrors := map[string]string{}

	if err := ctx.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.Login, fiber.Map{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		fmt.Println("======= AUTH LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=========================")
	}

	if _, err := a.Session.Login(ctx.UserContext(), payload.Email, payload.Password); err != nil {
		formErrors["authentication"] = "Authentication Error"
		return ctx.Render(a.Views.Login, fiber.Map{
			"errors": formErrors,
			"record": payload,
		})
	}

	redirect := a.Guard.GetRedirect(ctx, "/")

	return ctx.Redirect(redirect, fiber.StatusSeeOther)
}

// FederatedPost runs the interactive federated sign-in flow. A dismissed
// consent window is rendered back as a form error, not a server failure.
func (a *AuthController) FederatedPost(ctx *fiber.Ctx) error {
	if _, err := a.Session.LoginWithFederatedPopup(ctx.UserContext()); err != nil {
		formErrors := map[string]string{}
		if IsPopupDismissedError(err) {
			formErrors["authentication"] = "Sign-in window was closed"
		} else {
			formErrors["authentication"] = "Authentication Error"
		}
		return ctx.Render(a.Views.Login, fiber.Map{
			"errors": formErrors,
			"record": nil,
		})
	}

	redirect := a.Guard.GetRedirect(ctx, "/")

	return ctx.Redirect(redirect, fiber.StatusSeeOther)
}

func (a *AuthController) LogOut(ctx *fiber.Ctx) error {
	if err := a.Session.Logout(ctx.UserContext()); err != nil {
		a.Logger.Error("logout error: ", "error", err)
	}
	return ctx.Redirect("/", fiber.StatusTemporaryRedirect)
}

func (a *AuthController) RegistrationShow(ctx *fiber.Ctx) error {
	return ctx.Render(a.Views.Register, fiber.Map{
		"errors": map[string]string{},
		"record": RegisterPayload{},
	})
}

// RegistrationCreatePayload is the form payload
type RegistrationCreatePayload struct {
	DisplayName     string `form:"display_name" json:"display_name"`
	Email           string `form:"email" json:"email"`
	AvatarURL       string `form:"avatar_url" json:"avatar_url"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DisplayName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.AvatarURL, is.URL),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(6, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) RegistrationCreate(ctx *fiber.Ctx) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.BodyParser(payload); err != nil {
		formErrors := map[string]string{}
		formErrors["form"] = "Failed to parse form"
		a.Logger.Error("register user parse payload: ", "error", err)
		return ctx.Status(fiber.StatusBadRequest).Render(a.Views.Register, fiber.Map{
			"errors": formErrors,
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		formErrors := FormatValidationErrorToMap(err)
		a.Logger.Error("register user validate payload: ", "error", err)

		return ctx.Render(a.Views.Register, fiber.Map{
			"record":     payload,
			"validation": formErrors,
		})
	}

	req := RegisterPayload{
		Email:       payload.Email,
		Password:    payload.Password,
		DisplayName: payload.DisplayName,
		AvatarURL:   payload.AvatarURL,
	}

	if _, err := a.Session.Register(ctx.UserContext(), req); err != nil {
		a.Logger.Error("register user error: ", "error", err)

		formErrors := map[string]string{}
		switch {
		case IsDuplicateAccountError(err):
			formErrors["email"] = "An account with this email already exists"
		case IsWeakPasswordError(err):
			formErrors["password"] = "Password is too weak"
		default:
			formErrors["registration"] = err.Error()
		}

		return ctx.Render(a.Views.Register, fiber.Map{
			"record": payload,
			"errors": formErrors,
		})
	}

	return ctx.Redirect("/", fiber.StatusSeeOther)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a map
// keyed by field name for template rendering.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["validation"] = err.Error()
	return out
}

func defaultErrHandler(c *fiber.Ctx, err error) error {
	return c.Render("errors/500", fiber.Map{
		"message": err.Error(),
	})
}
