package social

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"

	"github.com/educlub/enroll"
)

// HTTPController handles the external login HTTP routes.
type HTTPController struct {
	authenticator *Authenticator
	config        HTTPConfig
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// DefaultProvider is used when the request does not name one
	DefaultProvider string

	// SessionConfig supplies the session cookie attributes
	SessionConfig enroll.Config

	// SuccessRedirect is the default redirect after successful auth
	SuccessRedirect string

	// ErrorRedirect is the redirect for auth errors
	ErrorRedirect string

	// Logger for callback failures
	Logger enroll.Logger
}

// NewHTTPController creates a new external login HTTP controller.
func NewHTTPController(authenticator *Authenticator, cfg HTTPConfig) *HTTPController {
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = "google"
	}
	if cfg.SuccessRedirect == "" {
		cfg.SuccessRedirect = "/"
	}
	if cfg.ErrorRedirect == "" {
		cfg.ErrorRedirect = "/user/login/failed"
	}

	return &HTTPController{
		authenticator: authenticator,
		config:        cfg,
	}
}

// RegisterRoutes mounts the external login routes.
func (c *HTTPController) RegisterRoutes(app *fiber.App) {
	app.Get("/user/login", c.BeginLogin)
	app.Get("/user/login/callback", c.Callback)
}

// BeginLogin starts the OAuth flow and redirects to the provider.
func (c *HTTPController) BeginLogin(ctx *fiber.Ctx) error {
	providerName := ctx.Query("provider", c.config.DefaultProvider)

	redirectURL := ctx.Query("redirect_url")
	if redirectURL == "" {
		redirectURL = c.config.SuccessRedirect
	}

	redirect, err := c.authenticator.BeginLogin(ctx.Context(), providerName, redirectURL)
	if err != nil {
		return c.redirectWithError(ctx, err)
	}

	return ctx.Redirect(redirect.URL, fiber.StatusTemporaryRedirect)
}

// Callback handles the provider callback, sets the session cookie and
// redirects. Provider failures redirect with an error query parameter
// rather than rendering provider details.
func (c *HTTPController) Callback(ctx *fiber.Ctx) error {
	providerName := ctx.Query("provider", c.config.DefaultProvider)
	code := ctx.Query("code")
	state := ctx.Query("state")

	if errCode := ctx.Query("error"); errCode != "" {
		redirectURL := appendQueryParam(c.config.ErrorRedirect, "error", errCode)
		return ctx.Redirect(redirectURL, fiber.StatusTemporaryRedirect)
	}

	if code == "" || state == "" {
		redirectURL := appendQueryParam(c.config.ErrorRedirect, "error", "missing_params")
		return ctx.Redirect(redirectURL, fiber.StatusTemporaryRedirect)
	}

	result, err := c.authenticator.CompleteLogin(ctx.Context(), providerName, code, state)
	if err != nil {
		return c.redirectWithError(ctx, err)
	}

	enroll.SetSessionCookie(ctx, c.config.SessionConfig, result.Token)

	redirectURL := result.RedirectURL
	if redirectURL == "" {
		redirectURL = c.config.SuccessRedirect
	}

	return ctx.Redirect(redirectURL, fiber.StatusTemporaryRedirect)
}

func (c *HTTPController) redirectWithError(ctx *fiber.Ctx, err error) error {
	if c.config.Logger != nil {
		c.config.Logger.Warn("external login failed: %v", err)
	}

	redirectURL := appendQueryParam(c.config.ErrorRedirect, "error", errorCodeFor(err))
	return ctx.Redirect(redirectURL, fiber.StatusTemporaryRedirect)
}

// errorCodeFor maps errors to stable query-safe codes. Provider response
// details stay in the logs.
func errorCodeFor(err error) string {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return "auth_failed"
	}

	switch rich.TextCode {
	case TextCodeStateExpired:
		return "state_expired"
	case TextCodeInvalidState:
		return "invalid_state"
	case TextCodeProviderNotFound:
		return "unknown_provider"
	case TextCodeTokenExchangeFail:
		return "exchange_failed"
	case TextCodeUserInfoFail:
		return "user_info_failed"
	default:
		return "auth_failed"
	}
}

func appendQueryParam(rawURL, key, value string) string {
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err == nil {
		query := parsed.Query()
		query.Set(key, value)
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}

	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}
