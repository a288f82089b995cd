package enroll

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
)

// WriteError renders any error as the structured envelope
// {"error":{"kind":..., "message":...}}. Full detail is logged
// server-side; internal failures reach the client as a generic message
// with no identifiers or stack information.
func WriteError(c *fiber.Ctx, logger Logger, err error) error {
	if logger == nil {
		logger = defLogger{}
	}

	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	logger.Info(
		"request failed path=%s category=%s text_code=%s error=%v",
		c.OriginalURL(), richErr.Category, richErr.TextCode, err,
	)

	status := statusForCategory(richErr.Category)
	kind := richErr.TextCode
	message := richErr.Message
	if status == http.StatusInternalServerError {
		kind = "INTERNAL"
		message = "internal server error"
	}

	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"kind":    kind,
			"message": message,
		},
	})
}

func statusForCategory(category errors.Category) int {
	switch category {
	case errors.CategoryValidation, errors.CategoryBadInput:
		return http.StatusBadRequest
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case errors.CategoryOperation:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// SetSessionCookie delivers a session token as an HTTP-only cookie
func SetSessionCookie(c *fiber.Ctx, cfg Config, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     cfg.GetCookieName(),
		Value:    token,
		Expires:  time.Now().Add(time.Duration(cfg.GetTokenExpiration()) * time.Hour),
		HTTPOnly: true,
		Secure:   cfg.GetSecureCookies(),
		SameSite: "Lax",
	})
}

// ClearSessionCookie deletes the client-held session artifact. The
// token itself stays valid until its natural expiry: the server keeps
// no revocation list.
func ClearSessionCookie(c *fiber.Ctx, cfg Config) {
	c.Cookie(&fiber.Cookie{
		Name:     cfg.GetCookieName(),
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   cfg.GetSecureCookies(),
		SameSite: "Lax",
	})
}
