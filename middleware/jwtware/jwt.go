package jwtware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// DefaultContextKey is where validated claims are stored on the request
const DefaultContextKey = "session"

// ErrJWTMissingOrMalformed is returned when no token can be extracted
var ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")

// TokenValidator validates raw tokens without importing the root
// package. This mirrors the TokenService.Validate method.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// AuthClaims is the subset of claims the middleware needs.
// This mirrors the AuthClaims interface from the root package.
type AuthClaims interface {
	Subject() string
	UserID() string
	Name() string
	Email() string
	Role() string
	HasRole(role string) bool
}

// Config configures the session guard
type Config struct {
	// CookieName is the session cookie to read the token from
	CookieName string
	// AuthScheme is matched against the Authorization header fallback
	AuthScheme string
	// ContextKey is where validated claims are stored in fiber locals
	ContextKey string
	// TokenValidator is required for token validation
	TokenValidator TokenValidator
	// RequiredRole, when set, must match the claims role exactly
	RequiredRole string
	// ErrorHandler renders validation and authorization failures
	ErrorHandler func(c *fiber.Ctx, err error) error
	// Filter skips the guard when it returns true
	Filter func(c *fiber.Ctx) bool
}

// ErrInsufficientRole is returned when a valid session lacks the required role
var ErrInsufficientRole = errors.New("insufficient role")

// New creates a fiber middleware that validates the session token and
// stores the claims in the request locals.
func New(config Config) fiber.Handler {
	cfg := withDefaults(config)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw := extractToken(c, cfg)
		if raw == "" {
			return cfg.ErrorHandler(c, ErrJWTMissingOrMalformed)
		}

		claims, err := cfg.TokenValidator.Validate(raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		if cfg.RequiredRole != "" && !claims.HasRole(cfg.RequiredRole) {
			return cfg.ErrorHandler(c, ErrInsufficientRole)
		}

		c.Locals(cfg.ContextKey, claims)

		return c.Next()
	}
}

// ClaimsFromContext retrieves validated claims stored by the middleware
func ClaimsFromContext(c *fiber.Ctx, contextKey string) (AuthClaims, bool) {
	if contextKey == "" {
		contextKey = DefaultContextKey
	}
	claims, ok := c.Locals(contextKey).(AuthClaims)
	return claims, ok
}

func withDefaults(cfg Config) Config {
	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}
	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}
	if cfg.TokenValidator == nil {
		panic("jwtware: TokenValidator is required")
	}
	return cfg
}

func defaultErrorHandler(c *fiber.Ctx, err error) error {
	status := http.StatusUnauthorized
	kind := "INVALID_SESSION"
	if errors.Is(err, ErrInsufficientRole) {
		status = http.StatusForbidden
		kind = "FORBIDDEN"
	}
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"kind":    kind,
			"message": "authentication required",
		},
	})
}

func extractToken(c *fiber.Ctx, cfg Config) string {
	if cfg.CookieName != "" {
		if v := c.Cookies(cfg.CookieName); v != "" {
			return v
		}
	}

	header := c.Get(fiber.HeaderAuthorization)
	prefix := cfg.AuthScheme + " "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}

	return ""
}
