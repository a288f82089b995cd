package enroll

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims is the verified view of a session token
type AuthClaims interface {
	Subject() string
	UserID() string
	Name() string
	Email() string
	Role() Role
	HasRole(role Role) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete claim set carried by session tokens
type JWTClaims struct {
	jwt.RegisteredClaims
	UID       string `json:"uid,omitempty"`
	FullName  string `json:"name,omitempty"`
	UserEmail string `json:"email,omitempty"`
	UserRole  Role   `json:"role,omitempty"`
}

var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the principal id, falling back to the subject
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Name returns the principal's display name
func (c *JWTClaims) Name() string {
	return c.FullName
}

// Email returns the principal's email
func (c *JWTClaims) Email() string {
	return c.UserEmail
}

// Role returns the principal's role
func (c *JWTClaims) Role() Role {
	return c.UserRole
}

// HasRole checks for an exact role match
func (c *JWTClaims) HasRole(role Role) bool {
	return c.UserRole == role
}

// Expires returns the expiry time, zero when absent
func (c *JWTClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// IssuedAt returns the issue time, zero when absent
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.IssuedAt.Time
}
