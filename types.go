package enroll

import "fmt"

// Logger is the minimal logging surface used across the package
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Principal is an authenticated caller. The three variants — admin,
// local student, external student — share this surface while keeping
// their credential mechanisms distinct.
type Principal interface {
	ID() string
	Name() string
	Email() string
	Role() Role
}

// Config holds the session/token options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
	GetCookieName() string
	GetSecureCookies() bool
}

type studentPrincipal struct {
	id    string
	name  string
	email string
}

func (p studentPrincipal) ID() string    { return p.id }
func (p studentPrincipal) Name() string  { return p.name }
func (p studentPrincipal) Email() string { return p.email }
func (p studentPrincipal) Role() Role    { return RoleStudent }

// StudentPrincipal wraps a persisted student account, local or external
func StudentPrincipal(s *Student) Principal {
	return studentPrincipal{
		id:    s.ID.String(),
		name:  s.Name,
		email: s.Email,
	}
}

type externalPrincipal struct {
	externalID string
	name       string
	email      string
}

func (p externalPrincipal) ID() string    { return p.externalID }
func (p externalPrincipal) Name() string  { return p.name }
func (p externalPrincipal) Email() string { return p.email }
func (p externalPrincipal) Role() Role    { return RoleStudent }

// ExternalPrincipal builds a student principal straight from a provider
// profile. Used when external authentication succeeded but the local
// upsert did not, so the login can still complete.
func ExternalPrincipal(externalID, name, email string) Principal {
	return externalPrincipal{externalID: externalID, name: name, email: email}
}

type adminPrincipal struct {
	id    string
	name  string
	email string
}

func (p adminPrincipal) ID() string    { return p.id }
func (p adminPrincipal) Name() string  { return p.name }
func (p adminPrincipal) Email() string { return p.email }
func (p adminPrincipal) Role() Role    { return RoleAdmin }

// AdminPrincipal represents an administrator authenticated by the
// external identity system; only its verified claims live here.
func AdminPrincipal(id, name, email string) Principal {
	return adminPrincipal{id: id, name: name, email: email}
}

// DefaultLogger returns the stdout fallback logger.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ENROLL "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ENROLL "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ENROLL "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ENROLL "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
