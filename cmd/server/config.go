package main

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the server configuration loaded from the environment.
type Config struct {
	Addr        string `env:"ENROLL_ADDR"         envDefault:":8080"`
	DatabaseDSN string `env:"ENROLL_DATABASE_DSN" envDefault:"file:enroll.db?cache=shared&mode=rwc"`

	SigningKey      string   `env:"ENROLL_SIGNING_KEY,required"`
	TokenExpiration int      `env:"ENROLL_TOKEN_EXPIRATION_HOURS" envDefault:"24"`
	Issuer          string   `env:"ENROLL_TOKEN_ISSUER"           envDefault:"educlub"`
	Audience        []string `env:"ENROLL_TOKEN_AUDIENCE"         envDefault:"educlub" envSeparator:","`
	CookieName      string   `env:"ENROLL_COOKIE_NAME"            envDefault:"session"`
	SecureCookies   bool     `env:"ENROLL_SECURE_COOKIES"         envDefault:"false"`

	GoogleClientID     string `env:"ENROLL_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"ENROLL_GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `env:"ENROLL_GOOGLE_CALLBACK_URL"`

	GithubClientID     string `env:"ENROLL_GITHUB_CLIENT_ID"`
	GithubClientSecret string `env:"ENROLL_GITHUB_CLIENT_SECRET"`
	GithubCallbackURL  string `env:"ENROLL_GITHUB_CALLBACK_URL"`

	StateHMACKey    string        `env:"ENROLL_STATE_HMAC_KEY"`
	StateTTL        time.Duration `env:"ENROLL_STATE_TTL"        envDefault:"10m"`
	SuccessRedirect string        `env:"ENROLL_SUCCESS_REDIRECT" envDefault:"/"`
	ErrorRedirect   string        `env:"ENROLL_ERROR_REDIRECT"   envDefault:"/user/login/failed"`
}

// LoadConfig loads the server configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.StateHMACKey == "" {
		cfg.StateHMACKey = cfg.SigningKey
	}
	return cfg, nil
}

func (c *Config) GetSigningKey() string   { return c.SigningKey }
func (c *Config) GetTokenExpiration() int { return c.TokenExpiration }
func (c *Config) GetIssuer() string       { return c.Issuer }
func (c *Config) GetAudience() []string   { return c.Audience }
func (c *Config) GetCookieName() string   { return c.CookieName }
func (c *Config) GetSecureCookies() bool  { return c.SecureCookies }
