package social

import (
	"context"
	"fmt"
	"time"

	"github.com/educlub/enroll"
)

// DefaultExchangeTimeout bounds the round trips to the provider during
// the callback leg so a slow provider cannot hold the request open.
const DefaultExchangeTimeout = 10 * time.Second

// Authenticator orchestrates external login flows.
type Authenticator struct {
	providers    map[string]Provider
	stateManager StateManager
	students     enroll.Students
	tokens       enroll.TokenService
	sink         enroll.ActivitySink
	logger       enroll.Logger
	config       AuthConfig
}

// AuthConfig configures the external authenticator.
type AuthConfig struct {
	DefaultRedirectURL string
	StateHMACKey       []byte
	StateTTL           time.Duration
	ExchangeTimeout    time.Duration
}

// AuthOption configures the authenticator.
type AuthOption func(*Authenticator)

// WithProvider registers an external provider.
func WithProvider(provider Provider) AuthOption {
	return func(a *Authenticator) {
		if provider == nil {
			return
		}
		a.providers[provider.Name()] = provider
	}
}

// WithStateManager sets a custom state manager.
func WithStateManager(sm StateManager) AuthOption {
	return func(a *Authenticator) {
		a.stateManager = sm
	}
}

// WithActivitySink sets the activity sink for audit logging.
func WithActivitySink(sink enroll.ActivitySink) AuthOption {
	return func(a *Authenticator) {
		a.sink = sink
	}
}

// WithLogger sets the logger.
func WithLogger(logger enroll.Logger) AuthOption {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAuthenticator creates a new external authenticator.
func NewAuthenticator(
	students enroll.Students,
	tokens enroll.TokenService,
	config AuthConfig,
	opts ...AuthOption,
) *Authenticator {
	cfg := config
	if cfg.StateTTL == 0 {
		cfg.StateTTL = DefaultStateTTL
	}
	if cfg.ExchangeTimeout == 0 {
		cfg.ExchangeTimeout = DefaultExchangeTimeout
	}
	if cfg.DefaultRedirectURL == "" {
		cfg.DefaultRedirectURL = "/"
	}

	a := &Authenticator{
		providers: make(map[string]Provider),
		students:  students,
		tokens:    tokens,
		config:    cfg,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	if a.stateManager == nil {
		a.stateManager = NewSignedStateManager(cfg.StateHMACKey, cfg.StateTTL)
	}

	return a
}

// LoginRedirect contains the authorization URL for redirecting users.
type LoginRedirect struct {
	URL      string
	State    string
	Provider string
}

// LoginResult contains the outcome of a completed external login.
type LoginResult struct {
	Principal   enroll.Principal
	Token       string
	Provider    string
	Profile     *Profile
	RedirectURL string
}

// BeginLogin starts the OAuth flow for a provider.
func (a *Authenticator) BeginLogin(ctx context.Context, providerName string, redirectURL string) (*LoginRedirect, error) {
	provider, ok := a.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerName)
	}

	if redirectURL == "" {
		redirectURL = a.config.DefaultRedirectURL
	}

	codeVerifier, err := generateCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}
	codeChallenge := computeCodeChallenge(codeVerifier)

	state := &OAuthState{
		Nonce:        generateNonce(),
		Provider:     providerName,
		CodeVerifier: codeVerifier,
		RedirectURL:  redirectURL,
	}

	stateToken, err := a.stateManager.Encode(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}

	authURL := provider.AuthCodeURL(stateToken, WithPKCE(codeChallenge, "S256"))

	return &LoginRedirect{
		URL:      authURL,
		State:    stateToken,
		Provider: providerName,
	}, nil
}

// CompleteLogin finishes the OAuth flow after the provider callback. The
// profile is upserted into the student store keyed by external id; if the
// local write fails the login still succeeds with a transient identity so
// a storage hiccup never locks students out.
func (a *Authenticator) CompleteLogin(ctx context.Context, providerName, code, stateToken string) (*LoginResult, error) {
	state, err := a.stateManager.Decode(stateToken)
	if err != nil {
		return nil, err
	}

	if state.Provider != providerName {
		return nil, fmt.Errorf("%w: provider mismatch", ErrInvalidState)
	}

	provider, ok := a.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerName)
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, a.config.ExchangeTimeout)
	defer cancel()

	token, err := provider.Exchange(exchangeCtx, code, WithCodeVerifier(state.CodeVerifier))
	if err != nil {
		return nil, wrapProviderError(ErrTokenExchangeFailed, providerName, "exchange", err)
	}

	profile, err := provider.UserInfo(exchangeCtx, token)
	if err != nil {
		return nil, wrapProviderError(ErrUserInfoFailed, providerName, "user_info", err)
	}

	externalID := fmt.Sprintf("%s:%s", providerName, profile.ProviderUserID)

	principal := a.resolvePrincipal(ctx, externalID, profile)

	jwtToken, err := a.tokens.Generate(principal)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	a.recordLogin(ctx, principal, providerName, profile)

	return &LoginResult{
		Principal:   principal,
		Token:       jwtToken,
		Provider:    providerName,
		Profile:     profile,
		RedirectURL: state.RedirectURL,
	}, nil
}

// ListProviders returns all registered providers.
func (a *Authenticator) ListProviders() []ProviderInfo {
	var providers []ProviderInfo
	for name, p := range a.providers {
		providers = append(providers, ProviderInfo{
			Name:    name,
			AuthURL: p.AuthCodeURL(""),
		})
	}
	return providers
}

// ProviderInfo describes an available provider.
type ProviderInfo struct {
	Name    string
	AuthURL string
}

func (a *Authenticator) resolvePrincipal(ctx context.Context, externalID string, profile *Profile) enroll.Principal {
	if a.students == nil {
		return enroll.ExternalPrincipal(externalID, profile.Name, profile.Email)
	}

	student, err := a.students.UpsertByExternalID(ctx, &enroll.Student{
		ExternalID: externalID,
		Name:       profile.Name,
		Email:      profile.Email,
		AvatarURL:  profile.AvatarURL,
	})
	if err != nil {
		if a.logger != nil {
			a.logger.Warn("external login: failed to persist profile, continuing with transient identity: %v", err)
		}
		return enroll.ExternalPrincipal(externalID, profile.Name, profile.Email)
	}

	return enroll.StudentPrincipal(student)
}

func (a *Authenticator) recordLogin(ctx context.Context, principal enroll.Principal, providerName string, profile *Profile) {
	if a.sink == nil {
		return
	}

	err := a.sink.Record(ctx, enroll.ActivityEvent{
		EventType:  enroll.ActivityEventExternalLogin,
		Actor:      enroll.ActorRef{Type: "external", ID: providerName},
		EntityType: "student",
		EntityID:   principal.ID(),
		OccurredAt: time.Now(),
		Metadata: map[string]any{
			"provider":         providerName,
			"provider_user_id": profile.ProviderUserID,
		},
	})
	if err != nil && a.logger != nil {
		a.logger.Warn("external login: failed to record activity: %v", err)
	}
}
