package social_test

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/educlub/enroll"
	"github.com/educlub/enroll/social"
)

// fakeProvider returns canned responses and records what it was asked
type fakeProvider struct {
	name        string
	exchangeErr error
	userInfoErr error
	profile     *social.Profile
	gotCode     string
	gotVerifier string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) AuthCodeURL(state string, opts ...social.AuthCodeOption) string {
	cfg := social.ApplyAuthCodeOptions(nil, opts...)
	q := url.Values{}
	q.Set("state", state)
	if cfg.CodeChallenge != "" {
		q.Set("code_challenge", cfg.CodeChallenge)
		q.Set("code_challenge_method", cfg.CodeChallengeMethod)
	}
	return "https://provider.test/auth?" + q.Encode()
}

func (f *fakeProvider) Exchange(ctx context.Context, code string, opts ...social.ExchangeOption) (*social.Token, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	cfg := social.ApplyExchangeOptions(opts...)
	f.gotCode = code
	f.gotVerifier = cfg.CodeVerifier
	return &social.Token{
		AccessToken: "access-token",
		TokenType:   "Bearer",
		ExpiresAt:   time.Now().Add(time.Hour),
	}, nil
}

func (f *fakeProvider) UserInfo(ctx context.Context, token *social.Token) (*social.Profile, error) {
	if f.userInfoErr != nil {
		return nil, f.userInfoErr
	}
	return f.profile, nil
}

// stubStudents only answers the upsert; anything else panics
type stubStudents struct {
	enroll.Students
	err      error
	upserted *enroll.Student
}

func (s *stubStudents) UpsertByExternalID(ctx context.Context, student *enroll.Student) (*enroll.Student, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := *student
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	out.Status = enroll.StudentStatusActive
	s.upserted = &out
	return &out, nil
}

type recordingSink struct {
	events []enroll.ActivityEvent
}

func (r *recordingSink) Record(ctx context.Context, evt enroll.ActivityEvent) error {
	r.events = append(r.events, evt)
	return nil
}

func newTestProfile() *social.Profile {
	return &social.Profile{
		ProviderUserID: "1234567890",
		Provider:       "google",
		Email:          "nora@example.com",
		EmailVerified:  true,
		Name:           "Nora",
		AvatarURL:      "https://example.com/avatar.png",
	}
}

func newAuthenticator(t *testing.T, provider social.Provider, students enroll.Students, opts ...social.AuthOption) (*social.Authenticator, enroll.TokenService) {
	t.Helper()

	tokens := enroll.NewTokenService([]byte("test-signing-key"), 24, "enroll-test", []string{"enroll-test"}, enroll.DefaultLogger())

	opts = append([]social.AuthOption{social.WithProvider(provider)}, opts...)
	auth := social.NewAuthenticator(students, tokens, social.AuthConfig{
		StateHMACKey: []byte("state-test-key"),
	}, opts...)

	return auth, tokens
}

func TestBeginLogin(t *testing.T) {
	provider := &fakeProvider{name: "google", profile: newTestProfile()}
	auth, _ := newAuthenticator(t, provider, &stubStudents{})

	redirect, err := auth.BeginLogin(context.Background(), "google", "/dashboard")
	require.NoError(t, err)

	assert.Equal(t, "google", redirect.Provider)
	assert.NotEmpty(t, redirect.State)

	parsed, err := url.Parse(redirect.URL)
	require.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, redirect.State, q.Get("state"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
}

func TestBeginLoginUnknownProvider(t *testing.T) {
	auth, _ := newAuthenticator(t, &fakeProvider{name: "google"}, &stubStudents{})

	_, err := auth.BeginLogin(context.Background(), "facebook", "")
	assert.ErrorIs(t, err, social.ErrProviderNotFound)
}

func TestCompleteLogin(t *testing.T) {
	provider := &fakeProvider{name: "google", profile: newTestProfile()}
	students := &stubStudents{}
	sink := &recordingSink{}
	auth, tokens := newAuthenticator(t, provider, students, social.WithActivitySink(sink))

	redirect, err := auth.BeginLogin(context.Background(), "google", "/dashboard")
	require.NoError(t, err)

	result, err := auth.CompleteLogin(context.Background(), "google", "auth-code", redirect.State)
	require.NoError(t, err)

	assert.Equal(t, "auth-code", provider.gotCode)
	assert.NotEmpty(t, provider.gotVerifier, "the PKCE verifier travels through the state")

	require.NotNil(t, students.upserted)
	assert.Equal(t, "google:1234567890", students.upserted.ExternalID)
	assert.Equal(t, "nora@example.com", students.upserted.Email)

	assert.Equal(t, enroll.RoleStudent, result.Principal.Role())
	assert.Equal(t, "/dashboard", result.RedirectURL)

	claims, err := tokens.Validate(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.Principal.ID(), claims.UserID())

	require.Len(t, sink.events, 1)
	evt := sink.events[0]
	assert.Equal(t, enroll.ActivityEventExternalLogin, evt.EventType)
	assert.Equal(t, "external", evt.Actor.Type)
	assert.Equal(t, "google", evt.Metadata["provider"])
}

func TestCompleteLoginProviderMismatch(t *testing.T) {
	google := &fakeProvider{name: "google", profile: newTestProfile()}
	github := &fakeProvider{name: "github", profile: newTestProfile()}
	auth, _ := newAuthenticator(t, google, &stubStudents{}, social.WithProvider(github))

	redirect, err := auth.BeginLogin(context.Background(), "google", "")
	require.NoError(t, err)

	// a state minted for one provider cannot complete another's callback
	_, err = auth.CompleteLogin(context.Background(), "github", "auth-code", redirect.State)
	assert.ErrorIs(t, err, social.ErrInvalidState)
}

func TestCompleteLoginRejectsForgedState(t *testing.T) {
	auth, _ := newAuthenticator(t, &fakeProvider{name: "google"}, &stubStudents{})

	_, err := auth.CompleteLogin(context.Background(), "google", "auth-code", "forged-state")
	assert.ErrorIs(t, err, social.ErrInvalidState)
}

func TestCompleteLoginExchangeFailure(t *testing.T) {
	provider := &fakeProvider{
		name:        "google",
		exchangeErr: fmt.Errorf("provider unavailable"),
	}
	auth, _ := newAuthenticator(t, provider, &stubStudents{})

	redirect, err := auth.BeginLogin(context.Background(), "google", "")
	require.NoError(t, err)

	_, err = auth.CompleteLogin(context.Background(), "google", "auth-code", redirect.State)
	require.Error(t, err)

	var rich *goerrors.Error
	require.True(t, goerrors.As(err, &rich))
	assert.Equal(t, social.TextCodeTokenExchangeFail, rich.TextCode)
	assert.Equal(t, "google", rich.Metadata["provider"])
}

func TestCompleteLoginSurvivesUpsertFailure(t *testing.T) {
	provider := &fakeProvider{name: "google", profile: newTestProfile()}
	students := &stubStudents{err: fmt.Errorf("storage offline")}
	auth, tokens := newAuthenticator(t, provider, students)

	redirect, err := auth.BeginLogin(context.Background(), "google", "")
	require.NoError(t, err)

	result, err := auth.CompleteLogin(context.Background(), "google", "auth-code", redirect.State)
	require.NoError(t, err, "a storage hiccup must not block the login")

	// the transient identity carries the provider profile
	assert.Equal(t, "google:1234567890", result.Principal.ID())
	assert.Equal(t, enroll.RoleStudent, result.Principal.Role())

	_, err = tokens.Validate(result.Token)
	assert.NoError(t, err)
}
