package social_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/educlub/enroll/social"
)

type httpTestConfig struct{}

func (httpTestConfig) GetSigningKey() string   { return "test-signing-key" }
func (httpTestConfig) GetTokenExpiration() int { return 24 }
func (httpTestConfig) GetIssuer() string       { return "enroll-test" }
func (httpTestConfig) GetAudience() []string   { return []string{"enroll-test"} }
func (httpTestConfig) GetCookieName() string   { return "session" }
func (httpTestConfig) GetSecureCookies() bool  { return false }

func newLoginApp(t *testing.T, provider social.Provider) (*fiber.App, *social.Authenticator) {
	t.Helper()

	auth, _ := newAuthenticator(t, provider, &stubStudents{})

	app := fiber.New()
	social.NewHTTPController(auth, social.HTTPConfig{
		SessionConfig:   httpTestConfig{},
		SuccessRedirect: "/dashboard",
	}).RegisterRoutes(app)

	return app, auth
}

func getRedirect(t *testing.T, app *fiber.App, target string) *http.Response {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	return resp
}

func TestLoginRedirectsToProvider(t *testing.T) {
	provider := &fakeProvider{name: "google", profile: newTestProfile()}
	app, _ := newLoginApp(t, provider)

	resp := getRedirect(t, app, "/user/login")

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "provider.test", location.Host)
	assert.NotEmpty(t, location.Query().Get("state"))
}

func TestLoginUnknownProviderRedirectsWithError(t *testing.T) {
	app, _ := newLoginApp(t, &fakeProvider{name: "google"})

	resp := getRedirect(t, app, "/user/login?provider=facebook")

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/user/login/failed", location.Path)
	assert.Equal(t, "unknown_provider", location.Query().Get("error"))
}

func TestCallbackSetsSessionCookie(t *testing.T) {
	provider := &fakeProvider{name: "google", profile: newTestProfile()}
	app, auth := newLoginApp(t, provider)

	redirect, err := auth.BeginLogin(context.Background(), "google", "/after-login")
	require.NoError(t, err)

	target := "/user/login/callback?code=auth-code&state=" + url.QueryEscape(redirect.State)
	resp := getRedirect(t, app, target)

	assert.Equal(t, "/after-login", resp.Header.Get("Location"))

	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			session = c
		}
	}
	require.NotNil(t, session, "callback must deliver the session cookie")
	assert.NotEmpty(t, session.Value)
	assert.True(t, session.HttpOnly)
}

func TestCallbackProviderErrorPassesThrough(t *testing.T) {
	app, _ := newLoginApp(t, &fakeProvider{name: "google"})

	resp := getRedirect(t, app, "/user/login/callback?error=access_denied")

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "access_denied", location.Query().Get("error"))
}

func TestCallbackMissingParams(t *testing.T) {
	app, _ := newLoginApp(t, &fakeProvider{name: "google"})

	resp := getRedirect(t, app, "/user/login/callback")

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "missing_params", location.Query().Get("error"))
}

func TestCallbackForgedState(t *testing.T) {
	app, _ := newLoginApp(t, &fakeProvider{name: "google"})

	resp := getRedirect(t, app, "/user/login/callback?code=auth-code&state=forged")

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "invalid_state", location.Query().Get("error"))
}
