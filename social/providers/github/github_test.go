package github_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/educlub/enroll/social"
	"github.com/educlub/enroll/social/providers/github"
)

func newProvider(tokenURL, userURL, emailsURL string) *github.Provider {
	return github.New(github.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		CallbackURL:  "https://app.test/callback",
		TokenURL:     tokenURL,
		UserURL:      userURL,
		EmailsURL:    emailsURL,
	})
}

func TestAuthCodeURL(t *testing.T) {
	p := newProvider("", "", "")

	raw := p.AuthCodeURL("state-token", social.WithPKCE("challenge-value", "S256"))

	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	q := parsed.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "https://app.test/callback", q.Get("redirect_uri"))
	assert.Equal(t, "state-token", q.Get("state"))
	assert.Equal(t, "user:email read:user", q.Get("scope"))
	assert.Equal(t, "challenge-value", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
}

func TestExchange(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-value",
			"token_type":   "bearer",
			"scope":        "user:email,read:user",
		})
	}))
	defer srv.Close()

	p := newProvider(srv.URL, "", "")

	token, err := p.Exchange(context.Background(), "auth-code", social.WithCodeVerifier("verifier-value"))
	require.NoError(t, err)

	assert.Equal(t, "auth-code", gotForm.Get("code"))
	assert.Equal(t, "verifier-value", gotForm.Get("code_verifier"))
	assert.Equal(t, "client-secret", gotForm.Get("client_secret"))

	assert.Equal(t, "access-value", token.AccessToken)
	assert.Equal(t, "bearer", token.TokenType)
	assert.Equal(t, []string{"user:email", "read:user"}, token.Scopes)
}

func TestExchangeErrorWith200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "bad_verification_code",
			"error_description": "The code passed is incorrect or expired.",
		})
	}))
	defer srv.Close()

	p := newProvider(srv.URL, "", "")

	_, err := p.Exchange(context.Background(), "stale-code")
	require.Error(t, err)

	var perr *social.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "github", perr.Provider)
	assert.Equal(t, "exchange", perr.Operation)
	assert.Equal(t, "bad_verification_code", perr.Code)
	assert.Equal(t, "The code passed is incorrect or expired.", perr.Description)
}

func TestExchangeMissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"token_type": "bearer"})
	}))
	defer srv.Close()

	p := newProvider(srv.URL, "", "")

	_, err := p.Exchange(context.Background(), "auth-code")
	require.Error(t, err)

	var perr *social.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "missing_access_token", perr.Code)
}

func TestUserInfoUsesPrimaryEmail(t *testing.T) {
	userSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-value", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":         987654,
			"login":      "norabuilds",
			"name":       "Nora Example",
			"email":      "",
			"avatar_url": "https://example.com/avatar.png",
			"html_url":   "https://github.com/norabuilds",
		})
	}))
	defer userSrv.Close()

	emailsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{"email": "secondary@example.com", "primary": false, "verified": true},
			{"email": "nora@example.com", "primary": true, "verified": true},
		})
	}))
	defer emailsSrv.Close()

	p := newProvider("", userSrv.URL, emailsSrv.URL)

	profile, err := p.UserInfo(context.Background(), &social.Token{AccessToken: "access-value"})
	require.NoError(t, err)

	assert.Equal(t, "987654", profile.ProviderUserID)
	assert.Equal(t, "github", profile.Provider)
	assert.Equal(t, "nora@example.com", profile.Email)
	assert.True(t, profile.EmailVerified)
	assert.Equal(t, "Nora Example", profile.Name)
	assert.Equal(t, "https://example.com/avatar.png", profile.AvatarURL)
	assert.Equal(t, "norabuilds", profile.Raw["login"])
}

func TestUserInfoFallsBackToPublicEmail(t *testing.T) {
	userSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":    987654,
			"login": "norabuilds",
			"email": "public@example.com",
		})
	}))
	defer userSrv.Close()

	emailsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "Not Found"})
	}))
	defer emailsSrv.Close()

	p := newProvider("", userSrv.URL, emailsSrv.URL)

	profile, err := p.UserInfo(context.Background(), &social.Token{AccessToken: "access-value"})
	require.NoError(t, err)

	assert.Equal(t, "public@example.com", profile.Email)
	assert.False(t, profile.EmailVerified)
	// No display name set, login stands in.
	assert.Equal(t, "norabuilds", profile.Name)
}

func TestUserInfoAPIError(t *testing.T) {
	userSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "Bad credentials"})
	}))
	defer userSrv.Close()

	p := newProvider("", userSrv.URL, "")

	_, err := p.UserInfo(context.Background(), &social.Token{AccessToken: "expired"})
	require.Error(t, err)

	var perr *social.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "user_info", perr.Operation)
	assert.Equal(t, http.StatusUnauthorized, perr.Status)
	assert.Equal(t, "Bad credentials", perr.Description)
}
