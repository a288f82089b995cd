package enroll_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/educlub/enroll"
)

// setupDB opens a private in-memory database with the schema applied.
// A single connection keeps SQLite writes serialized under the
// concurrency tests.
func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	require.NoError(t, enroll.CreateSchema(context.Background(), db))

	return db
}

func newUUID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}

func seedCourse(t *testing.T, db *bun.DB, name string, seats int) *enroll.Course {
	t.Helper()

	course := &enroll.Course{
		ID:             uuid.New(),
		Name:           name,
		TotalSeats:     seats,
		AvailableSeats: seats,
	}
	_, err := db.NewInsert().Model(course).Exec(context.Background())
	require.NoError(t, err)

	return course
}

func validRegistration(courseID uuid.UUID) enroll.RegisterInput {
	return enroll.RegisterInput{
		CourseID: courseID,
		FullName: "Sara Al-Ahmad",
		Email:    "sara@example.com",
		Phone:    "+966512345678",
	}
}

func validSignup() enroll.SignupInput {
	return enroll.SignupInput{
		Name:     "Sara Al-Ahmad",
		Email:    "sara@example.com",
		Phone:    "+966512345678",
		Password: "securePassword123!",
	}
}

type capturingSink struct {
	events []enroll.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt enroll.ActivityEvent) error {
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) has(eventType enroll.ActivityEventType) bool {
	for _, evt := range c.events {
		if evt.EventType == eventType {
			return true
		}
	}
	return false
}

type failingSink struct{}

func (failingSink) Record(ctx context.Context, evt enroll.ActivityEvent) error {
	return fmt.Errorf("sink unavailable")
}

type mockConfig struct {
	signingKey    string
	expiration    int
	issuer        string
	audience      []string
	cookieName    string
	secureCookies bool
}

func newMockConfig() *mockConfig {
	return &mockConfig{
		signingKey: "test-signing-key",
		expiration: 24,
		issuer:     "enroll-test",
		audience:   []string{"enroll-test"},
		cookieName: "session",
	}
}

func (m *mockConfig) GetSigningKey() string   { return m.signingKey }
func (m *mockConfig) GetTokenExpiration() int { return m.expiration }
func (m *mockConfig) GetIssuer() string       { return m.issuer }
func (m *mockConfig) GetAudience() []string   { return m.audience }
func (m *mockConfig) GetCookieName() string   { return m.cookieName }
func (m *mockConfig) GetSecureCookies() bool  { return m.secureCookies }
