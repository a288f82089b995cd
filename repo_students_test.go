package enroll_test

import (
	"context"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/educlub/enroll"
)

func TestUpsertByExternalIDIsIdempotent(t *testing.T) {
	db := setupDB(t)
	repo := enroll.NewStudentsRepository(db)

	first, err := repo.UpsertByExternalID(context.Background(), &enroll.Student{
		Name:       "Nora",
		Email:      "nora@example.com",
		ExternalID: "google:1234567890",
	})
	require.NoError(t, err)

	assert.Equal(t, enroll.StudentStatusActive, first.Status, "provider-proven accounts skip verification")
	assert.NotNil(t, first.LastLoginAt)

	second, err := repo.UpsertByExternalID(context.Background(), &enroll.Student{
		Name:       "Nora Renamed",
		Email:      "nora.renamed@example.com",
		AvatarURL:  "https://example.com/avatar.png",
		ExternalID: "google:1234567890",
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "repeat logins reuse the row")
	assert.Equal(t, "Nora Renamed", second.Name)
	assert.Equal(t, "nora.renamed@example.com", second.Email)
	assert.Equal(t, "https://example.com/avatar.png", second.AvatarURL)

	count, err := db.NewSelect().Model((*enroll.Student)(nil)).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMarkVerifiedGuards(t *testing.T) {
	db := setupDB(t)
	repo := enroll.NewStudentsRepository(db)

	student, err := repo.Register(context.Background(), &enroll.Student{
		Name:             "Sara",
		Email:            "sara@example.com",
		VerificationCode: "123456",
	})
	require.NoError(t, err)
	require.Equal(t, enroll.StudentStatusUnverified, student.Status)

	t.Run("wrong code matches zero rows", func(t *testing.T) {
		err := repo.MarkVerified(context.Background(), student.ID, "654321")
		assert.ErrorIs(t, err, enroll.ErrInvalidCode)
	})

	t.Run("correct code consumes itself", func(t *testing.T) {
		require.NoError(t, repo.MarkVerified(context.Background(), student.ID, "123456"))

		stored, err := repo.GetByEmail(context.Background(), "sara@example.com")
		require.NoError(t, err)
		assert.Equal(t, enroll.StudentStatusPending, stored.Status)
		assert.Empty(t, stored.VerificationCode)
		assert.Nil(t, stored.CodeExpiry)
	})

	t.Run("replay matches zero rows", func(t *testing.T) {
		err := repo.MarkVerified(context.Background(), student.ID, "123456")
		assert.ErrorIs(t, err, enroll.ErrInvalidCode)
	})
}

func TestTrackAttemptedLogin(t *testing.T) {
	db := setupDB(t)
	repo := enroll.NewStudentsRepository(db)

	student, err := repo.Register(context.Background(), &enroll.Student{
		Name:  "Sara",
		Email: "sara@example.com",
	})
	require.NoError(t, err)

	require.NoError(t, repo.TrackAttemptedLogin(context.Background(), student))

	stored, err := repo.GetByEmail(context.Background(), "sara@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.LoginAttempts)
	assert.NotNil(t, stored.LoginAttemptAt)

	require.NoError(t, repo.TrackSuccessfulLogin(context.Background(), stored))

	stored, err = repo.GetByEmail(context.Background(), "sara@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.LoginAttempts)
	assert.Nil(t, stored.LoginAttemptAt)
	assert.NotNil(t, stored.LastLoginAt)
}

func TestSoftDeleteHidesStudent(t *testing.T) {
	db := setupDB(t)
	repo := enroll.NewStudentsRepository(db)

	student, err := repo.Register(context.Background(), &enroll.Student{
		Name:  "Sara",
		Email: "sara@example.com",
	})
	require.NoError(t, err)

	require.NoError(t, repo.SoftDelete(context.Background(), student.ID))

	_, err = repo.GetByEmail(context.Background(), "sara@example.com")
	assert.Error(t, err)

	// the row itself survives for the audit trail
	count, err := db.NewSelect().
		Model((*enroll.Student)(nil)).
		WhereAllWithDeleted().
		Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	t.Run("double delete reports not found", func(t *testing.T) {
		err := repo.SoftDelete(context.Background(), student.ID)
		assert.ErrorIs(t, err, enroll.ErrStudentNotFound)
	})
}

func TestUnknownStudentLookupsReturnNotFound(t *testing.T) {
	db := setupDB(t)
	repo := enroll.NewStudentsRepository(db)

	_, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, enroll.ErrStudentNotFound)
	assert.True(t, goerrors.IsNotFound(err), "services branch on the package not-found category")

	_, err = repo.GetStudent(context.Background(), uuid.New())
	assert.ErrorIs(t, err, enroll.ErrStudentNotFound)

	_, err = repo.UpdateStatus(context.Background(), uuid.New(), enroll.StudentStatusActive)
	assert.ErrorIs(t, err, enroll.ErrStudentNotFound)
}

func TestUpdateStatusManagesSuspension(t *testing.T) {
	db := setupDB(t)
	repo := enroll.NewStudentsRepository(db)

	student, err := repo.Register(context.Background(), &enroll.Student{
		Name:   "Sara",
		Email:  "sara@example.com",
		Status: enroll.StudentStatusActive,
	})
	require.NoError(t, err)

	now := time.Now()
	suspended, err := repo.UpdateStatus(context.Background(), student.ID, enroll.StudentStatusSuspended, enroll.WithSuspendedAt(&now))
	require.NoError(t, err)
	assert.Equal(t, enroll.StudentStatusSuspended, suspended.Status)
	assert.NotNil(t, suspended.SuspendedAt)

	reinstated, err := repo.UpdateStatus(context.Background(), student.ID, enroll.StudentStatusActive, enroll.WithSuspendedAt(nil))
	require.NoError(t, err)
	assert.Equal(t, enroll.StudentStatusActive, reinstated.Status)
	assert.Nil(t, reinstated.SuspendedAt)
}
