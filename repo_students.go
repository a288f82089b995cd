package enroll

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MarkStudentVerifiedSQL transitions an unverified account to pending
// and consumes the OTP in a single statement, so a code can never be
// replayed once a terminal check cleared it.
var MarkStudentVerifiedSQL = `UPDATE "students" AS "std"
SET
	"status" = 'pending',
	"verification_code" = NULL,
	"code_expiry" = NULL,
	"updated_at" = current_timestamp
WHERE
	"std"."deleted_at" IS NULL
AND "std"."status" = 'unverified'
AND "std"."id" = ?
AND "std"."verification_code" = ?;`

// Students is the student account repository
type Students interface {
	repository.Repository[*Student]

	GetStudent(ctx context.Context, id uuid.UUID) (*Student, error)
	GetStudentTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Student, error)
	GetByEmail(ctx context.Context, email string) (*Student, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Student, error)
	GetByExternalID(ctx context.Context, externalID string) (*Student, error)
	GetByExternalIDTx(ctx context.Context, tx bun.IDB, externalID string) (*Student, error)

	Register(ctx context.Context, student *Student) (*Student, error)
	RegisterTx(ctx context.Context, tx bun.IDB, student *Student) (*Student, error)
	UpsertByExternalID(ctx context.Context, student *Student) (*Student, error)
	UpsertByExternalIDTx(ctx context.Context, tx bun.IDB, student *Student) (*Student, error)

	MarkVerified(ctx context.Context, id uuid.UUID, code string) error
	MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, code string) error

	TrackAttemptedLogin(ctx context.Context, student *Student) error
	TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, student *Student) error
	TrackSuccessfulLogin(ctx context.Context, student *Student) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, student *Student) error

	UpdateStatus(ctx context.Context, id uuid.UUID, status StudentStatus, opts ...StatusUpdateOption) (*Student, error)
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status StudentStatus, opts ...StatusUpdateOption) (*Student, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) (*Student, error)
	UpdateProfileTx(ctx context.Context, tx bun.IDB, id uuid.UUID, update ProfileUpdate) (*Student, error)

	SoftDelete(ctx context.Context, id uuid.UUID) error
	SoftDeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

// StatusUpdateOption customizes the columns a status update writes
type StatusUpdateOption func(*statusUpdate)

type statusUpdate struct {
	suspendedAt    *time.Time
	setSuspendedAt bool
}

// WithSuspendedAt sets or clears the suspension timestamp alongside a
// status change. A nil value writes NULL rather than leaving the column
// untouched.
func WithSuspendedAt(t *time.Time) StatusUpdateOption {
	return func(u *statusUpdate) {
		u.suspendedAt = t
		u.setSuspendedAt = true
	}
}

// ProfileUpdate carries the non-security profile fields a student may
// change. Email, status and the password hash can never travel through
// this path.
type ProfileUpdate struct {
	Name      *string `json:"name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

type students struct {
	repository.Repository[*Student]
	db *bun.DB
}

var (
	_ Students                        = (*students)(nil)
	_ repository.Repository[*Student] = (*students)(nil)
)

// NewStudentsRepository builds the default bun-backed repository
func NewStudentsRepository(db *bun.DB) Students {
	repo := repository.NewRepository[*Student](db, repository.ModelHandlers[*Student]{
		NewRecord: func() *Student { return &Student{} },
		GetID: func(s *Student) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *Student, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &students{
		Repository: repo,
		db:         db,
	}
}

func (a *students) GetStudent(ctx context.Context, id uuid.UUID) (*Student, error) {
	return a.GetStudentTx(ctx, a.db, id)
}

func (a *students) GetStudentTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Student, error) {
	return a.getByColumn(ctx, tx, "id", id.String())
}

func (a *students) GetByEmail(ctx context.Context, email string) (*Student, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *students) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Student, error) {
	return a.getByColumn(ctx, tx, "email", email)
}

func (a *students) GetByExternalID(ctx context.Context, externalID string) (*Student, error) {
	return a.GetByExternalIDTx(ctx, a.db, externalID)
}

func (a *students) GetByExternalIDTx(ctx context.Context, tx bun.IDB, externalID string) (*Student, error) {
	return a.getByColumn(ctx, tx, "external_id", externalID)
}

func (a *students) getByColumn(ctx context.Context, tx bun.IDB, column, value string) (*Student, error) {
	record := &Student{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias."+column+" = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		// Storage not-found errors carry the driver taxonomy; callers
		// only ever see the package sentinel.
		if repository.IsRecordNotFound(err) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}

	return record, nil
}

func (a *students) Register(ctx context.Context, student *Student) (*Student, error) {
	return a.RegisterTx(ctx, a.db, student)
}

func (a *students) RegisterTx(ctx context.Context, tx bun.IDB, student *Student) (*Student, error) {
	prepareStudentDefaults(student)
	return a.Repository.CreateTx(ctx, tx, student)
}

func (a *students) UpsertByExternalID(ctx context.Context, student *Student) (*Student, error) {
	return a.UpsertByExternalIDTx(ctx, a.db, student)
}

// UpsertByExternalIDTx inserts the student or, when the external id is
// already known, refreshes the provider-owned fields and the login
// timestamp. Idempotent: repeated logins never create duplicate rows.
func (a *students) UpsertByExternalIDTx(ctx context.Context, tx bun.IDB, student *Student) (*Student, error) {
	prepareStudentDefaults(student)
	if student.Status == StudentStatusUnverified {
		// External authentication already proves email ownership.
		student.Status = StudentStatusActive
	}

	now := time.Now()
	student.LastLoginAt = &now

	_, err := tx.NewInsert().
		Model(student).
		On("CONFLICT (external_id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("email = EXCLUDED.email").
		Set("avatar_url = EXCLUDED.avatar_url").
		Set("last_login = EXCLUDED.last_login").
		Set("updated_at = current_timestamp").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return a.GetByExternalIDTx(ctx, tx, student.ExternalID)
}

func (a *students) MarkVerified(ctx context.Context, id uuid.UUID, code string) error {
	return a.MarkVerifiedTx(ctx, a.db, id, code)
}

func (a *students) MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, code string) error {
	res, err := tx.NewRaw(MarkStudentVerifiedSQL, id.String(), code).Exec(ctx)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInvalidCode
	}

	return nil
}

func (a *students) TrackSuccessfulLogin(ctx context.Context, student *Student) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, student)
}

func (a *students) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, student *Student) error {
	loggedInAt := time.Now()
	_, err := tx.NewRaw(`
		UPDATE "students" AS "std"
		SET
			"last_login" = ?,
			"login_attempt_at" = NULL,
			"login_attempts" = 0
		WHERE
			("std".id = ?)
			AND "std"."deleted_at" IS NULL;
	`, loggedInAt, student.ID).Exec(ctx)

	return err
}

func (a *students) TrackAttemptedLogin(ctx context.Context, student *Student) error {
	return a.TrackAttemptedLoginTx(ctx, a.db, student)
}

func (a *students) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, student *Student) error {
	// Same raw statement shape as TrackSuccessfulLoginTx: the generic
	// update path relies on RETURNING, which the sqlite driver does not
	// report rows for.
	attemptedAt := time.Now()
	_, err := tx.NewRaw(`
		UPDATE "students" AS "std"
		SET
			"login_attempts" = ?,
			"login_attempt_at" = ?
		WHERE
			("std".id = ?)
			AND "std"."deleted_at" IS NULL;
	`, student.LoginAttempts+1, attemptedAt, student.ID).Exec(ctx)

	return err
}

func (a *students) UpdateStatus(ctx context.Context, id uuid.UUID, status StudentStatus, opts ...StatusUpdateOption) (*Student, error) {
	return a.UpdateStatusTx(ctx, a.db, id, status, opts...)
}

func (a *students) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status StudentStatus, opts ...StatusUpdateOption) (*Student, error) {
	update := &statusUpdate{}
	for _, opt := range opts {
		if opt != nil {
			opt(update)
		}
	}

	q := tx.NewUpdate().
		Model((*Student)(nil)).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.deleted_at IS NULL").
		Set("status = ?", status).
		Set("updated_at = current_timestamp")

	if update.setSuspendedAt {
		q = q.Set("suspended_at = ?", update.suspendedAt)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, err
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return nil, ErrStudentNotFound
	}

	return a.getByColumn(ctx, tx, "id", id.String())
}

func (a *students) UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) (*Student, error) {
	return a.UpdateProfileTx(ctx, a.db, id, update)
}

func (a *students) UpdateProfileTx(ctx context.Context, tx bun.IDB, id uuid.UUID, update ProfileUpdate) (*Student, error) {
	q := tx.NewUpdate().
		Model((*Student)(nil)).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.deleted_at IS NULL").
		Set("updated_at = current_timestamp")

	touched := false
	if update.Name != nil {
		q = q.Set("name = ?", *update.Name)
		touched = true
	}
	if update.Phone != nil {
		q = q.Set("phone = ?", *update.Phone)
		touched = true
	}
	if update.Bio != nil {
		q = q.Set("bio = ?", *update.Bio)
		touched = true
	}
	if update.AvatarURL != nil {
		q = q.Set("avatar_url = ?", *update.AvatarURL)
		touched = true
	}

	if touched {
		res, err := q.Exec(ctx)
		if err != nil {
			return nil, err
		}
		if rows, err := res.RowsAffected(); err == nil && rows == 0 {
			return nil, ErrStudentNotFound
		}
	}

	return a.getByColumn(ctx, tx, "id", id.String())
}

func (a *students) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return a.SoftDeleteTx(ctx, a.db, id)
}

func (a *students) SoftDeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewDelete().
		Model((*Student)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrStudentNotFound
	}

	return nil
}

func prepareStudentDefaults(record *Student) {
	if record == nil {
		return
	}

	record.EnsureStatus()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
