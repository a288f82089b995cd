package enroll

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Applicants is the course application repository
type Applicants interface {
	repository.Repository[*Applicant]

	Create(ctx context.Context, record *Applicant, criteria ...repository.InsertCriteria) (*Applicant, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Applicant, criteria ...repository.InsertCriteria) (*Applicant, error)

	ExistsForCourse(ctx context.Context, courseID uuid.UUID, email, phone string) (bool, error)
	ExistsForCourseTx(ctx context.Context, tx bun.IDB, courseID uuid.UUID, email, phone string) (bool, error)
}

type applicants struct {
	repository.Repository[*Applicant]
	db *bun.DB
}

var (
	_ Applicants                        = (*applicants)(nil)
	_ repository.Repository[*Applicant] = (*applicants)(nil)
)

// NewApplicantsRepository builds the default bun-backed repository
func NewApplicantsRepository(db *bun.DB) Applicants {
	repo := repository.NewRepository[*Applicant](db, repository.ModelHandlers[*Applicant]{
		NewRecord: func() *Applicant { return &Applicant{} },
		GetID: func(a *Applicant) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Applicant, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
	})

	return &applicants{
		Repository: repo,
		db:         db,
	}
}

func (a *applicants) Create(ctx context.Context, record *Applicant, criteria ...repository.InsertCriteria) (*Applicant, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *applicants) CreateTx(ctx context.Context, tx bun.IDB, record *Applicant, criteria ...repository.InsertCriteria) (*Applicant, error) {
	prepareApplicantDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *applicants) ExistsForCourse(ctx context.Context, courseID uuid.UUID, email, phone string) (bool, error) {
	return a.ExistsForCourseTx(ctx, a.db, courseID, email, phone)
}

// ExistsForCourseTx is the duplicate pre-check. It cannot close the
// time-of-check/time-of-use window between two simultaneous
// registrations; the unique indexes on (course_id, email) and
// (course_id, phone) do. This lookup only spares the user a failed
// write in the common case.
func (a *applicants) ExistsForCourseTx(ctx context.Context, tx bun.IDB, courseID uuid.UUID, email, phone string) (bool, error) {
	return tx.NewSelect().
		Model((*Applicant)(nil)).
		Where("?TableAlias.course_id = ?", courseID).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				WhereOr("?TableAlias.email = ?", email).
				WhereOr("?TableAlias.phone = ?", phone)
		}).
		Exists(ctx)
}

func prepareApplicantDefaults(record *Applicant) {
	if record == nil {
		return
	}

	if record.Status == "" {
		record.Status = ApplicantStatusPending
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
