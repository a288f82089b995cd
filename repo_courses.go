package enroll

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ReserveSeatSQL is the whole seat ledger: a single conditional
// decrement that only applies while seats remain. The row lock taken by
// the UPDATE serializes concurrent reservations for the same course;
// reservations for different courses touch different rows and proceed
// independently. There is no read-then-write window, and running it
// inside the registration transaction means a later failure rolls the
// seat back.
var ReserveSeatSQL = `UPDATE "courses"
SET
	"available_seats" = "available_seats" - 1,
	"updated_at" = current_timestamp
WHERE
	"id" = ?
AND "available_seats" > 0;`

// Courses is the course repository
type Courses interface {
	repository.Repository[*Course]

	GetCourse(ctx context.Context, id uuid.UUID) (*Course, error)
	GetCourseTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Course, error)

	ReserveSeat(ctx context.Context, id uuid.UUID) error
	ReserveSeatTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type courses struct {
	repository.Repository[*Course]
	db *bun.DB
}

var (
	_ Courses                        = (*courses)(nil)
	_ repository.Repository[*Course] = (*courses)(nil)
)

// NewCoursesRepository builds the default bun-backed repository
func NewCoursesRepository(db *bun.DB) Courses {
	repo := repository.NewRepository[*Course](db, repository.ModelHandlers[*Course]{
		NewRecord: func() *Course { return &Course{} },
		GetID: func(c *Course) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *Course, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
	})

	return &courses{
		Repository: repo,
		db:         db,
	}
}

// GetCourse looks a course up by its UUID. The embedded repository's
// GetByID takes string ids, so the typed lookups carry their own name
// the same way Students does with GetByEmail.
func (a *courses) GetCourse(ctx context.Context, id uuid.UUID) (*Course, error) {
	return a.GetCourseTx(ctx, a.db, id)
}

func (a *courses) GetCourseTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Course, error) {
	record := &Course{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}

	return record, nil
}

func (a *courses) ReserveSeat(ctx context.Context, id uuid.UUID) error {
	return a.ReserveSeatTx(ctx, a.db, id)
}

// ReserveSeatTx atomically claims one seat. Zero affected rows means
// either the course is gone or the seats ran out; one extra lookup
// tells the two apart.
func (a *courses) ReserveSeatTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewRaw(ReserveSeatSQL, id.String()).Exec(ctx)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	exists, err := tx.NewSelect().
		Model((*Course)(nil)).
		Where("?TableAlias.id = ?", id).
		Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return ErrCourseNotFound
	}

	return ErrSeatsExhausted
}
