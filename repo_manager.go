package enroll

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories and the transaction scope
// they share. A single explicitly constructed manager is passed to
// every service; nothing in this package reaches for a global handle.
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Students() Students
	Courses() Courses
	Applicants() Applicants
	ActivityLogs() repository.Repository[*ActivityLog]
}

// NewActivityLogsRepository builds the append-only audit repository
func NewActivityLogsRepository(db *bun.DB) repository.Repository[*ActivityLog] {
	handlers := repository.ModelHandlers[*ActivityLog]{
		NewRecord: func() *ActivityLog {
			return &ActivityLog{}
		},
		GetID: func(record *ActivityLog) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *ActivityLog, id uuid.UUID) {
			record.ID = id
		},
	}
	return repository.NewRepository(db, handlers)
}

type mngr struct {
	db           *bun.DB
	students     Students
	courses      Courses
	applicants   Applicants
	activityLogs repository.Repository[*ActivityLog]
}

// NewRepositoryManager wires every repository over one database handle
func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:           db,
		students:     NewStudentsRepository(db),
		courses:      NewCoursesRepository(db),
		applicants:   NewApplicantsRepository(db),
		activityLogs: NewActivityLogsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.students == nil {
		return errors.New("repository students should be initialized")
	}

	if m.courses == nil {
		return errors.New("repository courses should be initialized")
	}

	if m.applicants == nil {
		return errors.New("repository applicants should be initialized")
	}

	if m.activityLogs == nil {
		return errors.New("repository activityLogs should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Students() Students {
	return m.students
}

func (m mngr) Courses() Courses {
	return m.courses
}

func (m mngr) Applicants() Applicants {
	return m.applicants
}

func (m mngr) ActivityLogs() repository.Repository[*ActivityLog] {
	return m.activityLogs
}
