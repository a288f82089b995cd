package enroll

import (
	"context"

	"github.com/uptrace/bun"
)

// CreateSchema creates the tables and the uniqueness constraints the
// duplicate guard relies on. Used by the server bootstrap and tests;
// production deployments may manage the same schema with migrations.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*Course)(nil),
		(*Applicant)(nil),
		(*Student)(nil),
		(*ActivityLog)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	// The unique pairs are declared on the model tags; standalone
	// indexes cover drivers that ignore composite unique tags.
	indexes := []struct {
		name    string
		model   any
		columns []string
	}{
		{"idx_applicants_course_email", (*Applicant)(nil), []string{"course_id", "email"}},
		{"idx_applicants_course_phone", (*Applicant)(nil), []string{"course_id", "phone"}},
	}

	for _, idx := range indexes {
		if _, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Unique().
			IfNotExists().
			Column(idx.columns...).
			Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}
