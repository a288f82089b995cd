package enroll

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// phoneRegion is the region applicant phone numbers are validated
// against. The platform serves Saudi clubs.
const phoneRegion = "SA"

// maxFormResponses bounds the free-form answer map
const maxFormResponses = 50

// RegisterInput is one course registration request
type RegisterInput struct {
	CourseID      uuid.UUID         `json:"course_id"`
	FullName      string            `json:"full_name"`
	Email         string            `json:"email"`
	Phone         string            `json:"phone"`
	FormID        string            `json:"form_id,omitempty"`
	FormResponses map[string]string `json:"form_responses,omitempty"`
}

// Validate will run validation rules
func (r RegisterInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.CourseID,
			validation.By(validateUUIDPresent),
		),
		validation.Field(
			&r.FullName,
			validation.Required,
			validation.Length(2, 100),
		),
		validation.Field(
			&r.Email,
			validation.Required,
			validation.Length(6, 100),
			is.Email,
		),
		validation.Field(
			&r.Phone,
			validation.Required,
			validation.By(ValidatePhoneNumber(phoneRegion)),
		),
		validation.Field(
			&r.FormResponses,
			validation.Length(0, maxFormResponses),
		),
	)
}

func validateUUIDPresent(value any) error {
	id, ok := value.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return errors.New("is required", errors.CategoryValidation)
	}
	return nil
}

// ValidatePhoneNumber builds an ozzo rule that accepts only numbers
// valid for the given region. Parse treats the region as a default for
// bare national numbers, so the region check has to be explicit or a
// foreign number with a +cc prefix would slip through.
func ValidatePhoneNumber(region string) validation.RuleFunc {
	return func(value any) error {
		raw, _ := value.(string)
		num, err := phonenumbers.Parse(raw, region)
		if err != nil || !phonenumbers.IsValidNumberForRegion(num, region) {
			return errors.New("must be a valid phone number", errors.CategoryValidation)
		}
		return nil
	}
}

// Registrar runs the registration transaction: validate, sanitize,
// course lookup, duplicate pre-check, seat reservation, persistence.
// Steps after validation share one transaction, so a failed insert
// gives the reserved seat back.
type Registrar struct {
	repos  RepositoryManager
	sink   ActivitySink
	logger Logger
}

// RegistrarOption customizes the registrar
type RegistrarOption func(*Registrar)

// WithRegistrarActivitySink sets the audit sink
func WithRegistrarActivitySink(sink ActivitySink) RegistrarOption {
	return func(r *Registrar) {
		r.sink = normalizeActivitySink(sink)
	}
}

// WithRegistrarLogger overrides the logger
func WithRegistrarLogger(l Logger) RegistrarOption {
	return func(r *Registrar) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistrar creates a Registrar over the given repositories
func NewRegistrar(repos RepositoryManager, opts ...RegistrarOption) *Registrar {
	r := &Registrar{
		repos:  repos,
		sink:   noopActivitySink{},
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Register processes one registration request
func (r *Registrar) Register(ctx context.Context, input RegisterInput) (*Applicant, error) {
	if err := input.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid registration request").
			WithTextCode(textCodeValidationFailed).
			WithCode(errors.CodeBadRequest)
	}

	input.FullName = SanitizeText(input.FullName)
	input.FormID = SanitizeText(input.FormID)
	input.FormResponses = SanitizeResponses(input.FormResponses)

	var applicant *Applicant
	err := r.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := r.repos.Courses().GetCourseTx(ctx, tx, input.CourseID); err != nil {
			return err
		}

		exists, err := r.repos.Applicants().ExistsForCourseTx(ctx, tx, input.CourseID, input.Email, input.Phone)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "duplicate check failed")
		}
		if exists {
			return ErrAlreadyRegistered
		}

		if err := r.repos.Courses().ReserveSeatTx(ctx, tx, input.CourseID); err != nil {
			return err
		}

		applicant = &Applicant{
			CourseID:      input.CourseID,
			FullName:      input.FullName,
			Email:         input.Email,
			Phone:         input.Phone,
			FormID:        input.FormID,
			FormResponses: input.FormResponses,
			Status:        ApplicantStatusPending,
		}

		created, err := r.repos.Applicants().CreateTx(ctx, tx, applicant)
		if err != nil {
			if IsUniqueViolation(err) {
				// Lost the race against a simultaneous registration
				// with the same contact info; the constraint is the
				// authoritative guard.
				return ErrAlreadyRegistered
			}
			return errors.Wrap(err, errors.CategoryInternal, "failed to persist applicant")
		}

		applicant = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, r.sink, r.logger, ActivityEvent{
		EventType:  ActivityEventRegistrationCreated,
		EntityType: "applicant",
		EntityID:   applicant.ID.String(),
		Metadata: map[string]any{
			"course_id": input.CourseID.String(),
		},
	})

	return applicant, nil
}
