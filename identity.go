package enroll

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// MaxLoginAttempts is the number of failed attempts a student gets
// before the cooldown window applies
var MaxLoginAttempts = 5

// LoginCoolDown is the window during which excess attempts are rejected
var LoginCoolDown = 24 * time.Hour

// SignupInput is a local account registration request
type SignupInput struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Password   string `json:"password"`
	NationalID string `json:"national_id,omitempty"`
}

// Validate will run validation rules. The upper password bound is the
// 72-byte bcrypt input limit.
func (r SignupInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Name,
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
			&r.Password,
			validation.Required,
			validation.Length(8, 72),
		),
		validation.Field(
			&r.NationalID,
			validation.Length(0, 20),
			is.Digit,
		),
	)
}

// IdentityService owns the student account lifecycle: signup, OTP
// verification, login, profile mutation and the admin-only status
// transitions.
type IdentityService struct {
	repos   RepositoryManager
	hasher  *PasswordHasher
	tokens  TokenService
	machine StudentStateMachine
	sink    ActivitySink
	logger  Logger
	now     func() time.Time
	otpTTL  time.Duration
}

// IdentityOption customizes the identity service
type IdentityOption func(*IdentityService)

// WithIdentityActivitySink sets the audit sink
func WithIdentityActivitySink(sink ActivitySink) IdentityOption {
	return func(s *IdentityService) {
		s.sink = normalizeActivitySink(sink)
	}
}

// WithIdentityLogger overrides the logger
func WithIdentityLogger(l Logger) IdentityOption {
	return func(s *IdentityService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIdentityClock injects a custom clock (useful for tests)
func WithIdentityClock(now func() time.Time) IdentityOption {
	return func(s *IdentityService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithOTPTTL overrides how long verification codes stay valid
func WithOTPTTL(ttl time.Duration) IdentityOption {
	return func(s *IdentityService) {
		if ttl > 0 {
			s.otpTTL = ttl
		}
	}
}

// WithIdentityStateMachine overrides the lifecycle machine
func WithIdentityStateMachine(machine StudentStateMachine) IdentityOption {
	return func(s *IdentityService) {
		if machine != nil {
			s.machine = machine
		}
	}
}

// NewIdentityService wires the identity service
func NewIdentityService(repos RepositoryManager, hasher *PasswordHasher, tokens TokenService, opts ...IdentityOption) *IdentityService {
	s := &IdentityService{
		repos:  repos,
		hasher: hasher,
		tokens: tokens,
		sink:   noopActivitySink{},
		logger: defLogger{},
		now:    time.Now,
		otpTTL: DefaultOTPTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.machine == nil {
		s.machine = NewStudentStateMachine(repos.Students(), WithStateMachineActivitySink(s.sink))
	}
	return s
}

// Signup creates an unverified local account with a single-use OTP. The
// code itself is returned to the caller for out-of-band delivery (the
// mailer is an external collaborator); it is never logged.
func (s *IdentityService) Signup(ctx context.Context, input SignupInput) (*Student, string, error) {
	if err := input.Validate(); err != nil {
		return nil, "", errors.Wrap(err, errors.CategoryValidation, "invalid signup request").
			WithTextCode(textCodeValidationFailed).
			WithCode(errors.CodeBadRequest)
	}

	if _, err := s.repos.Students().GetByEmail(ctx, input.Email); err == nil {
		return nil, "", ErrEmailTaken
	} else if !errors.IsNotFound(err) {
		return nil, "", errors.Wrap(err, errors.CategoryInternal, "signup lookup failed")
	}

	hash, err := s.hasher.Hash(ctx, input.Password)
	if err != nil {
		return nil, "", err
	}

	code, err := GenerateOTP()
	if err != nil {
		return nil, "", errors.Wrap(err, errors.CategoryInternal, "failed to generate verification code")
	}

	expiry := s.now().Add(s.otpTTL)
	student := &Student{
		Name:             SanitizeText(input.Name),
		Email:            input.Email,
		Phone:            input.Phone,
		NationalID:       input.NationalID,
		PasswordHash:     hash,
		Status:           StudentStatusUnverified,
		VerificationCode: code,
		CodeExpiry:       &expiry,
	}

	created, err := s.repos.Students().Register(ctx, student)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, "", ErrEmailTaken
		}
		return nil, "", errors.Wrap(err, errors.CategoryInternal, "failed to persist student")
	}

	recordActivity(ctx, s.sink, s.logger, ActivityEvent{
		EventType:  ActivityEventStudentRegistered,
		EntityType: "student",
		EntityID:   created.ID.String(),
	})

	return created, code, nil
}

// Verify checks the OTP for the account and, on match, consumes the
// code and moves the account to pending in one statement.
func (s *IdentityService) Verify(ctx context.Context, email, code string) error {
	student, err := s.repos.Students().GetByEmail(ctx, email)
	if err != nil {
		if errors.IsNotFound(err) {
			return ErrStudentNotFound
		}
		return errors.Wrap(err, errors.CategoryInternal, "verification lookup failed")
	}

	if student.Status != StudentStatusUnverified || student.VerificationCode == "" {
		return ErrInvalidCode
	}

	if code == "" || code != student.VerificationCode {
		return ErrInvalidCode
	}

	if student.CodeExpiry == nil || !s.now().Before(*student.CodeExpiry) {
		return ErrCodeExpired
	}

	// Guarded by id + code + status, so a concurrent duplicate verify
	// finds zero rows and fails.
	if err := s.repos.Students().MarkVerified(ctx, student.ID, code); err != nil {
		return err
	}

	recordActivity(ctx, s.sink, s.logger, ActivityEvent{
		EventType:  ActivityEventStudentVerified,
		EntityType: "student",
		EntityID:   student.ID.String(),
		FromStatus: StudentStatusUnverified,
		ToStatus:   StudentStatusPending,
	})

	return nil
}

// Login verifies credentials and issues a session token. Unknown email
// and wrong password produce the identical error, so responses never
// confirm whether an address is registered.
func (s *IdentityService) Login(ctx context.Context, email, password string) (string, *Student, error) {
	student, err := s.repos.Students().GetByEmail(ctx, email)
	if err != nil {
		if errors.IsNotFound(err) {
			s.emitLoginFailure(ctx, "", email)
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, errors.Wrap(err, errors.CategoryInternal, "login lookup failed")
	}

	if student.LoginAttemptAt != nil && s.now().Sub(*student.LoginAttemptAt) > LoginCoolDown {
		student.LoginAttempts = 0
	}

	if student.LoginAttempts > MaxLoginAttempts {
		return "", nil, ErrTooManyLoginAttempts
	}

	// External-only accounts have no password to check.
	if student.PasswordHash == "" {
		s.emitLoginFailure(ctx, student.ID.String(), email)
		return "", nil, ErrInvalidCredentials
	}

	if err := s.hasher.Compare(ctx, password, student.PasswordHash); err != nil {
		if trackErr := s.repos.Students().TrackAttemptedLogin(ctx, student); trackErr != nil {
			return "", nil, errors.Wrap(trackErr, errors.CategoryInternal, "failed to track login attempt")
		}
		s.emitLoginFailure(ctx, student.ID.String(), email)
		return "", nil, ErrInvalidCredentials
	}

	if student.Status != StudentStatusActive {
		s.emitLoginFailure(ctx, student.ID.String(), email)
		return "", nil, ErrAccountNotActive
	}

	if err := s.repos.Students().TrackSuccessfulLogin(ctx, student); err != nil {
		s.logger.Error("failed to track successful login: %v", err)
	}
	now := s.now()
	student.LastLoginAt = &now

	token, err := s.tokens.Generate(StudentPrincipal(student))
	if err != nil {
		return "", nil, err
	}

	recordActivity(ctx, s.sink, s.logger, ActivityEvent{
		EventType:  ActivityEventLoginSuccess,
		Actor:      ActorRef{ID: student.ID.String(), Type: "student"},
		EntityType: "student",
		EntityID:   student.ID.String(),
	})

	return token, student, nil
}

// UpdateProfile applies a partial update of non-security fields
func (s *IdentityService) UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) (*Student, error) {
	if update.Phone != nil {
		if err := ValidatePhoneNumber(phoneRegion)(*update.Phone); err != nil {
			return nil, errors.Wrap(err, errors.CategoryValidation, "invalid profile update").
				WithTextCode(textCodeValidationFailed).
				WithCode(errors.CodeBadRequest)
		}
	}
	if update.Name != nil {
		name := SanitizeText(*update.Name)
		if len(name) < 2 {
			return nil, errors.New("name is too short", errors.CategoryValidation).
				WithTextCode(textCodeValidationFailed).
				WithCode(errors.CodeBadRequest)
		}
		update.Name = &name
	}
	if update.Bio != nil {
		bio := SanitizeText(*update.Bio)
		update.Bio = &bio
	}

	student, err := s.repos.Students().UpdateProfile(ctx, id, update)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrStudentNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "profile update failed")
	}

	return student, nil
}

// Approve moves a pending account to active (admin action)
func (s *IdentityService) Approve(ctx context.Context, actor ActorRef, id uuid.UUID) (*Student, error) {
	return s.transition(ctx, actor, id, StudentStatusActive)
}

// Suspend blocks an active account (admin action)
func (s *IdentityService) Suspend(ctx context.Context, actor ActorRef, id uuid.UUID, opts ...TransitionOption) (*Student, error) {
	return s.transition(ctx, actor, id, StudentStatusSuspended, opts...)
}

// Reinstate lifts a suspension (admin action)
func (s *IdentityService) Reinstate(ctx context.Context, actor ActorRef, id uuid.UUID) (*Student, error) {
	return s.transition(ctx, actor, id, StudentStatusActive)
}

// Delete soft-deletes an account from any status (admin action)
func (s *IdentityService) Delete(ctx context.Context, actor ActorRef, id uuid.UUID) error {
	if err := s.repos.Students().SoftDelete(ctx, id); err != nil {
		if errors.IsNotFound(err) {
			return ErrStudentNotFound
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete student")
	}

	recordActivity(ctx, s.sink, s.logger, ActivityEvent{
		EventType:  ActivityEventStudentDeleted,
		Actor:      actor,
		EntityType: "student",
		EntityID:   id.String(),
	})

	return nil
}

func (s *IdentityService) transition(ctx context.Context, actor ActorRef, id uuid.UUID, target StudentStatus, opts ...TransitionOption) (*Student, error) {
	student, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.machine.Transition(ctx, actor, student, target, opts...)
}

func (s *IdentityService) getByID(ctx context.Context, id uuid.UUID) (*Student, error) {
	student, err := s.repos.Students().GetStudent(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrStudentNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "student lookup failed")
	}
	return student, nil
}

func (s *IdentityService) emitLoginFailure(ctx context.Context, studentID, email string) {
	recordActivity(ctx, s.sink, s.logger, ActivityEvent{
		EventType:  ActivityEventLoginFailure,
		EntityType: "student",
		EntityID:   studentID,
		Metadata: map[string]any{
			"identifier": email,
		},
	})
}
