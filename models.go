package enroll

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role identifies the kind of principal a session belongs to
type Role = string

const (
	// RoleStudent is a locally or externally authenticated student
	RoleStudent Role = "student"
	// RoleAdmin is a platform administrator
	RoleAdmin Role = "admin"
)

// StudentStatus is the lifecycle status of a student account
type StudentStatus = string

const (
	// StudentStatusUnverified is a fresh local signup awaiting OTP verification
	StudentStatusUnverified StudentStatus = "unverified"
	// StudentStatusPending has verified their email and awaits admin approval
	StudentStatusPending StudentStatus = "pending"
	// StudentStatusActive may log in
	StudentStatusActive StudentStatus = "active"
	// StudentStatusSuspended is blocked by an administrator
	StudentStatusSuspended StudentStatus = "suspended"
)

// Course is a club course with a finite number of seats
type Course struct {
	bun.BaseModel  `bun:"table:courses,alias:crs"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name           string     `bun:"name,notnull" json:"name,omitempty"`
	TotalSeats     int        `bun:"total_seats,notnull" json:"total_seats"`
	AvailableSeats int        `bun:"available_seats,notnull" json:"available_seats"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// ApplicantStatus is the review status of a course application
type ApplicantStatus = string

const (
	ApplicantStatusPending  ApplicantStatus = "pending"
	ApplicantStatusApproved ApplicantStatus = "approved"
	ApplicantStatusRejected ApplicantStatus = "rejected"
)

// Applicant is one registration for one course seat. The same contact
// identity can never hold two applications for the same course: the
// (course_id, email) and (course_id, phone) pairs are unique at the
// storage layer, the in-code duplicate check is only a pre-check.
type Applicant struct {
	bun.BaseModel `bun:"table:applicants,alias:apl"`
	ID            uuid.UUID         `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	CourseID      uuid.UUID         `bun:"course_id,notnull,type:uuid,unique:applicants_course_email,unique:applicants_course_phone" json:"course_id,omitempty"`
	Course        *Course           `bun:"rel:belongs-to,join:course_id=id" json:"course,omitempty"`
	FullName      string            `bun:"full_name,notnull" json:"full_name,omitempty"`
	Email         string            `bun:"email,notnull,unique:applicants_course_email" json:"email,omitempty"`
	Phone         string            `bun:"phone,notnull,unique:applicants_course_phone" json:"phone,omitempty"`
	FormID        string            `bun:"form_id" json:"form_id,omitempty"`
	FormResponses map[string]string `bun:"form_responses,type:jsonb" json:"form_responses,omitempty"`
	Status        ApplicantStatus   `bun:"status,notnull" json:"status,omitempty"`
	CreatedAt     *time.Time        `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Student is a member account. PasswordHash is empty for accounts that
// only ever authenticated through the external provider; ExternalID is
// empty for local-only accounts.
type Student struct {
	bun.BaseModel    `bun:"table:students,alias:std"`
	ID               uuid.UUID     `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name             string        `bun:"name,notnull" json:"name,omitempty"`
	Email            string        `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone            string        `bun:"phone" json:"phone,omitempty"`
	NationalID       string        `bun:"national_id" json:"-"`
	Bio              string        `bun:"bio" json:"bio,omitempty"`
	AvatarURL        string        `bun:"avatar_url" json:"avatar_url,omitempty"`
	PasswordHash     string        `bun:"password_hash" json:"-"`
	ExternalID       string        `bun:"external_id,nullzero,unique" json:"external_id,omitempty"`
	Status           StudentStatus `bun:"status,notnull" json:"status,omitempty"`
	VerificationCode string        `bun:"verification_code,nullzero" json:"-"`
	CodeExpiry       *time.Time    `bun:"code_expiry,nullzero" json:"-"`
	LoginAttempts    int           `bun:"login_attempts" json:"-"`
	LoginAttemptAt   *time.Time    `bun:"login_attempt_at,nullzero" json:"-"`
	LastLoginAt      *time.Time    `bun:"last_login,nullzero" json:"last_login,omitempty"`
	SuspendedAt      *time.Time    `bun:"suspended_at,nullzero" json:"suspended_at,omitempty"`
	CreatedAt        *time.Time    `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt        *time.Time    `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt        *time.Time    `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureStatus defaults a blank status to unverified
func (s *Student) EnsureStatus() {
	if s.Status == "" {
		s.Status = StudentStatusUnverified
	}
}

// IsExternal reports whether the account came through the external provider
func (s *Student) IsExternal() bool {
	return s.ExternalID != ""
}

// Summary is the client-safe projection of a student
func (s *Student) Summary() map[string]any {
	return map[string]any{
		"id":     s.ID.String(),
		"name":   s.Name,
		"email":  s.Email,
		"status": s.Status,
	}
}

// ActivityLog is one append-only audit record. Rows are only ever
// inserted by this package, never updated or deleted.
type ActivityLog struct {
	bun.BaseModel `bun:"table:activity_logs,alias:act"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        *uuid.UUID     `bun:"user_id,nullzero,type:uuid" json:"user_id,omitempty"`
	ActionType    string         `bun:"action_type,notnull" json:"action_type,omitempty"`
	EntityType    string         `bun:"entity_type" json:"entity_type,omitempty"`
	EntityID      string         `bun:"entity_id" json:"entity_id,omitempty"`
	Details       map[string]any `bun:"details,type:jsonb" json:"details,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
