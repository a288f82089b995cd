package enroll

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	textCodeValidationFailed   = "VALIDATION_FAILED"
	textCodeCourseNotFound     = "COURSE_NOT_FOUND"
	textCodeSeatsExhausted     = "SEATS_EXHAUSTED"
	textCodeAlreadyRegistered  = "ALREADY_REGISTERED"
	textCodeEmailTaken         = "EMAIL_TAKEN"
	textCodeStudentNotFound    = "STUDENT_NOT_FOUND"
	textCodeInvalidCode        = "INVALID_CODE"
	textCodeCodeExpired        = "CODE_EXPIRED"
	textCodeInvalidCredentials = "INVALID_CREDENTIALS"
	textCodeAccountNotActive   = "ACCOUNT_NOT_ACTIVE"
	textCodeTooManyAttempts    = "TOO_MANY_LOGIN_ATTEMPTS"
	textCodeInvalidSession     = "INVALID_SESSION"
	textCodeForbidden          = "FORBIDDEN"
)

// ErrCourseNotFound is returned when a registration references an unknown course
var ErrCourseNotFound = errors.New("course not found", errors.CategoryNotFound).
	WithTextCode(textCodeCourseNotFound).
	WithCode(errors.CodeNotFound)

// ErrSeatsExhausted is returned when a course has no remaining seats
var ErrSeatsExhausted = errors.New("no seats available for this course", errors.CategoryConflict).
	WithTextCode(textCodeSeatsExhausted).
	WithCode(errors.CodeConflict)

// ErrAlreadyRegistered is returned when the same contact identity applies twice
var ErrAlreadyRegistered = errors.New("already registered for this course", errors.CategoryConflict).
	WithTextCode(textCodeAlreadyRegistered).
	WithCode(errors.CodeConflict)

// ErrEmailTaken is returned when a signup email is already in use
var ErrEmailTaken = errors.New("email is already registered", errors.CategoryConflict).
	WithTextCode(textCodeEmailTaken).
	WithCode(errors.CodeConflict)

// ErrStudentNotFound is returned for lookups of unknown student accounts
var ErrStudentNotFound = errors.New("student not found", errors.CategoryNotFound).
	WithTextCode(textCodeStudentNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidCode is returned when an OTP does not match or was already consumed
var ErrInvalidCode = errors.New("invalid verification code", errors.CategoryValidation).
	WithTextCode(textCodeInvalidCode).
	WithCode(errors.CodeBadRequest)

// ErrCodeExpired is returned when an OTP is past its expiry
var ErrCodeExpired = errors.New("verification code expired", errors.CategoryValidation).
	WithTextCode(textCodeCodeExpired).
	WithCode(errors.CodeBadRequest)

// ErrInvalidCredentials is the single error for unknown email or wrong
// password, so responses never reveal which one it was.
var ErrInvalidCredentials = errors.New("invalid email or password", errors.CategoryAuth).
	WithTextCode(textCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrAccountNotActive is returned after a correct password when the
// account has not been activated or was suspended.
var ErrAccountNotActive = errors.New("account is not active", errors.CategoryAuth).
	WithTextCode(textCodeAccountNotActive).
	WithCode(errors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned while the login cooldown is in force
var ErrTooManyLoginAttempts = errors.New("too many login attempts", errors.CategoryRateLimit).
	WithTextCode(textCodeTooManyAttempts)

// ErrInvalidSession is the uniform result for any session token failure:
// bad signature, malformed payload, or expiry. Callers never learn which.
var ErrInvalidSession = errors.New("invalid or expired session", errors.CategoryAuth).
	WithTextCode(textCodeInvalidSession).
	WithCode(errors.CodeUnauthorized)

// ErrForbidden is returned when the caller holds a valid session without the required role
var ErrForbidden = errors.New("insufficient permissions", errors.CategoryAuthz).
	WithTextCode(textCodeForbidden).
	WithCode(errors.CodeForbidden)

// ErrNoEmptyString rejects empty values where a secret is required
var ErrNoEmptyString = errors.New("value cannot be empty", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the internal bcrypt mismatch error;
// it is mapped to ErrInvalidCredentials before leaving the service.
var ErrMismatchedHashAndPassword = errors.New("hashed password does not match", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// IsUniqueViolation detects storage-layer uniqueness failures across the
// drivers we run against (sqlite in dev/test, postgres in production).
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
