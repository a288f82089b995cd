package enroll

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

// DefaultHashWorkers bounds how many bcrypt derivations run at once
var DefaultHashWorkers = 4

// DefaultHashTimeout is the absolute budget for one derivation
var DefaultHashTimeout = 5 * time.Second

// PasswordHasher runs bcrypt off the request-accepting path. Derivations
// are CPU bound, so a bounded worker pool keeps a burst of signups or
// logins from starving I/O-bound requests.
type PasswordHasher struct {
	sem     chan struct{}
	timeout time.Duration
	logger  Logger
}

// HasherOption customizes the pool
type HasherOption func(*PasswordHasher)

// WithHashWorkers sets the number of concurrent derivations
func WithHashWorkers(n int) HasherOption {
	return func(h *PasswordHasher) {
		if n > 0 {
			h.sem = make(chan struct{}, n)
		}
	}
}

// WithHashTimeout sets the absolute per-call budget
func WithHashTimeout(d time.Duration) HasherOption {
	return func(h *PasswordHasher) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithHasherLogger overrides the logger
func WithHasherLogger(l Logger) HasherOption {
	return func(h *PasswordHasher) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewPasswordHasher creates a pool with the default worker count and timeout
func NewPasswordHasher(opts ...HasherOption) *PasswordHasher {
	h := &PasswordHasher{
		sem:     make(chan struct{}, DefaultHashWorkers),
		timeout: DefaultHashTimeout,
		logger:  defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Hash derives a password hash inside the pool, honoring the context
// deadline. Timeouts surface as a generic operation failure that never
// carries the password.
func (h *PasswordHasher) Hash(ctx context.Context, password string) (string, error) {
	var out string
	err := h.run(ctx, func() error {
		var err error
		out, err = HashPassword(password)
		return err
	})
	return out, err
}

// Compare verifies a password against a hash inside the pool
func (h *PasswordHasher) Compare(ctx context.Context, password, hash string) error {
	return h.run(ctx, func() error {
		return ComparePasswordAndHash(password, hash)
	})
}

func (h *PasswordHasher) run(ctx context.Context, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	select {
	case h.sem <- struct{}{}:
	case <-ctx.Done():
		return h.timeoutError(ctx.Err())
	}

	done := make(chan error, 1)
	go func() {
		defer func() { <-h.sem }()
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// The worker keeps the slot until bcrypt returns; the caller
		// just stops waiting for it.
		return h.timeoutError(ctx.Err())
	}
}

func (h *PasswordHasher) timeoutError(cause error) error {
	h.logger.Warn("password derivation timed out: %v", cause)
	return errors.Wrap(cause, errors.CategoryOperation, "authentication timed out")
}
