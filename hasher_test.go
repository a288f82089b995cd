package enroll_test

import (
	"context"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/educlub/enroll"
)

func TestPasswordHasherRoundTrip(t *testing.T) {
	hasher := enroll.NewPasswordHasher()
	ctx := context.Background()

	hash, err := hasher.Hash(ctx, "securePassword123!")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	assert.NoError(t, hasher.Compare(ctx, "securePassword123!", hash))
	assert.ErrorIs(t,
		hasher.Compare(ctx, "wrongPassword", hash),
		enroll.ErrMismatchedHashAndPassword,
	)
}

func TestPasswordHasherTimeout(t *testing.T) {
	// One worker and a budget far below a single bcrypt derivation:
	// the first call occupies the slot, the second times out waiting.
	hasher := enroll.NewPasswordHasher(
		enroll.WithHashWorkers(1),
		enroll.WithHashTimeout(time.Millisecond),
	)

	first := make(chan struct{})
	go func() {
		defer close(first)
		_, _ = hasher.Hash(context.Background(), "occupies the only slot")
	}()

	// Give the first derivation time to claim the worker slot.
	time.Sleep(10 * time.Millisecond)

	_, err := hasher.Hash(context.Background(), "times out")
	require.Error(t, err)

	var rich *goerrors.Error
	require.True(t, goerrors.As(err, &rich))
	assert.Equal(t, goerrors.CategoryOperation, rich.Category)
	assert.NotContains(t, err.Error(), "times out") // never echoes the password

	<-first
}

func TestPasswordHasherHonorsCallerContext(t *testing.T) {
	hasher := enroll.NewPasswordHasher(enroll.WithHashWorkers(1))

	first := make(chan struct{})
	go func() {
		defer close(first)
		_, _ = hasher.Hash(context.Background(), "occupies the only slot")
	}()

	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := hasher.Hash(ctx, "already cancelled")
	require.Error(t, err)

	<-first
}
