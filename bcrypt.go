package enroll

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword will generate a salted password hash. bcrypt embeds a
// fresh random salt in the opaque output, so two hashes of the same
// password never compare equal as strings.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext password
// against the hash. The comparison inside bcrypt is constant time.
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}
