package jobsculpt

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword will generate a salted password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password. A wrong password yields
// ErrMismatchedHashAndPassword, anything else means the stored hash is broken.
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "malformed password hash")
	}
	return nil
}

// CheckPassword reports whether password matches hash. It only errors when
// the stored hash is malformed.
func CheckPassword(password, hash string) (bool, error) {
	err := ComparePasswordAndHash(password, hash)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}

// BcryptHasher implements PasswordAuthenticator. Zero Cost uses the
// package default.
type BcryptHasher struct {
	Cost int
}

var _ PasswordAuthenticator = BcryptHasher{}

func (b BcryptHasher) HashPassword(password string) (string, error) {
	if b.Cost == 0 {
		return HashPassword(password)
	}
	if password == "" {
		return "", ErrNoEmptyString
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), b.Cost)
	return string(h), err
}

func (BcryptHasher) ComparePasswordAndHash(password, hash string) error {
	return ComparePasswordAndHash(password, hash)
}
