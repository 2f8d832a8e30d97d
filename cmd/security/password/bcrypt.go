package password

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func (c Config) hashBcrypt(password string) (string, error) {
	if len(password) > bcryptMaxBytes {
		return "", ErrPasswordTooLong
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), c.bcryptCost())
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(h), nil
}

func verifyBcrypt(encodedHash, password string) (bool, error) {
	// Longer inputs can never have been hashed by us.
	if len(password) > bcryptMaxBytes {
		return false, nil
	}

	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, ErrInvalidHash
	}
}

func bcryptCost(encodedHash string) (int, error) {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return 0, ErrInvalidHash
	}
	return cost, nil
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

func (c Config) bcryptCost() int {
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return DefaultBcryptCost
	}
	return c.BcryptCost
}
