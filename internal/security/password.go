package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrSecretTooShort = errors.New("secret is too short")

const minSecretLength = 8

// HashSecret bcrypts plain; cost <= 0 means bcrypt.DefaultCost.
func HashSecret(plain string, cost int) (string, error) {
	if len(plain) < minSecretLength {
		return "", ErrSecretTooShort
	}
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CompareSecret(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}
