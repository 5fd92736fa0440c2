package utils

import "golang.org/x/crypto/bcrypt"

const minPasswordLength = 6

func HashPassword(s string) ([]byte, error) {
	if len(s) < minPasswordLength {
		return nil, NewValidationError("password must be at least 6 characters")
	}
	return bcrypt.GenerateFromPassword([]byte(s), bcrypt.DefaultCost)
}

func ComparePassword(hashed string, normal string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(normal))
}
