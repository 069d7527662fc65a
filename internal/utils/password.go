package utils

import "golang.org/x/crypto/bcrypt"

// HashOperatorKey returns the bcrypt hash stored in OPERATOR_KEY_HASH.
func HashOperatorKey(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyOperatorKey compares an operator key against its bcrypt hash.
func VerifyOperatorKey(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
