package store

import "golang.org/x/crypto/bcrypt"

func hashPassword(plain string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		// GenerateFromPassword only fails on a cost out of range, which
		// DefaultCost never is.
		panic(err)
	}
	return string(hash)
}

func checkPassword(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
