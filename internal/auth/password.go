package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// bcryptCost balances security and login latency.
	bcryptCost = 10
)

// HashPassword returns the hex SHA-256 digest of password, the default
// format of credential file entries.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// HashPasswordBcrypt generates a bcrypt hash of the password for stronger
// credential file entries.
func HashPasswordBcrypt(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// comparePassword checks password against a stored entry. Entries starting
// with the bcrypt version marker are verified with bcrypt; anything else is
// treated as a hex SHA-256 digest and compared in constant time.
func comparePassword(stored, password string) bool {
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	digest := HashPassword(password)
	return subtle.ConstantTimeCompare([]byte(digest), []byte(strings.ToLower(stored))) == 1
}
