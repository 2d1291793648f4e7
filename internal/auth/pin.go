// ABOUTME: bcrypt hashing and comparison of staff PINs
// ABOUTME: Keeps a fixed dummy hash for timing-safe failed lookups

package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinPINLength is the shortest PIN CreateUser accepts.
const MinPINLength = 4

// dummyHash is compared against when the user doesn't exist so that a miss
// costs the same as a wrong PIN.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// hashCost is a variable so tests can lower it.
var hashCost = bcrypt.DefaultCost

// HashPIN returns the bcrypt hash of pin.
func HashPIN(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), hashCost)
	if err != nil {
		return "", fmt.Errorf("hashing PIN: %w", err)
	}
	return string(hash), nil
}

// ComparePIN reports whether pin matches hash.
func ComparePIN(hash, pin string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}
