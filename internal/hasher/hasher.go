// Package hasher derives and verifies salted password hashes using
// Argon2id. Salt and hash are stored as separate hex strings.
package hasher

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	saltLength  = 16
	keyLength   = 32
	iterations  = 3
	memory      = 64 * 1024
	parallelism = 2
)

// Hash derives a fresh random salt and the Argon2id key of the password.
// Two calls with the same password produce different pairs.
func Hash(password string) (salt, hash string, err error) {
	rawSalt := make([]byte, saltLength)
	if _, err := rand.Read(rawSalt); err != nil {
		return "", "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), rawSalt, iterations, memory, parallelism, keyLength)

	return hex.EncodeToString(rawSalt), hex.EncodeToString(key), nil
}

// Verify recomputes the keyed hash of the password with the stored salt
// and compares it to the stored hash in constant time.
func Verify(password, salt, hash string) bool {
	rawSalt, err := hex.DecodeString(salt)
	if err != nil {
		return false
	}
	rawHash, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}

	candidate := argon2.IDKey([]byte(password), rawSalt, iterations, memory, parallelism, uint32(len(rawHash)))

	return subtle.ConstantTimeCompare(rawHash, candidate) == 1
}
