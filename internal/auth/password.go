// Package auth holds password hashing and access-token helpers.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Stored-hash format: pbkdf2_sha256$iterations$salt_b64$hash_b64.
const (
	hashAlgorithm  = "pbkdf2_sha256"
	hashIterations = 390000
	saltSize       = 16
	keyLength      = 32
)

// HashPassword generates a salted PBKDF2-SHA256 hash for the given password.
func HashPassword(plain string) (string, error) {
	if plain == "" {
		return "", errors.New("password must not be empty")
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	dk := pbkdf2.Key([]byte(plain), salt, hashIterations, keyLength, sha256.New)
	return strings.Join([]string{
		hashAlgorithm,
		strconv.Itoa(hashIterations),
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(dk),
	}, "$"), nil
}

// VerifyPassword reports whether plain matches the stored hash. Malformed
// hashes verify as false, never as an error.
func VerifyPassword(plain, stored string) bool {
	parts := strings.Split(stored, "$")
	if len(parts) != 4 || parts[0] != hashAlgorithm {
		return false
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return false
	}
	salt, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return false
	}
	got := pbkdf2.Key([]byte(plain), salt, iterations, len(want), sha256.New)
	return hmac.Equal(got, want)
}
