package keygen

import (
	"crypto/rand"
	"crypto/sha1" // #nosec G505 -- {SSHA} is defined over SHA-1
	"encoding/base64"
	"fmt"
	"math/big"
)

const alphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// MinPasswordLength is the shortest password GeneratePassword produces.
const MinPasswordLength = 12

// GeneratePassword returns a random password of the given length.
func GeneratePassword(length int) (string, error) {
	if length < MinPasswordLength {
		return "", fmt.Errorf("password length must be at least %d, got %d", MinPasswordLength, length)
	}

	limit := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

// SSHA hashes a password as "{SSHA}base64(sha1(password+salt)+salt)".
func SSHA(password string) (string, error) {
	salt := make([]byte, 8)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return sshaWithSalt(password, salt), nil
}

func sshaWithSalt(password string, salt []byte) string {
	h := sha1.New() // #nosec G401
	h.Write([]byte(password))
	h.Write(salt)
	sum := append(h.Sum(nil), salt...)
	return "{SSHA}" + base64.StdEncoding.EncodeToString(sum)
}

// VerifySSHA reports whether password matches an {SSHA} hash.
func VerifySSHA(password, hash string) bool {
	const prefix = "{SSHA}"
	if len(hash) <= len(prefix) || hash[:len(prefix)] != prefix {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(hash[len(prefix):])
	if err != nil || len(raw) <= sha1.Size {
		return false
	}
	return sshaWithSalt(password, raw[sha1.Size:]) == hash
}
