package auth

import (
	"crypto/md5" //nolint:gosec // legacy hash format kept for upgrade compatibility
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

// Verifier checks a cleartext password against a stored hash.
type Verifier interface {
	Verify(password, hash string) bool
}

// VerifierFor picks the verifier matching the stored hash format.
// Bare hex digests are the legacy MD5 format.
func VerifierFor(hash string) Verifier {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		return Argon2idVerifier{}
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		return BcryptVerifier{}
	default:
		return MD5Verifier{}
	}
}

// MD5Verifier matches the legacy hex-encoded MD5 digest format.
type MD5Verifier struct{}

// Verify compares the hex MD5 of the password with the stored digest.
func (MD5Verifier) Verify(password, hash string) bool {
	sum := md5.Sum([]byte(password)) //nolint:gosec
	digest := hex.EncodeToString(sum[:])

	return subtle.ConstantTimeCompare([]byte(digest), []byte(strings.ToLower(hash))) == 1
}

// HashMD5 produces the legacy password digest, used when seeding.
func HashMD5(password string) string {
	sum := md5.Sum([]byte(password)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// BcryptVerifier matches bcrypt hashes.
type BcryptVerifier struct{}

// Verify compares the password with a bcrypt hash.
func (BcryptVerifier) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Argon2idVerifier matches argon2id hashes.
type Argon2idVerifier struct{}

// Verify compares the password with an argon2id hash.
func (Argon2idVerifier) Verify(password, hash string) bool {
	ok, err := argon2id.ComparePasswordAndHash(password, hash)
	return err == nil && ok
}
