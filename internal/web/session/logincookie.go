package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

// LoginCookieName carries the sealed auto-login credentials.
const LoginCookieName = "insite_login"

var (
	// ErrBadCookieKey is returned when the configured cookie
	// encryption key is not exactly 32 bytes.
	ErrBadCookieKey = errors.New("cookie encryption key must be 32 bytes")

	// ErrBadLoginCookie is returned when a login cookie can not be
	// opened with the configured key.
	ErrBadLoginCookie = errors.New("login cookie is malformed or sealed under a different key")
)

const nonceLen = 24

// SealLoginCookie seals user and password into an opaque cookie value
// under the server's cookie encryption key.
func SealLoginCookie(user, password string, key string) (string, error) {
	if len(key) != 32 { //nolint:mnd
		return "", ErrBadCookieKey
	}

	var boxKey [32]byte

	copy(boxKey[:], key)

	var nonce [nonceLen]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err //nolint:wrapcheck
	}

	plain := []byte(user + "\x00" + password)
	sealed := secretbox.Seal(nonce[:], plain, &nonce, &boxKey)

	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// OpenLoginCookie opens a sealed login cookie and returns the user and
// password it carries.
func OpenLoginCookie(value, key string) (user, password string, err error) {
	if len(key) != 32 { //nolint:mnd
		return "", "", ErrBadCookieKey
	}

	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil || len(raw) <= nonceLen {
		return "", "", ErrBadLoginCookie
	}

	var boxKey [32]byte

	copy(boxKey[:], key)

	var nonce [nonceLen]byte

	copy(nonce[:], raw[:nonceLen])

	plain, ok := secretbox.Open(nil, raw[nonceLen:], &nonce, &boxKey)
	if !ok {
		return "", "", ErrBadLoginCookie
	}

	parts := strings.SplitN(string(plain), "\x00", 2)
	if len(parts) != 2 {
		return "", "", ErrBadLoginCookie
	}

	return parts[0], parts[1], nil
}
