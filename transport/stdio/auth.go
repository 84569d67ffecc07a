package stdio

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenTTL bounds how long the one token minted at startup remains
// valid. The harness is a local companion process launched and torn
// down alongside the UI shell, so this is generous rather than tight:
// it exists to bound a leaked token's lifetime, not to force
// re-authentication during normal use.
const tokenTTL = 24 * time.Hour

// auth mints and verifies the single HS256 token every request on this
// stdio session must carry, following the teacher's jwtAuthMiddleware /
// handleLogin shape in http_server.go generalized from an HTTP bearer
// header to a per-request JSON field, since stdio has no header channel.
type auth struct {
	secret []byte
}

// newAuth generates a random per-process signing key: the token is only
// ever meant to be checked by this same process's instance of Server, so
// the key never needs to be persisted or shared.
func newAuth() (*auth, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("stdio: failed to generate auth secret: %w", err)
	}
	return &auth{secret: secret}, nil
}

// mint produces the token a companion process must echo back on every
// request for the life of this session, printed once to stderr by the
// caller so it never appears in the request/response stream itself.
func (a *auth) mint() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// verify reports whether tokenString is a currently-valid token minted
// by this auth instance.
func (a *auth) verify(tokenString string) bool {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Method.Alg())
		}
		return a.secret, nil
	})
	return err == nil && token.Valid
}
