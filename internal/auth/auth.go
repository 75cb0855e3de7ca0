// Package auth checks the bearer credential on trigger requests.
package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/example/hotel-call-scheduler/internal/internaltypes"
	jwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const issuer = "callsched"

// Checker accepts a bearer credential matching any configured mode: the
// plain shared token, a bcrypt hash of it, or an HS256 JWT.
type Checker struct {
	token     []byte
	hash      []byte
	jwtSecret []byte
}

func NewChecker(token, bcryptHash, jwtSecret string) *Checker {
	c := &Checker{}
	if token != "" {
		c.token = []byte(token)
	}
	if bcryptHash != "" {
		c.hash = []byte(bcryptHash)
	}
	if jwtSecret != "" {
		c.jwtSecret = []byte(jwtSecret)
	}
	return c
}

// Configured reports whether any credential can pass. With none configured
// every request is rejected.
func (c *Checker) Configured() bool {
	return len(c.token) > 0 || len(c.hash) > 0 || len(c.jwtSecret) > 0
}

// CheckHeader validates an Authorization header value.
func (c *Checker) CheckHeader(header string) error {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return fmt.Errorf("%w: missing bearer token", internaltypes.ErrUnauthorized)
	}
	return c.Check(strings.TrimSpace(header[len(prefix):]))
}

func (c *Checker) Check(cred string) error {
	if cred == "" || !c.Configured() {
		return internaltypes.ErrUnauthorized
	}
	if len(c.token) > 0 && subtle.ConstantTimeCompare([]byte(cred), c.token) == 1 {
		return nil
	}
	if len(c.hash) > 0 && bcrypt.CompareHashAndPassword(c.hash, []byte(cred)) == nil {
		return nil
	}
	if len(c.jwtSecret) > 0 && strings.Count(cred, ".") == 2 && c.checkJWT(cred) == nil {
		return nil
	}
	return internaltypes.ErrUnauthorized
}

func (c *Checker) checkJWT(raw string) error {
	_, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return c.jwtSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	return err
}

// HashToken returns the bcrypt hash to put in TRIGGER_TOKEN_BCRYPT.
func HashToken(token string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	return string(b), err
}

// IssueJWT signs a short-lived trigger credential for an external scheduler.
func IssueJWT(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
