// Copyright 2025 Takhin Data, Inc.

package adminapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned by Authenticator.Login on a bad
// operator secret.
var ErrInvalidCredentials = errors.New("adminapi: invalid credentials")

// claims is the JWT payload minted for an authenticated operator
// session, modeled on the single-role claims the retrieval pack's JWT
// auth service issues for its own user accounts.
type claims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// Authenticator issues and verifies bearer tokens for the single
// "operator" principal the admin API recognizes. There is no per-user
// account system here: one bcrypt-hashed secret gates every mutating
// admin call.
type Authenticator struct {
	secretHash []byte
	jwtKey     []byte
	ttl        time.Duration
}

// NewAuthenticator hashes operatorSecret with bcrypt and prepares token
// signing with jwtKey. Both must be non-empty.
func NewAuthenticator(operatorSecret, jwtKey string, ttl time.Duration) (*Authenticator, error) {
	if operatorSecret == "" || jwtKey == "" {
		return nil, errors.New("adminapi: operator secret and jwt key are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(operatorSecret), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Authenticator{secretHash: hash, jwtKey: []byte(jwtKey), ttl: ttl}, nil
}

// Login exchanges the operator secret for a bearer token.
func (a *Authenticator) Login(secret string) (string, error) {
	if bcrypt.CompareHashAndPassword(a.secretHash, []byte(secret)) != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Subject: "operator",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	})
	return token.SignedString(a.jwtKey)
}

func (a *Authenticator) verify(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("adminapi: unexpected signing method")
		}
		return a.jwtKey, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("adminapi: invalid token")
	}
	return nil
}

// Middleware requires a valid "Bearer <token>" Authorization header on
// every request it wraps.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if err := a.verify(tokenString); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
