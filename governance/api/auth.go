// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tduhfajd/sql-guard/governance/gerror"
	"github.com/tduhfajd/sql-guard/governance/rbac"
)

// ErrMissingToken is returned when a request carries no bearer token.
var ErrMissingToken = errors.New("missing bearer token")

// Claims are the JWT claims identifying a subject. The subject ID is the
// registered "sub" claim.
type Claims struct {
	Role   string `json:"role"`
	Active *bool  `json:"active,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator issues and verifies HS256 tokens.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewAuthenticator creates an authenticator. ttl bounds issued tokens.
func NewAuthenticator(secret string, ttl time.Duration) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("JWT secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	return &Authenticator{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: "sql-guard",
		now:    time.Now,
	}, nil
}

// IssueToken signs a token for s.
func (a *Authenticator) IssueToken(s rbac.Subject) (string, error) {
	if s.ID == "" {
		return "", errors.New("subject id is required")
	}
	if !s.Role.IsValid() {
		return "", fmt.Errorf("invalid role: %q", s.Role)
	}
	now := a.now()
	active := s.Active
	claims := Claims{
		Role:   string(s.Role),
		Active: &active,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.ID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses tokenString and returns its subject. A token without an
// "active" claim yields an active subject.
func (a *Authenticator) Verify(tokenString string) (rbac.Subject, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return rbac.Subject{}, fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" {
		return rbac.Subject{}, errors.New("invalid token: missing sub claim")
	}
	role, err := rbac.ParseRole(claims.Role)
	if err != nil {
		return rbac.Subject{}, fmt.Errorf("invalid token: %w", err)
	}
	active := true
	if claims.Active != nil {
		active = *claims.Active
	}
	return rbac.Subject{ID: claims.Subject, Role: role, Active: active}, nil
}

type subjectKey struct{}

// WithSubject returns a copy of ctx carrying s.
func WithSubject(ctx context.Context, s rbac.Subject) context.Context {
	return context.WithValue(ctx, subjectKey{}, s)
}

// SubjectFrom returns the subject stored by the auth middleware.
func SubjectFrom(ctx context.Context) (rbac.Subject, bool) {
	s, ok := ctx.Value(subjectKey{}).(rbac.Subject)
	return s, ok
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("authorization header must be 'Bearer <token>'")
	}
	return strings.TrimSpace(token), nil
}

// Middleware rejects requests without a valid token and stores the subject
// in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusUnauthorized)
			return
		}
		subject, err := a.Verify(token)
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusUnauthorized)
			return
		}
		if !subject.Active {
			writeError(w, gerror.Errorf(gerror.KindPermissionDenied, "subject %s is inactive", subject.ID), nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
	})
}
