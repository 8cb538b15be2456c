package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"washdesk/internal/storage"
)

const (
	TokenKey = "token"
	RoleKey  = "role"

	aspNetRoleClaim = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
)

// SessionService keeps the bearer token and the user's role in the
// key-value store.
type SessionService struct {
	kv  storage.KV
	now func() time.Time
}

func NewSessionService(kv storage.KV) *SessionService {
	return &SessionService{kv: kv, now: time.Now}
}

// Login stores the token. When role is empty and the token is a JWT, the role
// claim is used. Expired JWTs are rejected.
func (s *SessionService) Login(ctx context.Context, token, role string) error {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return ErrNoToken
	}

	if claims, ok := inspect(token); ok {
		if s.expired(claims) {
			return ErrTokenExpired
		}
		if role == "" {
			role = roleClaim(claims)
		}
	}

	if err := s.kv.Set(ctx, TokenKey, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if role == "" {
		if err := s.kv.Delete(ctx, RoleKey); err != nil {
			return fmt.Errorf("clear role: %w", err)
		}
		return nil
	}
	if err := s.kv.Set(ctx, RoleKey, role); err != nil {
		return fmt.Errorf("store role: %w", err)
	}
	return nil
}

// Token returns the stored bearer token.
func (s *SessionService) Token(ctx context.Context) (string, error) {
	token, err := s.kv.Get(ctx, TokenKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("read token: %w", err)
	}
	if token == "" {
		return "", ErrNoToken
	}
	if claims, ok := inspect(token); ok && s.expired(claims) {
		return "", ErrTokenExpired
	}
	return token, nil
}

func (s *SessionService) Role(ctx context.Context) (string, error) {
	role, err := s.kv.Get(ctx, RoleKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("read role: %w", err)
	}
	return role, nil
}

func (s *SessionService) Logout(ctx context.Context) error {
	if err := s.kv.Delete(ctx, TokenKey); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if err := s.kv.Delete(ctx, RoleKey); err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	return nil
}

// inspect reads the claims of a JWT without verifying its signature; the
// backend does the verification. Opaque tokens report ok=false.
func inspect(token string) (jwt.MapClaims, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

func (s *SessionService) expired(claims jwt.MapClaims) bool {
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !s.now().Before(exp.Time)
}

func roleClaim(claims jwt.MapClaims) string {
	for _, key := range []string{"role", aspNetRoleClaim} {
		switch v := claims[key].(type) {
		case string:
			return v
		case []any:
			if len(v) > 0 {
				if s, ok := v[0].(string); ok {
					return s
				}
			}
		}
	}
	return ""
}
