package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrEmptySubject = errors.New("empty subject")
)

// AnonymousSubject is the caller id used when auth is disabled.
const AnonymousSubject = "anonymous"

const DefaultTokenTTL = 24 * time.Hour

type Service struct {
	jwtSecret []byte
	disabled  bool
	now       func() time.Time
}

type Option func(*Service)

// WithDisabled makes the middleware accept every request as AnonymousSubject.
func WithDisabled(disabled bool) Option {
	return func(s *Service) { s.disabled = disabled }
}

// WithClock replaces time.Now for token issuing and validation.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(jwtSecret string, opts ...Option) *Service {
	s := &Service{
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Disabled() bool { return s.disabled }

// IssueToken signs an HS256 token for subject. A ttl of zero uses
// DefaultTokenTTL.
func (s *Service) IssueToken(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", ErrEmptySubject
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := s.now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks the signature and expiry and returns the subject.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return subject, nil
}
