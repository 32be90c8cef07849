package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/retouch/retouch/internal/typeid"
)

var (
	ErrInvalidAccessCode = errors.New("invalid access code")
	ErrInvalidToken      = errors.New("invalid token")
)

const defaultTokenTTL = 24 * time.Hour

// Service issues and validates anonymous session tokens. A session groups the
// uploads and repair jobs of one browser; there are no user accounts.
type Service struct {
	jwtSecret      []byte
	accessCodeHash []byte
	ttl            time.Duration
	now            func() time.Time
}

// NewService creates the session service. When accessCodeHash is empty anyone
// can start a session.
func NewService(jwtSecret, accessCodeHash string) *Service {
	s := &Service{
		jwtSecret: []byte(jwtSecret),
		ttl:       defaultTokenTTL,
		now:       time.Now,
	}
	if accessCodeHash != "" {
		s.accessCodeHash = []byte(accessCodeHash)
	}
	return s
}

type SessionResult struct {
	Token     string    `json:"token"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RequiresAccessCode reports whether StartSession checks the code.
func (s *Service) RequiresAccessCode() bool {
	return len(s.accessCodeHash) > 0
}

// StartSession checks the access code and returns a token for a new session.
func (s *Service) StartSession(accessCode string) (*SessionResult, error) {
	if s.RequiresAccessCode() {
		if err := bcrypt.CompareHashAndPassword(s.accessCodeHash, []byte(accessCode)); err != nil {
			return nil, ErrInvalidAccessCode
		}
	}
	return s.issue(typeid.NewSessionID())
}

// Refresh issues a new token for the session a valid token belongs to.
func (s *Service) Refresh(tokenString string) (*SessionResult, error) {
	sessionID, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return s.issue(sessionID)
}

func (s *Service) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	sessionID, ok := claims["sub"].(string)
	if !ok || typeid.Validate(sessionID, typeid.PrefixSession) != nil {
		return "", fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	return sessionID, nil
}

func (s *Service) issue(sessionID string) (*SessionResult, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := jwt.MapClaims{
		"sub": sessionID,
		"iat": now.Unix(),
		"exp": expires.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &SessionResult{Token: signed, SessionID: sessionID, ExpiresAt: expires}, nil
}

// HashAccessCode produces the value for ACCESS_CODE_HASH.
func HashAccessCode(code string) (string, error) {
	if code == "" {
		return "", errors.New("access code must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), 12)
	if err != nil {
		return "", fmt.Errorf("hash access code: %w", err)
	}
	return string(hash), nil
}
