package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 24 * time.Hour

// JWTClaims represents the claims carried by an assistant device token
type JWTClaims struct {
	DeviceID string `json:"device_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Signer issues the bearer tokens this assistant presents to the remote
// assistant service
type Signer struct {
	secret   []byte
	deviceID string
	now      func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewSigner creates a token signer. An empty secret disables signing.
func NewSigner(secret, deviceID string) *Signer {
	return &Signer{
		secret:   []byte(secret),
		deviceID: deviceID,
		now:      time.Now,
	}
}

// Enabled reports whether requests should carry a bearer token
func (s *Signer) Enabled() bool {
	return s != nil && len(s.secret) > 0
}

// DeviceToken returns a cached token, re-issued shortly before it expires
func (s *Signer) DeviceToken() (string, error) {
	if !s.Enabled() {
		return "", errors.New("token signing is not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Add(time.Minute).Before(s.expiresAt) {
		return s.token, nil
	}

	expiresAt := now.Add(tokenTTL)
	claims := &JWTClaims{
		DeviceID: s.deviceID,
		Role:     "device",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.deviceID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", err
	}

	s.token = token
	s.expiresAt = expiresAt
	return token, nil
}

// ValidateToken validates a token signed with the same secret and returns
// its claims
func (s *Signer) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrInvalidKey
}
