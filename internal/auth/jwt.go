package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes access from refresh tokens
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

var (
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenWrongType = errors.New("wrong token type")
)

// Claims carried by both token kinds. Subject is the user id and ID the jti.
type Claims struct {
	Type TokenType `json:"type"`
	jwt.RegisteredClaims
}

// UserID parses the subject
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// TokenPair is a freshly issued access/refresh pair
type TokenPair struct {
	AccessToken      string
	AccessID         string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshID        string
	RefreshExpiresAt time.Time
}

// JWTService issues and validates HS256 tokens
type JWTService struct {
	secretKey  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewJWTService creates a new JWT service
func NewJWTService(secretKey string, accessTTL, refreshTTL time.Duration) *JWTService {
	return &JWTService{
		secretKey:  []byte(secretKey),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock overrides the clock, used by tests
func (j *JWTService) WithClock(now func() time.Time) *JWTService {
	j.now = now
	return j
}

// RefreshTTL is the refresh token lifetime
func (j *JWTService) RefreshTTL() time.Duration {
	return j.refreshTTL
}

// AccessTTL is the access token lifetime
func (j *JWTService) AccessTTL() time.Duration {
	return j.accessTTL
}

// IssuePair generates a new access and refresh token for userID
func (j *JWTService) IssuePair(userID uuid.UUID) (*TokenPair, error) {
	now := j.now()

	access, accessID, accessExp, err := j.sign(userID, TokenTypeAccess, now, j.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshID, refreshExp, err := j.sign(userID, TokenTypeRefresh, now, j.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		AccessID:         accessID,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshID:        refreshID,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (j *JWTService) sign(userID uuid.UUID, typ TokenType, now time.Time, ttl time.Duration) (string, string, time.Time, error) {
	jti := uuid.New().String()
	exp := now.Add(ttl).Truncate(time.Second)
	claims := Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secretKey)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("failed to sign %s token: %w", typ, err)
	}
	return signed, jti, exp, nil
}

// Parse validates signature, expiry and kind of tokenString
func (j *JWTService) Parse(tokenString string, expected TokenType) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return j.secretKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if claims.Type != expected {
		return nil, ErrTokenWrongType
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrTokenInvalid)
	}
	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrTokenInvalid)
	}
	return claims, nil
}
