package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"order-gateway/internal/apperr"
	"order-gateway/internal/auth"
	"order-gateway/internal/geo"
	"order-gateway/internal/models"
	"order-gateway/internal/redisclient"
	"order-gateway/internal/sms"
	"order-gateway/internal/store"
	"order-gateway/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const debugCode = "111111"

// CodeThrottle rate limits and verifies SMS login codes
type CodeThrottle interface {
	RecordCode(ctx context.Context, phone, code string) (redisclient.SendResult, error)
	VerifyCode(ctx context.Context, phone, code string) (redisclient.CheckResult, error)
}

// TokenRevoker is the token deny-list
type TokenRevoker interface {
	Revoke(ctx context.Context, jtis ...string) error
	Claim(ctx context.Context, jti string) (bool, error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// SessionRepository is the slice of the store the auth service needs
type SessionRepository interface {
	GetOrCreateUserByPhone(ctx context.Context, phone string) (*models.User, bool, error)
	CreateSession(ctx context.Context, session *models.ActiveSession) error
	ListSessions(ctx context.Context, userID uuid.UUID, nowUnix int64) ([]models.ActiveSession, error)
	GetSessionByRefreshID(ctx context.Context, userID uuid.UUID, refreshID string) (*models.ActiveSession, error)
	GetSessionByAccessID(ctx context.Context, userID uuid.UUID, accessID string) (*models.ActiveSession, error)
}

// Principal is the authenticated caller of a request
type Principal struct {
	UserID  uuid.UUID
	TokenID string
}

// ClientInfo describes where a login or refresh came from
type ClientInfo struct {
	IP        string
	UserAgent string
	Agent     string
	Platform  string
}

// SendCodeRequest asks for a login code
type SendCodeRequest struct {
	Phone string `json:"phone" binding:"required,phone"`
}

// LoginRequest exchanges a login code for tokens
type LoginRequest struct {
	Phone string `json:"phone" binding:"required,phone"`
	Code  string `json:"code" binding:"required,len=6,numeric"`
}

// LoginResult is an issued token pair plus the device it was issued to
type LoginResult struct {
	UserID       uuid.UUID
	Tokens       *auth.TokenPair
	Agent        string
	Platform     string
	Registration bool
}

// SessionView is an active session as shown to its owner
type SessionView struct {
	models.ActiveSession
	Online bool `json:"online"`
}

// AuthService handles SMS login, token rotation and active sessions
type AuthService struct {
	throttle CodeThrottle
	revoker  TokenRevoker
	repo     SessionRepository
	tokens   *auth.JWTService
	sender   sms.Sender
	locator  geo.Locator
	debug    bool
	now      func() time.Time
	logger   *zap.Logger
}

// NewAuthService creates a new auth service. In debug mode every code is 111111.
func NewAuthService(
	throttle CodeThrottle,
	revoker TokenRevoker,
	repo SessionRepository,
	tokens *auth.JWTService,
	sender sms.Sender,
	locator geo.Locator,
	debug bool,
) *AuthService {
	return &AuthService{
		throttle: throttle,
		revoker:  revoker,
		repo:     repo,
		tokens:   tokens,
		sender:   sender,
		locator:  locator,
		debug:    debug,
		now:      time.Now,
		logger:   util.GetLogger(),
	}
}

// WithClock replaces the clock used for session liveness
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// Debug reports whether the service runs with debug codes
func (s *AuthService) Debug() bool {
	return s.debug
}

// SendCode issues a login code for phone if both throttle limits allow it
func (s *AuthService) SendCode(ctx context.Context, phone string) error {
	ctx, span := util.StartSpan(ctx, "AuthService.SendCode")
	defer span.End()

	code, err := s.generateCode()
	if err != nil {
		return err
	}

	res, err := s.throttle.RecordCode(ctx, phone, code)
	if err != nil {
		util.RecordError(span, err)
		return err
	}

	switch res {
	case redisclient.SendAttemptsExceeded:
		util.SMSRejectedTotal.WithLabelValues("attempts_exceeded").Inc()
		return apperr.ErrAttemptsExceeded
	case redisclient.SendCooldown:
		util.SMSRejectedTotal.WithLabelValues("cooldown").Inc()
		return apperr.ErrTimeout
	}

	if err := s.sender.Send(ctx, phone, "Your login code: "+code); err != nil {
		s.logger.Error("Failed to deliver login code", zap.String("phone", phone), zap.Error(err))
		return err
	}

	util.SMSSentTotal.Inc()
	return nil
}

func (s *AuthService) generateCode() (string, error) {
	if s.debug {
		return debugCode, nil
	}
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Login verifies the code, registers the user on first login and opens a session
func (s *AuthService) Login(ctx context.Context, req *LoginRequest, client ClientInfo) (*LoginResult, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Login")
	defer span.End()

	res, err := s.throttle.VerifyCode(ctx, req.Phone, req.Code)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	switch res {
	case redisclient.CheckExpired:
		util.SMSRejectedTotal.WithLabelValues("expired").Inc()
		return nil, apperr.ErrCodeExpired
	case redisclient.CheckWrongCode:
		util.SMSRejectedTotal.WithLabelValues("wrong_code").Inc()
		return nil, apperr.ErrWrongCode
	}

	user, created, err := s.repo.GetOrCreateUserByPhone(ctx, req.Phone)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	if created {
		s.logger.Info("User registered", zap.String("user_id", user.ID.String()))
	}

	result, err := s.openSession(ctx, user.ID, client)
	if err != nil {
		return nil, err
	}
	result.Registration = created
	return result, nil
}

// Refresh rotates a refresh token. The presented refresh jti is claimed
// atomically so only one concurrent refresh can win, then the paired access
// token is revoked and a new pair is issued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*LoginResult, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Refresh")
	defer span.End()

	principal, err := s.authenticate(ctx, refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	claimed, err := s.revoker.Claim(ctx, principal.TokenID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, apperr.Unauthorized("token revoked")
	}
	util.TokensRevokedTotal.Inc()

	session, err := s.repo.GetSessionByRefreshID(ctx, principal.UserID, principal.TokenID)
	switch {
	case err == nil:
		if err := s.revoke(ctx, session.AccessID); err != nil {
			return nil, err
		}
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return s.openSession(ctx, principal.UserID, client)
}

// Logout revokes the caller's access token and the refresh token paired with it
func (s *AuthService) Logout(ctx context.Context, principal *Principal) error {
	ctx, span := util.StartSpan(ctx, "AuthService.Logout")
	defer span.End()

	jtis := []string{principal.TokenID}
	session, err := s.repo.GetSessionByAccessID(ctx, principal.UserID, principal.TokenID)
	switch {
	case err == nil:
		jtis = append(jtis, session.RefreshID)
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("failed to find session: %w", err)
	}

	return s.revoke(ctx, jtis...)
}

// Authenticate validates an access token and checks the deny-list
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	return s.authenticate(ctx, accessToken, auth.TokenTypeAccess)
}

func (s *AuthService) authenticate(ctx context.Context, token string, typ auth.TokenType) (*Principal, error) {
	if token == "" {
		return nil, apperr.Unauthorized("missing token")
	}

	claims, err := s.tokens.Parse(token, typ)
	if err != nil {
		return nil, apperr.Unauthorized(err.Error())
	}

	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, apperr.Unauthorized("token revoked")
	}

	userID, _ := claims.UserID()
	return &Principal{UserID: userID, TokenID: claims.ID}, nil
}

// ActiveSessions lists the user's sessions whose refresh token is still usable
func (s *AuthService) ActiveSessions(ctx context.Context, userID uuid.UUID) ([]SessionView, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.ActiveSessions")
	defer span.End()

	now := s.now().Unix()
	sessions, err := s.repo.ListSessions(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		refreshRevoked, err := s.revoker.IsRevoked(ctx, session.RefreshID)
		if err != nil {
			return nil, err
		}
		if refreshRevoked {
			continue
		}

		accessRevoked, err := s.revoker.IsRevoked(ctx, session.AccessID)
		if err != nil {
			return nil, err
		}
		views = append(views, SessionView{
			ActiveSession: session,
			Online:        session.AccessExpiresAt > now && !accessRevoked,
		})
	}
	return views, nil
}

// DeactivateSession revokes both tokens of the user's session with refreshID
func (s *AuthService) DeactivateSession(ctx context.Context, userID uuid.UUID, refreshID string) error {
	ctx, span := util.StartSpan(ctx, "AuthService.DeactivateSession")
	defer span.End()

	session, err := s.repo.GetSessionByRefreshID(ctx, userID, refreshID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.ErrSessionNotFound
		}
		return fmt.Errorf("failed to find session: %w", err)
	}

	return s.revoke(ctx, session.AccessID, session.RefreshID)
}

func (s *AuthService) revoke(ctx context.Context, jtis ...string) error {
	if err := s.revoker.Revoke(ctx, jtis...); err != nil {
		return err
	}
	util.TokensRevokedTotal.Add(float64(len(jtis)))
	return nil
}

// openSession issues a token pair and records it as an active session
func (s *AuthService) openSession(ctx context.Context, userID uuid.UUID, client ClientInfo) (*LoginResult, error) {
	pair, err := s.tokens.IssuePair(userID)
	if err != nil {
		return nil, err
	}
	util.TokensIssuedTotal.Inc()

	device := auth.ParseDevice(client.UserAgent, client.Agent, client.Platform)

	region := ""
	if s.locator != nil && client.IP != "" {
		region, err = s.locator.Region(ctx, client.IP)
		if err != nil {
			s.logger.Warn("Geolocation lookup failed", zap.String("ip", client.IP), zap.Error(err))
			region = ""
		}
	}

	session := &models.ActiveSession{
		UserID:           userID,
		AccessID:         pair.AccessID,
		AccessExpiresAt:  pair.AccessExpiresAt.Unix(),
		RefreshID:        pair.RefreshID,
		RefreshExpiresAt: pair.RefreshExpiresAt.Unix(),
		UserAgent:        client.UserAgent,
		Agent:            device.Agent,
		Platform:         device.Platform,
		Region:           region,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return &LoginResult{
		UserID:   userID,
		Tokens:   pair,
		Agent:    device.Agent,
		Platform: device.Platform,
	}, nil
}
