package store

import (
	"context"
	"fmt"

	"order-gateway/internal/models"

	"github.com/google/uuid"
)

const sessionColumns = `id, user_id, access_id, access_expires_at, refresh_id, refresh_expires_at,
	user_agent, agent, platform, region, created_at`

// CreateSession records an issued token pair
func (s *Store) CreateSession(ctx context.Context, session *models.ActiveSession) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	err := s.db.GetContext(ctx, session,
		`INSERT INTO active_sessions (user_id, access_id, access_expires_at, refresh_id,
		   refresh_expires_at, user_agent, agent, platform, region)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+sessionColumns,
		session.UserID, session.AccessID, session.AccessExpiresAt, session.RefreshID,
		session.RefreshExpiresAt, session.UserAgent, session.Agent, session.Platform, session.Region)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// ListSessions returns the user's sessions whose refresh token outlives nowUnix
func (s *Store) ListSessions(ctx context.Context, userID uuid.UUID, nowUnix int64) ([]models.ActiveSession, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	sessions := []models.ActiveSession{}
	err := s.db.SelectContext(ctx, &sessions,
		`SELECT `+sessionColumns+` FROM active_sessions
		 WHERE user_id = $1 AND refresh_expires_at > $2
		 ORDER BY created_at DESC, id DESC`, userID, nowUnix)
	return sessions, err
}

// GetSessionByRefreshID finds the user's session by refresh jti
func (s *Store) GetSessionByRefreshID(ctx context.Context, userID uuid.UUID, refreshID string) (*models.ActiveSession, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var session models.ActiveSession
	err := s.db.GetContext(ctx, &session,
		`SELECT `+sessionColumns+` FROM active_sessions WHERE user_id = $1 AND refresh_id = $2`,
		userID, refreshID)
	if err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

// GetSessionByAccessID finds the user's session by access jti
func (s *Store) GetSessionByAccessID(ctx context.Context, userID uuid.UUID, accessID string) (*models.ActiveSession, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var session models.ActiveSession
	err := s.db.GetContext(ctx, &session,
		`SELECT `+sessionColumns+` FROM active_sessions WHERE user_id = $1 AND access_id = $2`,
		userID, accessID)
	if err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}
