package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mx-space/wiki/internal/models"
	jwtpkg "github.com/mx-space/wiki/internal/pkg/jwt"
	"gorm.io/gorm"
)

const DefaultTTL = 30 * 24 * time.Hour

// ErrInactive is returned when a token's session was revoked or expired.
var ErrInactive = errors.New("session is no longer active")

// Store issues JWTs backed by user_sessions rows.
type Store struct {
	db     *gorm.DB
	signer *jwtpkg.Signer
}

func NewStore(db *gorm.DB, signer *jwtpkg.Signer) *Store {
	return &Store{db: db, signer: signer}
}

// Issue creates a DB session and signs a JWT bound to that session.
func (s *Store) Issue(userID, ip, ua string, ttl time.Duration) (string, *models.UserSession, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	sess := &models.UserSession{
		UserID:    userID,
		IP:        strings.TrimSpace(ip),
		UA:        strings.TrimSpace(ua),
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.db.Create(sess).Error; err != nil {
		return "", nil, err
	}

	token, err := s.signer.Sign(userID, sess.ID, ttl)
	if err != nil {
		_ = s.db.Delete(sess).Error
		return "", nil, err
	}
	return token, sess, nil
}

// Validate parses token and checks that its session is still active.
func (s *Store) Validate(token string) (*jwtpkg.Claims, error) {
	claims, err := s.signer.Parse(token)
	if err != nil {
		return nil, err
	}
	ok, err := s.IsActive(claims.UserID, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !ok {
		return nil, ErrInactive
	}
	return claims, nil
}

func (s *Store) IsActive(userID, sessionID string) (bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return false, nil
	}
	var count int64
	err := s.db.Model(&models.UserSession{}).
		Where("id = ? AND user_id = ? AND revoked_at IS NULL AND expires_at > ?", sessionID, userID, time.Now()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) Touch(userID, sessionID string) {
	_ = s.db.Model(&models.UserSession{}).
		Where("id = ? AND user_id = ? AND revoked_at IS NULL", sessionID, userID).
		Update("updated_at", time.Now()).Error
}

func (s *Store) Revoke(userID, sessionID string) error {
	now := time.Now()
	res := s.db.Model(&models.UserSession{}).
		Where("id = ? AND user_id = ? AND revoked_at IS NULL", sessionID, userID).
		Update("revoked_at", &now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RevokeAllExcept revokes every active session of userID but keep.
func (s *Store) RevokeAllExcept(userID, keep string) error {
	now := time.Now()
	query := s.db.Model(&models.UserSession{}).
		Where("user_id = ? AND revoked_at IS NULL", userID)
	if strings.TrimSpace(keep) != "" {
		query = query.Where("id <> ?", keep)
	}
	return query.Update("revoked_at", &now).Error
}

// Purge deletes expired or revoked sessions and returns how many were removed.
func (s *Store) Purge(now time.Time) (int64, error) {
	res := s.db.Where("expires_at <= ? OR revoked_at IS NOT NULL", now).Delete(&models.UserSession{})
	return res.RowsAffected, res.Error
}

// ListActive returns the live sessions of userID, newest first.
func (s *Store) ListActive(userID string) ([]models.UserSession, error) {
	var sessions []models.UserSession
	err := s.db.Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, time.Now()).
		Order("created_at DESC").Find(&sessions).Error
	return sessions, err
}
