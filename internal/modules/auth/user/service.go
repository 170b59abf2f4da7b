package user

import (
	"errors"
	"strings"

	"github.com/mx-space/wiki/internal/models"
	"github.com/mx-space/wiki/internal/modules/gateway/notify"
	"github.com/mx-space/wiki/internal/pkg/pagination"
	"github.com/mx-space/wiki/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("profile not found")
	ErrUsernameTaken = errors.New("username already taken")
	ErrSelf          = errors.New("admins cannot demote or delete themselves")
)

type Service struct {
	db       *gorm.DB
	notifier notify.Notifier
	logger   *zap.Logger
}

func NewService(db *gorm.DB, notifier notify.Notifier, logger *zap.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, notifier: notifier, logger: logger.Named("UserService")}
}

// GetByID returns the profile, or nil when it does not exist.
func (s *Service) GetByID(id string) (*models.ProfileModel, error) {
	var p models.ProfileModel
	if err := s.db.First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// UpdateProfile changes the username and/or avatar of id.
func (s *Service) UpdateProfile(id string, dto *UpdateProfileDTO) (*models.ProfileModel, error) {
	var p models.ProfileModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		updates := map[string]interface{}{}
		if dto.Username != nil {
			name := strings.TrimSpace(*dto.Username)
			if name != p.Username {
				var taken int64
				if err := tx.Model(&models.ProfileModel{}).
					Where("username = ? AND id <> ?", name, id).Count(&taken).Error; err != nil {
					return err
				}
				if taken > 0 {
					return ErrUsernameTaken
				}
			}
			updates["username"] = name
			p.Username = name
		}
		if dto.AvatarURL != nil {
			updates["avatar_url"] = strings.TrimSpace(*dto.AvatarURL)
			p.AvatarURL = strings.TrimSpace(*dto.AvatarURL)
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&p).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Broadcast(notify.EventProfileUpdate, toResponse(&p), notify.RoomAll)
	return &p, nil
}

// List pages through profiles, newest first, optionally filtered by a
// username substring.
func (s *Service) List(q pagination.Query, search string) ([]models.ProfileModel, response.Pagination, error) {
	query := s.db.Model(&models.ProfileModel{}).Order("created_at DESC")
	if search = strings.TrimSpace(search); search != "" {
		query = query.Where("username LIKE ? ESCAPE '!'", "%"+models.EscapeLike(search)+"%")
	}
	var profiles []models.ProfileModel
	pag, err := pagination.Paginate(query, q, &profiles)
	return profiles, pag, err
}

// ToggleRole flips target between user and admin.
func (s *Service) ToggleRole(actorID, targetID string) (*models.ProfileModel, error) {
	if actorID == targetID {
		return nil, ErrSelf
	}
	var p models.ProfileModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, "id = ?", targetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		p.Role = nextRole(p.Role)
		return tx.Model(&models.ProfileModel{}).Where("id = ?", targetID).Update("role", p.Role).Error
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("role changed", zap.String("actor", actorID), zap.String("target", targetID), zap.String("role", p.Role))
	s.notifier.Broadcast(notify.EventProfileUpdate, toResponse(&p), notify.RoomAdmin)
	return &p, nil
}

// Delete removes target together with its comments, favorites and
// sessions.
func (s *Service) Delete(actorID, targetID string) error {
	if actorID == targetID {
		return ErrSelf
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.ProfileModel{}).Where("id = ?", targetID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		for _, child := range []interface{}{&models.CommentModel{}, &models.FavoriteModel{}, &models.UserSession{}} {
			if err := tx.Where("user_id = ?", targetID).Delete(child).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", targetID).Delete(&models.ProfileModel{}).Error
	})
	if err != nil {
		return err
	}
	s.logger.Info("profile deleted", zap.String("actor", actorID), zap.String("target", targetID))
	return nil
}

func nextRole(role string) string {
	if role == models.RoleAdmin {
		return models.RoleUser
	}
	return models.RoleAdmin
}
