package favorite

import (
	"errors"

	"github.com/mx-space/wiki/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrPostNotFound = errors.New("post not found")

type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, logger: logger.Named("FavoriteService")}
}

// Toggle adds the post to the user's favorites, or removes it when it is
// already there. It reports the resulting state.
func (s *Service) Toggle(userID, postID string, isAdmin bool) (bool, error) {
	var favorited bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.FavoriteModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}

		var n int64
		err := tx.Model(&models.PostModel{}).Scopes(models.VisibleTo(isAdmin)).
			Where("id = ?", postID).Count(&n).Error
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrPostNotFound
		}
		favorited = true
		return tx.Create(&models.FavoriteModel{UserID: userID, PostID: postID}).Error
	})
	return favorited, err
}

// List returns the user's favorite posts, most recently added first.
func (s *Service) List(userID string, isAdmin bool) ([]models.PostModel, error) {
	var posts []models.PostModel
	err := s.db.Model(&models.PostModel{}).
		Joins("JOIN user_favorites ON user_favorites.post_id = wiki_posts.id").
		Where("user_favorites.user_id = ?", userID).
		Scopes(models.VisibleTo(isAdmin)).
		Order("user_favorites.created_at DESC").
		Find(&posts).Error
	return posts, err
}

// IDs returns the ids of the user's favorite posts.
func (s *Service) IDs(userID string) ([]string, error) {
	var ids []string
	err := s.db.Model(&models.FavoriteModel{}).Where("user_id = ?", userID).Pluck("post_id", &ids).Error
	return ids, err
}
