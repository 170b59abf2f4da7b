package comment

import (
	"errors"
	"strings"

	"github.com/mx-space/wiki/internal/models"
	"github.com/mx-space/wiki/internal/modules/gateway/notify"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const MaxLength = 4000

var (
	ErrPostNotFound = errors.New("post not found")
	ErrEmpty        = errors.New("comment is empty")
	ErrTooLong      = errors.New("comment is too long")
	ErrForbidden    = errors.New("only the author or an admin can delete this comment")
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
	return &Service{db: db, notifier: notifier, logger: logger.Named("CommentService")}
}

// List returns the comments of a post oldest first, with their authors.
func (s *Service) List(postID string) ([]models.CommentModel, error) {
	var comments []models.CommentModel
	err := s.db.Preload("Author", func(tx *gorm.DB) *gorm.DB {
		return tx.Select("id", "username", "role", "avatar_url")
	}).
		Where("post_id = ?", postID).
		Order("created_at ASC").Order("id").
		Find(&comments).Error
	return comments, err
}

// Create posts a comment as userID on a post visible to the caller.
func (s *Service) Create(postID, userID, content string, isAdmin bool) (*models.CommentModel, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmpty
	}
	if len([]rune(content)) > MaxLength {
		return nil, ErrTooLong
	}

	var n int64
	err := s.db.Model(&models.PostModel{}).Scopes(models.VisibleTo(isAdmin)).
		Where("id = ?", postID).Count(&n).Error
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrPostNotFound
	}

	c := models.CommentModel{PostID: postID, UserID: userID, Content: content}
	if err := s.db.Create(&c).Error; err != nil {
		return nil, err
	}

	var author models.ProfileModel
	if err := s.db.Select("id", "username", "role", "avatar_url").First(&author, "id = ?", userID).Error; err == nil {
		c.Author = &author
	}

	s.broadcast(notify.EventCommentCreate, &c)
	return &c, nil
}

// Delete removes a comment. Only its author or an admin may do so.
func (s *Service) Delete(id, userID string, isAdmin bool) error {
	var c models.CommentModel
	if err := s.db.First(&c, "id = ?", id).Error; err != nil {
		return err
	}
	if c.UserID != userID && !isAdmin {
		return ErrForbidden
	}
	if err := s.db.Delete(&models.CommentModel{}, "id = ?", id).Error; err != nil {
		return err
	}
	s.broadcast(notify.EventCommentDelete, &c)
	return nil
}

func (s *Service) broadcast(event string, c *models.CommentModel) {
	payload := toResponse(c)
	s.notifier.Broadcast(event, payload, notify.PostRoom(c.PostID))
	s.notifier.Broadcast(event, payload, notify.RoomAdmin)
}
