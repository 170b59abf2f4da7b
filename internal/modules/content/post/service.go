package post

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mx-space/wiki/internal/models"
	"github.com/mx-space/wiki/internal/modules/content/navigation"
	"github.com/mx-space/wiki/internal/modules/gateway/notify"
	"github.com/mx-space/wiki/internal/modules/reader"
	"github.com/mx-space/wiki/internal/pkg/filetree"
	"github.com/mx-space/wiki/internal/pkg/pagination"
	"github.com/mx-space/wiki/internal/pkg/redis"
	"github.com/mx-space/wiki/internal/pkg/response"
	"github.com/mx-space/wiki/internal/pkg/wikilink"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const viewWindow = 30 * time.Minute

var (
	ErrSlugTaken   = errors.New("slug already in use")
	ErrEmptySlug   = errors.New("slug cannot be derived from title")
	ErrNotFound    = errors.New("post not found")
	ErrWrongParent = errors.New("version belongs to another post")
)

// History is the reading-history store posts feed on view and clean on
// delete.
type History interface {
	Push(ctx context.Context, userID string, e reader.Entry) error
	RemovePost(ctx context.Context, postID string) error
}

// Service handles post business logic.
type Service struct {
	db       *gorm.DB
	kv       redis.KV
	notifier notify.Notifier
	history  History
	logger   *zap.Logger
}

func NewService(db *gorm.DB, kv redis.KV, notifier notify.Notifier, history History, logger *zap.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:       db,
		kv:       kv,
		notifier: notifier,
		history:  history,
		logger:   logger.Named("PostService"),
	}
}

// List returns a page of posts. Non-admins only see public posts.
func (s *Service) List(q pagination.Query, lq ListQuery, isAdmin bool) ([]models.PostModel, response.Pagination, error) {
	tx := s.db.Model(&models.PostModel{}).
		Omit("content").
		Scopes(models.VisibleTo(isAdmin))

	if folder := filetree.NormalizePath(lq.Folder); folder != "" {
		tx = tx.Scopes(models.InFolder(folder))
	}
	if tag := strings.TrimSpace(lq.Tag); tag != "" {
		tx = tx.Scopes(models.WithTag(tag))
	}
	if lq.Public != nil {
		tx = tx.Where("is_public = ?", *lq.Public)
	}

	switch lq.Sort {
	case "recent":
		tx = tx.Order("updated_at DESC")
	case "views":
		tx = tx.Order("views DESC").Order("title")
	default:
		tx = tx.Order("title")
	}

	var posts []models.PostModel
	pag, err := pagination.Paginate(tx, q, &posts)
	return posts, pag, err
}

// GetBySlug fetches a post by slug, or nil when it does not exist or is
// hidden from the caller.
func (s *Service) GetBySlug(slug string, isAdmin bool) (*models.PostModel, error) {
	var post models.PostModel
	err := s.db.Scopes(models.VisibleTo(isAdmin)).Where("slug = ?", slug).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// GetByID fetches a post by ID regardless of visibility.
func (s *Service) GetByID(id string) (*models.PostModel, error) {
	var post models.PostModel
	if err := s.db.First(&post, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

// Create inserts a post. The slug is derived from the title unless given.
func (s *Service) Create(dto *CreatePostDTO) (*models.PostModel, error) {
	slug := wikilink.Slugify(dto.Slug)
	if slug == "" {
		slug = wikilink.Slugify(dto.Title)
	}
	if slug == "" {
		return nil, ErrEmptySlug
	}

	post := models.PostModel{
		Title:    strings.TrimSpace(dto.Title),
		Slug:     slug,
		Folder:   filetree.NormalizePath(dto.Folder),
		Tags:     models.NormalizeTags(dto.Tags),
		Content:  dto.Content,
		IsPublic: true,
	}
	if dto.IsPublic != nil {
		post.IsPublic = *dto.IsPublic
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := ensureSlugFree(tx, slug, ""); err != nil {
			return err
		}
		return tx.Create(&post).Error
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Broadcast(notify.EventPostCreate, toResponse(&post, false), notify.RoomAll)
	return &post, nil
}

// Update applies dto to the post. When the content changes, the previous
// title and content are kept as a version in the same transaction. A title
// change re-derives the slug unless one is given explicitly.
func (s *Service) Update(ctx context.Context, id string, dto *UpdatePostDTO) (*models.PostModel, error) {
	var post models.PostModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&post, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		prev := post

		if dto.Title != nil {
			post.Title = strings.TrimSpace(*dto.Title)
		}
		if dto.Content != nil {
			post.Content = *dto.Content
		}
		if dto.Folder != nil {
			post.Folder = filetree.NormalizePath(*dto.Folder)
		}
		if dto.Tags != nil {
			post.Tags = models.NormalizeTags(dto.Tags)
		}
		if dto.IsPublic != nil {
			post.IsPublic = *dto.IsPublic
		}

		switch {
		case dto.Slug != nil && strings.TrimSpace(*dto.Slug) != "":
			post.Slug = wikilink.Slugify(*dto.Slug)
		case post.Title != prev.Title:
			post.Slug = wikilink.Slugify(post.Title)
		}
		if post.Slug == "" {
			return ErrEmptySlug
		}
		if post.Slug != prev.Slug {
			if err := ensureSlugFree(tx, post.Slug, post.ID); err != nil {
				return err
			}
		}

		if post.Content != prev.Content {
			snapshot := models.PostVersion{PostID: prev.ID, Title: prev.Title, Content: prev.Content}
			if err := tx.Create(&snapshot).Error; err != nil {
				return fmt.Errorf("snapshot version: %w", err)
			}
		}

		return tx.Model(&post).Select("title", "slug", "folder", "tags", "content", "is_public").
			Updates(&post).Error
	})
	if err != nil {
		return nil, err
	}

	s.dropTrending(ctx)

	s.notifier.Broadcast(notify.EventPostUpdate, toResponse(&post, false), notify.RoomAll)
	return &post, nil
}

// Delete removes a post with its versions, comments and favorites, then
// drops it from every reading history.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return DeleteCascade(tx, "id = ?", id)
	})
	if err != nil {
		return err
	}

	s.dropTrending(ctx)
	if s.history != nil {
		if err := s.history.RemovePost(ctx, id); err != nil {
			s.logger.Warn("clean reading history failed", zap.String("post", id), zap.Error(err))
		}
	}
	s.notifier.Broadcast(notify.EventPostDelete, map[string]string{"id": id}, notify.RoomAll)
	return nil
}

func (s *Service) dropTrending(ctx context.Context) {
	if err := navigation.InvalidateTrending(ctx, s.kv); err != nil {
		s.logger.Warn("invalidate trending failed", zap.Error(err))
	}
}

// DeleteCascade deletes the posts matched by query and everything that
// hangs off them. It returns ErrNotFound when nothing matched.
func DeleteCascade(tx *gorm.DB, query interface{}, args ...interface{}) error {
	var ids []string
	if err := tx.Model(&models.PostModel{}).Where(query, args...).Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return ErrNotFound
	}
	for _, dep := range []interface{}{&models.PostVersion{}, &models.CommentModel{}, &models.FavoriteModel{}} {
		if err := tx.Where("post_id IN ?", ids).Delete(dep).Error; err != nil {
			return err
		}
	}
	return tx.Where("id IN ?", ids).Delete(&models.PostModel{}).Error
}

// RecordView counts a view at most once per viewer per window and pushes
// the post onto the viewer's history. It reports whether views moved.
func (s *Service) RecordView(ctx context.Context, post *models.PostModel, viewer, userID string) (bool, error) {
	if s.history != nil && userID != "" {
		entry := reader.Entry{ID: post.ID, Title: post.Title, Slug: post.Slug, Folder: post.Folder}
		if err := s.history.Push(ctx, userID, entry); err != nil {
			s.logger.Warn("push reading history failed", zap.String("user", userID), zap.Error(err))
		}
	}

	if s.kv != nil {
		fresh, err := s.kv.SetNX(ctx, "wiki:views:"+post.ID+":"+viewer, "1", viewWindow)
		if err != nil {
			s.logger.Warn("view dedup unavailable", zap.Error(err))
		} else if !fresh {
			return false, nil
		}
	}

	res := s.db.Model(&models.PostModel{}).Where("id = ?", post.ID).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Versions lists the snapshots of a post, newest first.
func (s *Service) Versions(postID string) ([]models.PostVersion, error) {
	var versions []models.PostVersion
	err := s.db.Where("post_id = ?", postID).Order("created_at DESC").Order("id").Find(&versions).Error
	return versions, err
}

// Version fetches one snapshot of postID.
func (s *Service) Version(postID, versionID string) (*models.PostVersion, error) {
	var v models.PostVersion
	if err := s.db.First(&v, "id = ?", versionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if v.PostID != postID {
		return nil, ErrWrongParent
	}
	return &v, nil
}

func ensureSlugFree(tx *gorm.DB, slug, selfID string) error {
	q := tx.Model(&models.PostModel{}).Where("slug = ?", slug)
	if selfID != "" {
		q = q.Where("id <> ?", selfID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrSlugTaken
	}
	return nil
}
