package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mx-space/wiki/internal/models"
	"github.com/mx-space/wiki/internal/modules/content/navigation"
	"github.com/mx-space/wiki/internal/modules/content/post"
	"github.com/mx-space/wiki/internal/modules/gateway/notify"
	"github.com/mx-space/wiki/internal/pkg/filetree"
	"github.com/mx-space/wiki/internal/pkg/redis"
	"github.com/mx-space/wiki/internal/pkg/wikilink"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const FormatVersion = "1.0"

var ErrInvalidFormat = errors.New("invalid backup document")

// Document is the portable JSON form of every post.
type Document struct {
	Version string             `json:"version"`
	Date    time.Time          `json:"date"`
	Posts   []models.PostModel `json:"posts"`
}

// Stats describes what an export would contain.
type Stats struct {
	Posts int64 `json:"posts"`
	Bytes int   `json:"bytes"`
}

type importedPost struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Folder    string    `json:"folder"`
	Tags      []string  `json:"tags"`
	Content   string    `json:"content"`
	IsPublic  *bool     `json:"is_public"`
	Views     int       `json:"views"`
	CreatedAt time.Time `json:"created_at"`
}

// Histories is the reading-history store emptied by a reset.
type Histories interface {
	ClearAll(ctx context.Context) error
}

type Service struct {
	db        *gorm.DB
	kv        redis.KV
	histories Histories
	notifier  notify.Notifier
	logger    *zap.Logger
	now       func() time.Time
}

// NewService builds the backup service. kv and histories may be nil when
// the caller has no cache, as in the CLI.
func NewService(db *gorm.DB, kv redis.KV, histories Histories, notifier notify.Notifier, logger *zap.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:        db,
		kv:        kv,
		histories: histories,
		notifier:  notifier,
		logger:    logger.Named("BackupService"),
		now:       time.Now,
	}
}

// FileName is the attachment name of an export taken at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("wiki-os-backup-%s.json", t.UTC().Format("2006-01-02"))
}

// Export snapshots every post, oldest first.
func (s *Service) Export() (*Document, error) {
	var posts []models.PostModel
	if err := s.db.Order("created_at ASC").Find(&posts).Error; err != nil {
		return nil, err
	}
	return &Document{Version: FormatVersion, Date: s.now().UTC(), Posts: posts}, nil
}

// WriteExport encodes an export to w and returns the document written.
func (s *Service) WriteExport(w io.Writer) (*Document, error) {
	doc, err := s.Export()
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return doc, enc.Encode(doc)
}

// Stats counts posts and measures the encoded export.
func (s *Service) Stats() (*Stats, error) {
	var buf bytes.Buffer
	doc, err := s.WriteExport(&buf)
	if err != nil {
		return nil, err
	}
	return &Stats{Posts: int64(len(doc.Posts)), Bytes: buf.Len()}, nil
}

// parse decodes a backup document. Only posts is required and it must be
// an array.
func parse(r io.Reader) ([]importedPost, error) {
	var raw struct {
		Posts json.RawMessage `json:"posts"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	trimmed := bytes.TrimSpace(raw.Posts)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrInvalidFormat
	}
	var posts []importedPost
	if err := json.Unmarshal(trimmed, &posts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return posts, nil
}

// Import upserts every post on its slug and returns how many were written.
// Existing posts keep their id; new ones keep the imported id when it is
// free.
func (s *Service) Import(ctx context.Context, r io.Reader) (int, error) {
	posts, err := parse(r)
	if err != nil {
		return 0, err
	}
	now := s.now()
	written := 0
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for i := range posts {
			ok, err := upsert(tx, &posts[i], now)
			if err != nil {
				return err
			}
			if ok {
				written++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("backup imported", zap.Int("posts", written), zap.Int("skipped", len(posts)-written))
	s.dropTrending(ctx)
	s.notifier.Broadcast(notify.EventPostUpdate, map[string]int{"imported": written}, notify.RoomAll)
	return written, nil
}

func upsert(tx *gorm.DB, in *importedPost, now time.Time) (bool, error) {
	slug := wikilink.Slugify(in.Slug)
	if slug == "" {
		slug = wikilink.Slugify(in.Title)
	}
	if slug == "" {
		return false, nil
	}
	isPublic := true
	if in.IsPublic != nil {
		isPublic = *in.IsPublic
	}
	fields := map[string]interface{}{
		"title":      strings.TrimSpace(in.Title),
		"folder":     filetree.NormalizePath(in.Folder),
		"tags":       models.NormalizeTags(in.Tags),
		"content":    in.Content,
		"is_public":  isPublic,
		"views":      in.Views,
		"updated_at": now,
	}

	var existing models.PostModel
	err := tx.Where("slug = ?", slug).First(&existing).Error
	switch {
	case err == nil:
		return true, tx.Model(&existing).Updates(fields).Error
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return false, err
	}

	p := models.PostModel{
		Title:    fields["title"].(string),
		Slug:     slug,
		Folder:   fields["folder"].(string),
		Tags:     fields["tags"].(models.StringArray),
		Content:  in.Content,
		IsPublic: isPublic,
		Views:    in.Views,
	}
	if in.ID != "" {
		var taken int64
		if err := tx.Model(&models.PostModel{}).Where("id = ?", in.ID).Count(&taken).Error; err != nil {
			return false, err
		}
		if taken == 0 {
			p.ID = in.ID
		}
	}
	if !in.CreatedAt.IsZero() {
		p.CreatedAt = in.CreatedAt
	}
	p.UpdatedAt = now
	return true, tx.Create(&p).Error
}

// Reset deletes every post and what hangs off it, then empties every
// reading history.
func (s *Service) Reset(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PostModel{}).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		return post.DeleteCascade(tx, "1 = 1")
	})
	if err != nil {
		return 0, err
	}
	s.logger.Warn("all posts deleted", zap.Int64("posts", n))
	s.dropTrending(ctx)
	if s.histories != nil {
		if err := s.histories.ClearAll(ctx); err != nil {
			s.logger.Warn("clear reading histories failed", zap.Error(err))
		}
	}
	s.notifier.Broadcast(notify.EventPostDelete, map[string]bool{"all": true}, notify.RoomAll)
	return n, nil
}

func (s *Service) dropTrending(ctx context.Context) {
	if err := navigation.InvalidateTrending(ctx, s.kv); err != nil {
		s.logger.Warn("invalidate trending failed", zap.Error(err))
	}
}
