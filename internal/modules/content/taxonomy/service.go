package taxonomy

import (
	"errors"
	"sort"
	"strings"

	"github.com/mx-space/wiki/internal/models"
	"github.com/mx-space/wiki/internal/modules/gateway/notify"
	"github.com/mx-space/wiki/internal/pkg/filetree"
	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

var (
	ErrEmptyName = errors.New("name cannot be empty")
	ErrSameName  = errors.New("new name equals the old one")
)

// Count is a tag or folder with the number of posts using it.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Batch reports how many posts a global rename or delete touched.
type Batch struct {
	Affected int `json:"affected"`
}

// Service manages tags and folders across every post.
type Service struct {
	db            *gorm.DB
	notifier      notify.Notifier
	defaultFolder string
	locale        language.Tag
	logger        *zap.Logger
}

func NewService(db *gorm.DB, notifier notify.Notifier, defaultFolder string, logger *zap.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if strings.TrimSpace(defaultFolder) == "" {
		defaultFolder = filetree.DefaultFolder
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:            db,
		notifier:      notifier,
		defaultFolder: defaultFolder,
		locale:        language.French,
		logger:        logger.Named("TaxonomyService"),
	}
}

// Tags counts the tags of the posts visible to the caller.
func (s *Service) Tags(isAdmin bool) ([]Count, error) {
	var posts []models.PostModel
	if err := s.db.Select("id", "tags").Scopes(models.VisibleTo(isAdmin)).Find(&posts).Error; err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, p := range posts {
		for _, t := range models.NormalizeTags(p.Tags) {
			counts[t]++
		}
	}
	return s.sorted(counts), nil
}

// Folders counts posts per folder. Posts without a folder are reported
// under the default folder.
func (s *Service) Folders(isAdmin bool) ([]Count, error) {
	var posts []models.PostModel
	if err := s.db.Select("id", "folder").Scopes(models.VisibleTo(isAdmin)).Find(&posts).Error; err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, p := range posts {
		f := filetree.NormalizePath(p.Folder)
		if f == "" {
			f = s.defaultFolder
		}
		counts[f]++
	}
	return s.sorted(counts), nil
}

// RenameTag replaces from with to on every post. Posts that already carry
// to end up with a single copy.
func (s *Service) RenameTag(from, to string) (Batch, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return Batch{}, ErrEmptyName
	}
	if from == to {
		return Batch{}, ErrSameName
	}
	return s.rewriteTags(from, func(tags models.StringArray) models.StringArray {
		out := make([]string, len(tags))
		for i, t := range tags {
			if t == from {
				t = to
			}
			out[i] = t
		}
		return models.NormalizeTags(out)
	})
}

// DeleteTag removes tag from every post.
func (s *Service) DeleteTag(tag string) (Batch, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return Batch{}, ErrEmptyName
	}
	return s.rewriteTags(tag, func(tags models.StringArray) models.StringArray {
		out := models.StringArray{}
		for _, t := range tags {
			if t != tag {
				out = append(out, t)
			}
		}
		return out
	})
}

func (s *Service) rewriteTags(tag string, rewrite func(models.StringArray) models.StringArray) (Batch, error) {
	var batch Batch
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var posts []models.PostModel
		if err := tx.Select("id", "tags").Scopes(models.WithTag(tag)).Find(&posts).Error; err != nil {
			return err
		}
		for _, p := range posts {
			if !p.Tags.Has(tag) {
				continue
			}
			err := tx.Model(&models.PostModel{}).Where("id = ?", p.ID).
				Update("tags", rewrite(p.Tags)).Error
			if err != nil {
				return err
			}
			batch.Affected++
		}
		return nil
	})
	if err != nil {
		return Batch{}, err
	}
	s.announce(batch)
	return batch, nil
}

// RenameFolder moves from and every folder below it under to.
func (s *Service) RenameFolder(from, to string) (Batch, error) {
	from, to = filetree.NormalizePath(from), filetree.NormalizePath(to)
	if from == "" || to == "" {
		return Batch{}, ErrEmptyName
	}
	if from == to {
		return Batch{}, ErrSameName
	}

	var batch Batch
	err := s.db.Transaction(func(tx *gorm.DB) error {
		q := tx.Select("id", "folder").Scopes(models.InFolder(from))
		if from == s.defaultFolder {
			q = q.Or("folder = ?", "")
		}
		var posts []models.PostModel
		if err := q.Find(&posts).Error; err != nil {
			return err
		}
		for _, p := range posts {
			current := filetree.NormalizePath(p.Folder)
			if current == "" {
				current = s.defaultFolder
			}
			moved := to + strings.TrimPrefix(current, from)
			err := tx.Model(&models.PostModel{}).Where("id = ?", p.ID).Update("folder", moved).Error
			if err != nil {
				return err
			}
			batch.Affected++
		}
		return nil
	})
	if err != nil {
		return Batch{}, err
	}
	s.announce(batch)
	return batch, nil
}

func (s *Service) announce(b Batch) {
	if b.Affected == 0 {
		return
	}
	s.logger.Info("taxonomy batch applied", zap.Int("affected", b.Affected))
	s.notifier.Broadcast(notify.EventPostUpdate, b, notify.RoomAll)
}

func (s *Service) sorted(counts map[string]int) []Count {
	out := make([]Count, 0, len(counts))
	for name, n := range counts {
		out = append(out, Count{Name: name, Count: n})
	}
	c := collate.New(s.locale, collate.IgnoreCase)
	sort.Slice(out, func(i, j int) bool {
		if r := c.CompareString(out[i].Name, out[j].Name); r != 0 {
			return r < 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}
