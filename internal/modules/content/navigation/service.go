package navigation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mx-space/wiki/internal/models"
	"github.com/mx-space/wiki/internal/modules/reader"
	"github.com/mx-space/wiki/internal/pkg/filetree"
	"github.com/mx-space/wiki/internal/pkg/palette"
	"github.com/mx-space/wiki/internal/pkg/redis"
	"github.com/mx-space/wiki/internal/pkg/wikilink"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

// TrendingKey caches the home page trending list.
const TrendingKey = "wiki:trending"

const (
	trendingTTL   = 2 * time.Hour
	trendingLimit = 5
	favoriteLimit = 6
	historyLimit  = 5
)

// Summary is the list projection of a post.
type Summary struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Slug   string   `json:"slug"`
	Folder string   `json:"folder"`
	Tags   []string `json:"tags"`
	Views  int      `json:"views"`
}

func toSummary(p *models.PostModel) Summary {
	tags := []string(p.Tags)
	if tags == nil {
		tags = []string{}
	}
	return Summary{ID: p.ID, Title: p.Title, Slug: p.Slug, Folder: p.Folder, Tags: tags, Views: p.Views}
}

// Hit is a palette search result.
type Hit struct {
	Summary
	MatchedOn palette.Field     `json:"matched_on"`
	Snippet   string            `json:"snippet"`
	TitleHL   []palette.Segment `json:"title_highlight"`
	Excerpt   []palette.Segment `json:"excerpt"`
}

// OutLink is a wiki-link found in a post and whether its target exists.
type OutLink struct {
	Target  string `json:"target"`
	Display string `json:"display"`
	Slug    string `json:"slug"`
	Exists  bool   `json:"exists"`
}

// Home is the landing page payload.
type Home struct {
	Trending  []Summary      `json:"trending"`
	Favorites []Summary      `json:"favorites"`
	History   []reader.Entry `json:"history"`
}

// HistoryReader reads a user's reading history.
type HistoryReader interface {
	History(ctx context.Context, userID string) []reader.Entry
}

// Options tunes the navigation views.
type Options struct {
	DefaultFolder string
	PaletteLimit  int
	Locale        language.Tag
}

// Service builds read-only views over the post collection.
type Service struct {
	db      *gorm.DB
	kv      redis.KV
	history HistoryReader
	opts    Options
	logger  *zap.Logger
}

func NewService(db *gorm.DB, kv redis.KV, history HistoryReader, opts Options, logger *zap.Logger) *Service {
	if opts.PaletteLimit <= 0 {
		opts.PaletteLimit = palette.DefaultLimit
	}
	if opts.Locale == language.Und {
		opts.Locale = language.French
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, kv: kv, history: history, opts: opts, logger: logger.Named("NavigationService")}
}

// Tree groups the posts visible to the caller into the folder tree.
func (s *Service) Tree(isAdmin bool) (*filetree.Node, error) {
	var posts []models.PostModel
	err := s.db.Model(&models.PostModel{}).
		Select("id", "slug", "title", "folder").
		Scopes(models.VisibleTo(isAdmin)).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}

	entries := make([]filetree.Entry, len(posts))
	for i, p := range posts {
		entries[i] = filetree.Entry{ID: p.ID, Slug: p.Slug, Title: p.Title, Folder: p.Folder}
	}
	return filetree.Build(entries, filetree.Options{
		DefaultFolder: s.opts.DefaultFolder,
		Locale:        s.opts.Locale,
	}), nil
}

// Search runs the palette filter over the posts visible to the caller.
func (s *Service) Search(query string, limit int, isAdmin bool) ([]Hit, error) {
	if limit <= 0 || limit > s.opts.PaletteLimit {
		limit = s.opts.PaletteLimit
	}
	var posts []models.PostModel
	if err := s.db.Scopes(models.VisibleTo(isAdmin)).Order("title").Find(&posts).Error; err != nil {
		return nil, err
	}

	docs := make([]palette.Doc, len(posts))
	byID := make(map[string]*models.PostModel, len(posts))
	for i := range posts {
		p := &posts[i]
		docs[i] = palette.Doc{ID: p.ID, Slug: p.Slug, Title: p.Title, Folder: p.Folder, Tags: p.Tags, Content: p.Content}
		byID[p.ID] = p
	}

	results := palette.Search(query, docs, limit)
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{
			Summary:   toSummary(byID[r.Doc.ID]),
			MatchedOn: r.MatchedOn,
			Snippet:   r.Snippet,
			TitleHL:   r.Title,
			Excerpt:   r.Excerpt,
		}
	}
	return hits, nil
}

// Backlinks returns the posts that link to post, excluding itself.
func (s *Service) Backlinks(post *models.PostModel, isAdmin bool) ([]Summary, error) {
	var candidates []models.PostModel
	err := s.db.Scopes(models.VisibleTo(isAdmin)).
		Where("id <> ?", post.ID).
		Where("content LIKE ?", "%[[%").
		Order("title").
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	out := []Summary{}
	for i := range candidates {
		if wikilink.References(candidates[i].Content, post.Title) {
			out = append(out, toSummary(&candidates[i]))
		}
	}
	return out, nil
}

// Links lists the distinct wiki-links of post with an exists flag for
// each target, so broken links can be reported.
func (s *Service) Links(post *models.PostModel, isAdmin bool) ([]OutLink, error) {
	targets := wikilink.Targets(post.Content)
	out := make([]OutLink, len(targets))
	if len(targets) == 0 {
		return out, nil
	}

	slugs := make([]string, len(targets))
	for i, t := range targets {
		slugs[i] = t.Slug
	}
	var found []string
	err := s.db.Model(&models.PostModel{}).
		Scopes(models.VisibleTo(isAdmin)).
		Where("slug IN ?", slugs).
		Pluck("slug", &found).Error
	if err != nil {
		return nil, err
	}
	exists := make(map[string]bool, len(found))
	for _, slug := range found {
		exists[slug] = true
	}

	for i, t := range targets {
		out[i] = OutLink{Target: t.Target, Display: t.Display, Slug: t.Slug, Exists: exists[t.Slug]}
	}
	return out, nil
}

// Home gathers trending posts and, for signed-in users, their favorites
// and recent reads.
func (s *Service) Home(ctx context.Context, userID string, isAdmin bool) (*Home, error) {
	trending, err := s.Trending(ctx)
	if err != nil {
		return nil, err
	}
	home := &Home{Trending: trending, Favorites: []Summary{}, History: []reader.Entry{}}
	if userID == "" {
		return home, nil
	}

	var favs []models.PostModel
	err = s.db.Model(&models.PostModel{}).
		Joins("JOIN user_favorites ON user_favorites.post_id = wiki_posts.id").
		Where("user_favorites.user_id = ?", userID).
		Scopes(models.VisibleTo(isAdmin)).
		Order("user_favorites.created_at DESC").
		Limit(favoriteLimit).
		Find(&favs).Error
	if err != nil {
		return nil, err
	}
	for i := range favs {
		home.Favorites = append(home.Favorites, toSummary(&favs[i]))
	}

	if s.history != nil {
		hist := s.history.History(ctx, userID)
		if len(hist) > historyLimit {
			hist = hist[:historyLimit]
		}
		home.History = hist
	}
	return home, nil
}

// Trending returns the most viewed public posts, from cache when warm.
func (s *Service) Trending(ctx context.Context) ([]Summary, error) {
	if s.kv != nil {
		if raw, err := s.kv.Get(ctx, TrendingKey); err == nil && raw != "" {
			var cached []Summary
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return cached, nil
			}
		}
	}
	return s.RefreshTrending(ctx)
}

// RefreshTrending recomputes the trending list and stores it in cache.
func (s *Service) RefreshTrending(ctx context.Context) ([]Summary, error) {
	var posts []models.PostModel
	err := s.db.WithContext(ctx).
		Select("id", "title", "slug", "folder", "tags", "views").
		Where("is_public = ?", true).
		Order("views DESC").Order("title").
		Limit(trendingLimit).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	out := make([]Summary, len(posts))
	for i := range posts {
		out[i] = toSummary(&posts[i])
	}

	if s.kv != nil {
		raw, _ := json.Marshal(out)
		if err := s.kv.Set(ctx, TrendingKey, string(raw), trendingTTL); err != nil {
			s.logger.Warn("cache trending failed", zap.Error(err))
		}
	}
	return out, nil
}

// InvalidateTrending drops the cached trending list. Writers call it when a
// post leaves the public set or its summary changes.
func InvalidateTrending(ctx context.Context, kv redis.KV) error {
	if kv == nil {
		return nil
	}
	return kv.Del(ctx, TrendingKey)
}

// BySlug fetches a post visible to the caller, or nil.
func (s *Service) BySlug(slug string, isAdmin bool) (*models.PostModel, error) {
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
