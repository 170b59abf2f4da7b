package dashboard

import (
	"context"
	"time"

	"github.com/mx-space/wiki/internal/models"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	topLimit    = 5
	recentLimit = 5
	titleRunes  = 15
)

type Totals struct {
	Posts    int64 `json:"posts"`
	Views    int64 `json:"views"`
	Users    int64 `json:"users"`
	Comments int64 `json:"comments"`
}

type TopPost struct {
	ID        string `json:"id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	FullTitle string `json:"full_title"`
	Views     int    `json:"views"`
}

type RecentUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

type Overview struct {
	Totals      Totals       `json:"totals"`
	TopPosts    []TopPost    `json:"top_posts"`
	RecentUsers []RecentUser `json:"recent_users"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Overview runs every aggregate concurrently.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	var (
		out   Overview
		top   []models.PostModel
		users []models.ProfileModel
	)
	g, ctx := errgroup.WithContext(ctx)
	db := s.db.WithContext(ctx)

	g.Go(func() error {
		return db.Model(&models.PostModel{}).Count(&out.Totals.Posts).Error
	})
	g.Go(func() error {
		return db.Model(&models.PostModel{}).Select("COALESCE(SUM(views), 0)").Scan(&out.Totals.Views).Error
	})
	g.Go(func() error {
		return db.Model(&models.ProfileModel{}).Count(&out.Totals.Users).Error
	})
	g.Go(func() error {
		return db.Model(&models.CommentModel{}).Count(&out.Totals.Comments).Error
	})
	g.Go(func() error {
		return db.Select("id, slug, title, views").Order("views DESC, created_at ASC").Limit(topLimit).Find(&top).Error
	})
	g.Go(func() error {
		return db.Order("created_at DESC").Limit(recentLimit).Find(&users).Error
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.TopPosts = make([]TopPost, len(top))
	for i, p := range top {
		out.TopPosts[i] = TopPost{ID: p.ID, Slug: p.Slug, Name: Truncate(p.Title, titleRunes), FullTitle: p.Title, Views: p.Views}
	}
	out.RecentUsers = make([]RecentUser, len(users))
	for i, u := range users {
		out.RecentUsers[i] = RecentUser{ID: u.ID, Username: u.Username, Role: u.Role, AvatarURL: u.AvatarURL, CreatedAt: u.CreatedAt}
	}
	return &out, nil
}

// Truncate cuts s to n runes and marks the cut with "...".
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
