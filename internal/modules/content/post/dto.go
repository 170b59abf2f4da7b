package post

import (
	"time"

	"github.com/mx-space/wiki/internal/models"
)

// CreatePostDTO is the request body for creating a post.
type CreatePostDTO struct {
	Title    string   `json:"title"     binding:"required,max=200"`
	Slug     string   `json:"slug"      binding:"omitempty,max=191"`
	Folder   string   `json:"folder"    binding:"omitempty,folderpath"`
	Tags     []string `json:"tags"      binding:"omitempty,dive,tag"`
	Content  string   `json:"content"`
	IsPublic *bool    `json:"is_public"`
}

// UpdatePostDTO is the request body for updating a post. Absent fields are
// left unchanged.
type UpdatePostDTO struct {
	Title    *string  `json:"title"     binding:"omitempty,min=1,max=200"`
	Slug     *string  `json:"slug"      binding:"omitempty,max=191"`
	Folder   *string  `json:"folder"    binding:"omitempty,folderpath"`
	Tags     []string `json:"tags"      binding:"omitempty,dive,tag"`
	Content  *string  `json:"content"`
	IsPublic *bool    `json:"is_public"`
}

// ListQuery holds query params for listing posts.
type ListQuery struct {
	Folder string `form:"folder"`
	Tag    string `form:"tag"`
	Public *bool  `form:"public"`
	Sort   string `form:"sort" binding:"omitempty,oneof=title recent views"`
}

type postResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Folder    string    `json:"folder"`
	Tags      []string  `json:"tags"`
	Content   string    `json:"content,omitempty"`
	IsPublic  bool      `json:"is_public"`
	Views     int       `json:"views"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toResponse(p *models.PostModel, withContent bool) postResponse {
	tags := []string(p.Tags)
	if tags == nil {
		tags = []string{}
	}
	resp := postResponse{
		ID:        p.ID,
		Title:     p.Title,
		Slug:      p.Slug,
		Folder:    p.Folder,
		Tags:      tags,
		IsPublic:  p.IsPublic,
		Views:     p.Views,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if withContent {
		resp.Content = p.Content
	}
	return resp
}

type versionResponse struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toVersionResponse(v *models.PostVersion, withContent bool) versionResponse {
	resp := versionResponse{ID: v.ID, PostID: v.PostID, Title: v.Title, CreatedAt: v.CreatedAt}
	if withContent {
		resp.Content = v.Content
	}
	return resp
}
