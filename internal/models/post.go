package models

import (
	"strings"

	"gorm.io/gorm"
)

// PostModel is a wiki article. Folder is a slash separated path, empty for
// the default bucket.
type PostModel struct {
	Base
	Title    string      `json:"title"     gorm:"not null"`
	Slug     string      `json:"slug"      gorm:"size:191;uniqueIndex;not null"`
	Folder   string      `json:"folder"    gorm:"size:191;index"`
	Tags     StringArray `json:"tags"      gorm:"type:text"`
	Content  string      `json:"content"`
	IsPublic bool        `json:"is_public" gorm:"default:false;index"`
	Views    int         `json:"views"     gorm:"default:0;index"`
}

func (PostModel) TableName() string { return "wiki_posts" }

// PostVersion is an append-only snapshot of a post's title and content as
// they were before an update.
type PostVersion struct {
	Base
	PostID  string `json:"post_id" gorm:"type:char(36);index;not null"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (PostVersion) TableName() string { return "wiki_versions" }

// VisibleTo limits a post query to public posts unless the caller is an
// admin.
func VisibleTo(isAdmin bool) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if isAdmin {
			return tx
		}
		return tx.Where("wiki_posts.is_public = ?", true)
	}
}

// WithTag limits a post query to posts carrying tag.
func WithTag(tag string) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		quoted, _ := StringArray{tag}.Value()
		needle := strings.TrimSuffix(strings.TrimPrefix(quoted.(string), "["), "]")
		return tx.Where("wiki_posts.tags LIKE ? ESCAPE '!'", "%"+EscapeLike(needle)+"%")
	}
}

// InFolder limits a post query to folder and its descendants.
func InFolder(folder string) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where("(wiki_posts.folder = ? OR wiki_posts.folder LIKE ? ESCAPE '!')",
			folder, EscapeLike(folder)+"/%")
	}
}

// EscapeLike escapes s for a LIKE pattern declared with ESCAPE '!'.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
