package models

// CommentModel is a reader comment on a post.
type CommentModel struct {
	Base
	PostID  string        `json:"post_id"          gorm:"type:char(36);index;not null"`
	UserID  string        `json:"user_id"          gorm:"type:char(36);index;not null"`
	Content string        `json:"content"          gorm:"type:text;not null"`
	Author  *ProfileModel `json:"author,omitempty" gorm:"foreignKey:UserID"`
}

func (CommentModel) TableName() string { return "comments" }
