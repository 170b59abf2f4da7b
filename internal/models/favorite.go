package models

import "time"

// FavoriteModel marks a post as favorited by a user. The pair is the key.
type FavoriteModel struct {
	UserID    string     `json:"user_id"        gorm:"type:char(36);primaryKey"`
	PostID    string     `json:"post_id"        gorm:"type:char(36);primaryKey;index"`
	CreatedAt time.Time  `json:"created_at"`
	Post      *PostModel `json:"post,omitempty" gorm:"foreignKey:PostID"`
}

func (FavoriteModel) TableName() string { return "user_favorites" }
