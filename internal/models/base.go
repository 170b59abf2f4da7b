package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base is embedded by every entity with its own identity. IDs are UUID
// strings so they stay stable across the supported SQL dialects.
type Base struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}

// All lists every model migrated at startup.
func All() []interface{} {
	return []interface{}{
		&ProfileModel{},
		&UserSession{},
		&PostModel{},
		&PostVersion{},
		&CommentModel{},
		&FavoriteModel{},
	}
}
