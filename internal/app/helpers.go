package app

import (
	"time"

	"github.com/mx-space/wiki/internal/models"
	"github.com/mx-space/wiki/internal/modules/gateway/gateway"
	"github.com/mx-space/wiki/internal/pkg/session"
	"gorm.io/gorm"
)

// adminChecker lets the realtime hub admit a socket to the admin namespace
// only when its token belongs to an active admin session.
func adminChecker(db *gorm.DB, sessions *session.Store) gateway.AdminChecker {
	return func(token string) bool {
		claims, err := sessions.Validate(token)
		if err != nil {
			return false
		}
		var p models.ProfileModel
		if err := db.Select("role").Where("id = ?", claims.UserID).First(&p).Error; err != nil {
			return false
		}
		return p.Role == models.RoleAdmin
	}
}

func humanizeDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Truncate(time.Second).String()
	}
	if d < time.Hour {
		return d.Truncate(time.Minute).String()
	}
	if d < 24*time.Hour {
		return d.Truncate(time.Hour).String()
	}
	return d.Truncate(24 * time.Hour).String()
}
