package user

import (
	"time"

	"github.com/mx-space/wiki/internal/models"
)

// UpdateProfileDTO is the body of PATCH /profile. Absent fields are kept.
type UpdateProfileDTO struct {
	Username  *string `json:"username"   binding:"omitempty,min=3,max=64"`
	AvatarURL *string `json:"avatar_url" binding:"omitempty,max=512"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

func toResponse(p *models.ProfileModel) userResponse {
	return userResponse{
		ID:        p.ID,
		Username:  p.Username,
		Role:      p.Role,
		AvatarURL: p.AvatarURL,
		CreatedAt: p.CreatedAt,
	}
}
