package models

// Roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ProfileModel is a signed-up reader or editor.
type ProfileModel struct {
	Base
	Username  string `json:"username"   gorm:"size:64;uniqueIndex;not null"`
	Password  string `json:"-"          gorm:"not null"`
	AvatarURL string `json:"avatar_url"`
	Role      string `json:"role"       gorm:"size:16;default:user;not null"`
}

func (ProfileModel) TableName() string { return "profiles" }

// IsAdmin reports whether the profile carries the admin role.
func (p *ProfileModel) IsAdmin() bool { return p != nil && p.Role == RoleAdmin }
