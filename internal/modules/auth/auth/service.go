package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/mx-space/wiki/internal/models"
	sessionpkg "github.com/mx-space/wiki/internal/pkg/session"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// failedLoginDelay slows down password guessing.
const failedLoginDelay = 3 * time.Second

type Service struct {
	db       *gorm.DB
	sessions *sessionpkg.Store
	logger   *zap.Logger

	failDelay time.Duration
	cost      int
}

func NewService(db *gorm.DB, sessions *sessionpkg.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:        db,
		sessions:  sessions,
		logger:    logger.Named("AuthService"),
		failDelay: failedLoginDelay,
		cost:      bcrypt.DefaultCost,
	}
}

// Register creates a profile and signs it in. The very first profile
// becomes the admin; everyone after is a plain user.
func (s *Service) Register(dto *RegisterDTO, ip, ua string) (string, *models.ProfileModel, error) {
	username := strings.TrimSpace(dto.Username)
	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.cost)
	if err != nil {
		return "", nil, err
	}

	profile := models.ProfileModel{Username: username, Password: string(hash), Role: models.RoleUser}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.ProfileModel{}).Where("username = ?", username).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return ErrUsernameTaken
		}
		var total int64
		if err := tx.Model(&models.ProfileModel{}).Count(&total).Error; err != nil {
			return err
		}
		if total == 0 {
			profile.Role = models.RoleAdmin
		}
		return tx.Create(&profile).Error
	})
	if err != nil {
		return "", nil, err
	}

	token, _, err := s.sessions.Issue(profile.ID, ip, ua, sessionpkg.DefaultTTL)
	if err != nil {
		return "", nil, err
	}
	s.logger.Info("profile registered", zap.String("username", username), zap.String("role", profile.Role))
	return token, &profile, nil
}

// Login checks the password and opens a new session.
func (s *Service) Login(username, password, ip, ua string) (string, *models.ProfileModel, error) {
	var profile models.ProfileModel
	err := s.db.Where("username = ?", strings.TrimSpace(username)).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		time.Sleep(s.failDelay)
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(profile.Password), []byte(password)) != nil {
		time.Sleep(s.failDelay)
		return "", nil, ErrInvalidCredentials
	}

	token, _, err := s.sessions.Issue(profile.ID, ip, ua, sessionpkg.DefaultTTL)
	if err != nil {
		return "", nil, err
	}
	return token, &profile, nil
}

// Logout revokes the caller's session. An already revoked session is not
// an error.
func (s *Service) Logout(userID, sessionID string) error {
	err := s.sessions.Revoke(userID, sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

// Me returns the profile of userID, or nil.
func (s *Service) Me(userID string) (*models.ProfileModel, error) {
	var profile models.ProfileModel
	if err := s.db.First(&profile, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// ChangePassword replaces the password and signs out every other session.
func (s *Service) ChangePassword(userID, sessionID string, dto *ChangePasswordDTO) error {
	profile, err := s.Me(userID)
	if err != nil {
		return err
	}
	if profile == nil {
		return ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(profile.Password), []byte(dto.OldPassword)) != nil {
		return ErrWrongPassword
	}
	if dto.OldPassword == dto.NewPassword {
		return ErrSamePassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.NewPassword), s.cost)
	if err != nil {
		return err
	}
	if err := s.db.Model(&models.ProfileModel{}).Where("id = ?", userID).
		Update("password", string(hash)).Error; err != nil {
		return err
	}
	return s.sessions.RevokeAllExcept(userID, sessionID)
}

func (s *Service) Sessions(userID string) ([]models.UserSession, error) {
	return s.sessions.ListActive(userID)
}

func (s *Service) RevokeOtherSessions(userID, sessionID string) error {
	return s.sessions.RevokeAllExcept(userID, sessionID)
}
