package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"powersense/internal/models"
	"powersense/internal/repository"
)

var (
	ErrUnknownAvatar   = errors.New("avatar is not in the catalogue")
	ErrInvalidSettings = errors.New("invalid settings")
)

// avatarURLs is the built-in avatar catalogue.
var avatarURLs = []string{
	"https://i.postimg.cc/KcM7DxLJ/boy-1.png",
	"https://i.postimg.cc/9fgPJfJN/girl-1.png",
	"https://i.postimg.cc/pLZJ5C8v/boy-2.png",
	"https://i.postimg.cc/QtRQZyLQ/girl-2.png",
	"https://i.postimg.cc/yN8XmRXZ/boy-3.png",
	"https://i.postimg.cc/wMLhqQHS/girl-3.png",
}

type ProfileService struct {
	users    repository.Authorization
	profiles repository.ProfileRepo
	settings repository.SettingsRepo
}

func NewProfileService(users repository.Authorization, profiles repository.ProfileRepo, settings repository.SettingsRepo) *ProfileService {
	return &ProfileService{users: users, profiles: profiles, settings: settings}
}

// GetProfile returns the stored profile, or a bare one built from the account.
func (s *ProfileService) GetProfile(ctx context.Context, userID int) (models.UserProfile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return models.UserProfile{}, err
	}
	if p != nil {
		return *p, nil
	}
	return s.bareProfile(userID)
}

func (s *ProfileService) bareProfile(userID int) (models.UserProfile, error) {
	u, err := s.users.GetByID(userID)
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("load user %d: %w", userID, err)
	}
	if u == nil {
		return models.UserProfile{}, ErrUserNotFound
	}
	return models.UserProfile{UID: u.ID, Email: u.Email}, nil
}

func (s *ProfileService) SaveProfile(ctx context.Context, userID int, in ProfileParams) (models.UserProfile, error) {
	p, err := s.GetProfile(ctx, userID)
	if err != nil {
		return models.UserProfile{}, err
	}
	p.FullName = strings.TrimSpace(in.FullName)
	p.Username = strings.TrimSpace(in.Username)
	p.Phone = strings.TrimSpace(in.Phone)
	if err := s.profiles.Save(ctx, p); err != nil {
		return models.UserProfile{}, err
	}
	return p, nil
}

// UpdateAvatar sets the profile image. If the profile document does not
// exist yet it is created with the avatar.
func (s *ProfileService) UpdateAvatar(ctx context.Context, userID int, url string) (models.UserProfile, error) {
	if !isCatalogueAvatar(url) {
		return models.UserProfile{}, ErrUnknownAvatar
	}

	err := s.profiles.UpdateImage(ctx, userID, url)
	if errors.Is(err, repository.ErrNotFound) {
		p, berr := s.bareProfile(userID)
		if berr != nil {
			return models.UserProfile{}, berr
		}
		p.ProfileImageURL = url
		if err := s.profiles.Save(ctx, p); err != nil {
			return models.UserProfile{}, err
		}
		return p, nil
	}
	if err != nil {
		return models.UserProfile{}, err
	}
	return s.GetProfile(ctx, userID)
}

func (s *ProfileService) Avatars() []string {
	out := make([]string, len(avatarURLs))
	copy(out, avatarURLs)
	return out
}

func isCatalogueAvatar(url string) bool {
	for _, a := range avatarURLs {
		if a == url {
			return true
		}
	}
	return false
}

func (s *ProfileService) GetSettings(ctx context.Context, userID int) (models.Settings, error) {
	return s.settings.Get(ctx, userID)
}

func (s *ProfileService) SaveSettings(ctx context.Context, in models.Settings) (models.Settings, error) {
	if err := validateSettings(in); err != nil {
		return models.Settings{}, err
	}
	if err := s.settings.Save(ctx, in); err != nil {
		return models.Settings{}, err
	}
	return in, nil
}

func validateSettings(s models.Settings) error {
	switch s.Theme {
	case models.ThemeLight, models.ThemeDark, models.ThemeSystem:
	default:
		return fmt.Errorf("%w: theme %q", ErrInvalidSettings, s.Theme)
	}
	if s.CostPerKwh < 0 || math.IsNaN(s.CostPerKwh) || math.IsInf(s.CostPerKwh, 0) {
		return fmt.Errorf("%w: cost per kWh must be a non-negative number", ErrInvalidSettings)
	}
	if s.SummaryIntervalHours < 1 || s.SummaryIntervalHours > 168 {
		return fmt.Errorf("%w: summary interval must be between 1 and 168 hours", ErrInvalidSettings)
	}
	return nil
}
