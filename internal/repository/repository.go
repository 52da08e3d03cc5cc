package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"powersense/internal/models"
)

// ErrNotFound is returned when a row addressed by id does not exist.
var ErrNotFound = errors.New("not found")

type Authorization interface {
	Create(email, hash string) (int, error)
	GetByEmail(email string) (*models.User, error)
	GetByID(id int) (*models.User, error)
	UpdatePassword(id int, hash string) error
}

// RelayRepo is the document store for a user's switches.
type RelayRepo interface {
	List(ctx context.Context, ownerID int) ([]models.RelayDevice, error)
	Get(ctx context.Context, id string) (models.RelayDevice, error)
	Create(ctx context.Context, d models.RelayDevice) error
	Update(ctx context.Context, d models.RelayDevice) error
	Delete(ctx context.Context, ownerID int, id string) error
	SetOn(ctx context.Context, id string, on bool) error
	SetFavorite(ctx context.Context, id string, favorite bool) error
}

type ProfileRepo interface {
	Get(ctx context.Context, userID int) (*models.UserProfile, error)
	Save(ctx context.Context, p models.UserProfile) error
	UpdateImage(ctx context.Context, userID int, url string) error
}

type SettingsRepo interface {
	Get(ctx context.Context, userID int) (models.Settings, error)
	Save(ctx context.Context, s models.Settings) error
	ListAlerting(ctx context.Context) ([]models.Settings, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.Event) error
	List(ctx context.Context, ownerID int, from, to time.Time, typ string) ([]models.Event, error)
}

type Repository struct {
	Auth     Authorization
	Relays   RelayRepo
	Profiles ProfileRepo
	Settings SettingsRepo
	Events   EventRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Auth:     NewUserRepository(db),
		Relays:   NewRelaySQLite(db),
		Profiles: NewProfileSQLite(db),
		Settings: NewSettingsSQLite(db),
		Events:   NewEventSQLite(db),
	}
}
