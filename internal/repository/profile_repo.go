package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"powersense/internal/models"
)

type ProfileSQLite struct {
	db *sql.DB
}

func NewProfileSQLite(db *sql.DB) *ProfileSQLite {
	return &ProfileSQLite{db: db}
}

var _ ProfileRepo = (*ProfileSQLite)(nil)

const (
	selectProfileSQL = `
		SELECT user_id, email, full_name, username, phone, profile_image_url
		FROM profiles WHERE user_id = ?
	`

	upsertProfileSQL = `
		INSERT INTO profiles (user_id, email, full_name, username, phone, profile_image_url)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			email=excluded.email,
			full_name=excluded.full_name,
			username=excluded.username,
			phone=excluded.phone,
			profile_image_url=excluded.profile_image_url
	`

	updateProfileImageSQL = `UPDATE profiles SET profile_image_url = ? WHERE user_id = ?`
)

// Get returns (nil, nil) when the user has no profile document yet.
func (r *ProfileSQLite) Get(ctx context.Context, userID int) (*models.UserProfile, error) {
	var p models.UserProfile
	err := r.db.QueryRowContext(ctx, selectProfileSQL, userID).Scan(
		&p.UID, &p.Email, &p.FullName, &p.Username, &p.Phone, &p.ProfileImageURL,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select profile %d: %w", userID, err)
	}
	return &p, nil
}

// Save writes the whole profile document.
func (r *ProfileSQLite) Save(ctx context.Context, p models.UserProfile) error {
	_, err := r.db.ExecContext(ctx, upsertProfileSQL,
		p.UID, p.Email, p.FullName, p.Username, p.Phone, p.ProfileImageURL,
	)
	if err != nil {
		return fmt.Errorf("upsert profile %d: %w", p.UID, err)
	}
	return nil
}

// UpdateImage only touches the avatar field. ErrNotFound if no profile exists.
func (r *ProfileSQLite) UpdateImage(ctx context.Context, userID int, url string) error {
	res, err := r.db.ExecContext(ctx, updateProfileImageSQL, url, userID)
	if err != nil {
		return fmt.Errorf("update profile image %d: %w", userID, err)
	}
	return expectOneRow(res)
}
