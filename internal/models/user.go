package models

type User struct {
	ID           int    `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"` // don’t expose hash
}

// UserProfile is the editable account profile.
type UserProfile struct {
	UID             int    `json:"uid"`
	Email           string `json:"email"`
	FullName        string `json:"full_name"`
	Username        string `json:"username"`
	Phone           string `json:"phone"`
	ProfileImageURL string `json:"profile_image_url"`
}
