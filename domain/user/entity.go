package user

import (
	"time"
)

// User represents a registered account.
type User struct {
	ID           string `gorm:"primaryKey;type:text"`
	Email        string `gorm:"uniqueIndex;not null;type:text"`
	DisplayName  string `gorm:"not null;type:text"`
	AvatarURL    string `gorm:"type:text"`
	PasswordHash string `gorm:"not null;type:text"`
	PushToken    string `gorm:"type:text"`
	Online       bool   `gorm:"not null;default:false"`
	LastActive   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName returns the table name for the User entity.
func (User) TableName() string {
	return "users"
}

// Profile is the public view of a user, without credentials.
type Profile struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	Online      bool       `json:"online"`
	LastActive  *time.Time `json:"last_active,omitempty"`
	PushToken   string     `json:"push_token,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ToProfile strips the credential fields.
func (u *User) ToProfile() Profile {
	return Profile{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Online:      u.Online,
		LastActive:  u.LastActive,
		PushToken:   u.PushToken,
		CreatedAt:   u.CreatedAt,
	}
}

// TokenPair represents access and refresh tokens.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Identity is the verified subject of a bearer credential.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}
