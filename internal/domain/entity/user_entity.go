package entity

import (
	"time"
)

// Role is the authorization role stored on the account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is the aggregate root for the auth domain.
// Passwords are stored as bcrypt hashes in Password field.
// RefreshToken holds the most recently issued refresh token; any prior
// token for the account is implicitly invalid.
type User struct {
	ID           string
	Name         string
	Username     string
	Email        string
	Password     string
	GoogleID     string
	Role         Role
	RefreshToken string
	Phone        string
	Address      string
	AvatarURL    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Sanitized returns the account representation safe to return to clients:
// no password hash, no refresh token.
func (u *User) Sanitized() map[string]any {
	return map[string]any{
		"id":         u.ID,
		"name":       u.Name,
		"username":   u.Username,
		"email":      u.Email,
		"role":       u.Role,
		"phone":      u.Phone,
		"address":    u.Address,
		"avatar_url": u.AvatarURL,
		"created_at": u.CreatedAt,
		"updated_at": u.UpdatedAt,
	}
}
