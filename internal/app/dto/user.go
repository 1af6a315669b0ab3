package dto

import (
	"time"

	"rentchat/internal/domain/user"
)

// User is a public user profile payload.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthResponse couples a bearer token with the authenticated profile.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

func NewUser(u *user.User) User {
	roles := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		roles = append(roles, string(role))
	}
	return User{
		ID:        int64(u.ID),
		Email:     u.Email,
		Name:      u.Name,
		Roles:     roles,
		CreatedAt: u.CreatedAt,
	}
}
