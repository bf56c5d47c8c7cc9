package authapi

import (
	"time"

	"ventasbros/cmd/identity"
	"ventasbros/cmd/internal/auth/session"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type loginResponse struct {
	User  userResponse  `json:"user"`
	Token tokenResponse `json:"token"`
}

type refreshResponse struct {
	User  userResponse  `json:"user"`
	Token tokenResponse `json:"token"`
}

type meResponse struct {
	User userResponse `json:"user"`
}

type existsResponse struct {
	Exists bool `json:"exists"`
}

type registerUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type updateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

type registerUserResponse struct {
	User userResponse `json:"user"`
}

type listUsersResponse struct {
	Users []userResponse `json:"users"`
}

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func toTokenResponse(issued session.Issued) tokenResponse {
	return tokenResponse{Token: issued.Token, ExpiresAt: issued.ExpiresAt}
}

func principalUserResponse(p session.Principal) userResponse {
	return userResponse{ID: p.ID, Username: p.Username, Email: p.Email, Role: p.Role}
}
