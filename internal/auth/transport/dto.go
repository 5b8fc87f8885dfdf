// Package transport defines request and response shapes for auth endpoints.
package transport

// LoginRequest carries login credentials.
type LoginRequest struct {
	Email    string `json:"email" binding:"required" validate:"required,email"`
	Password string `json:"password" binding:"required" validate:"required,min=8"`
}

// UserSummary is the authenticated user echoed back on login.
type UserSummary struct {
	ID       int64  `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// LoginResponse carries the issued access token.
type LoginResponse struct {
	AccessToken string      `json:"accessToken"`
	ExpiresIn   int64       `json:"expiresIn"`
	User        UserSummary `json:"user"`
}
