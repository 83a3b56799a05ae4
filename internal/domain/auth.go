package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// Роли, которые выдает бэкенд
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type CustomClaims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	SessionID string `json:"session_id"`
	Role      string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Secure Token Issuing
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"` // Всегда "bearer"
	ExpiresIn   int64  `json:"expires_in"`
	Role        string `json:"role"`
	SessionID   string `json:"session_id"`
	MFARequired bool   `json:"mfa_required"`
}

type MFAVerifyRequest struct {
	SessionID string `json:"session_id"`
	OTP       string `json:"otp"`
}

// UserProfile: ответ /api/user/profile; консоли нужна только роль.
type UserProfile struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Access string `json:"access_level,omitempty"`
}
