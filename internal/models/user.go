package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserRole enumerates monitoring-system roles.
type UserRole string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleOwner    UserRole = "OWNER"
	RoleManager  UserRole = "MANAGER"
	RoleEmployee UserRole = "EMPLOYEE"
)

// User is an organization member able to act on workflows.
type User struct {
	ID               string    `db:"id" json:"id"`
	Email            string    `db:"email" json:"email"`
	Username         string    `db:"username" json:"username"`
	PasswordHash     string    `db:"password_hash" json:"-"`
	Role             UserRole  `db:"role" json:"role"`
	Department       string    `db:"department" json:"department"`
	Position         string    `db:"position" json:"position"`
	OrganizationName string    `db:"organization_name" json:"organizationName"`
	Active           bool      `db:"active" json:"active"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

// JWTClaims is the authenticated actor identity consumed by the workflow
// engine: role plus the department/position pair matched against approval
// chain stages.
type JWTClaims struct {
	UserID           string   `json:"user_id"`
	Role             UserRole `json:"role"`
	Username         string   `json:"username"`
	Department       string   `json:"department"`
	Position         string   `json:"position"`
	OrganizationName string   `json:"organization_name"`
	jwt.RegisteredClaims
}

// LoginRequest carries credential input.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and basic identity.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
	User        UserInfo  `json:"user"`
}

// UserInfo is the public projection of a user.
type UserInfo struct {
	ID               string   `json:"id"`
	Email            string   `json:"email"`
	Username         string   `json:"username"`
	Role             UserRole `json:"role"`
	Department       string   `json:"department"`
	Position         string   `json:"position"`
	OrganizationName string   `json:"organizationName"`
}
