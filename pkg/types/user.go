package types

import "github.com/golang-jwt/jwt/v5"

// UserRole identifies the caller's role at the gateway.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleChemist UserRole = "chemist"
	RoleDoctor  UserRole = "doctor"
	RoleLab     UserRole = "lab"
)

// UserClaims are the validated claims attached to a request context.
type UserClaims struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
}

// JWTClaims is the wire shape of the gateway's bearer token.
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}
