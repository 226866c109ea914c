package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims is the access token payload. It lives here because the
// middleware, the services and the ws handler all read it.
//
// Name is the display name, so the room relay can stamp messages without a
// user lookup per event.
type TokenClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
	jwt.RegisteredClaims
}
