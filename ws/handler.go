package ws

import (
	"log"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"

	"github.com/medhanag29/rural-classroom/models"
)

// TokenValidator is the slice of the auth service the socket needs.
// Declared here so ws does not import services (services imports ws).
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
}

// Handler upgrades HTTP requests to room connections.
type Handler struct {
	hub            *Hub
	tokenValidator TokenValidator
	upgrader       websocket.Upgrader
}

// NewHandler creates the socket handler. allowedOrigins limits browser
// origins; an empty list or "*" allows any origin.
func NewHandler(hub *Hub, tokenValidator TokenValidator, allowedOrigins []string) *Handler {
	return &Handler{
		hub:            hub,
		tokenValidator: tokenValidator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// native clients send no Origin header
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// HandleConnection authenticates the token from the query string, upgrades
// and serves the connection until it closes.
//
//	ws://server/ws?token=JWT_TOKEN
//
// Browsers cannot set headers on the upgrade request, hence the query param.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.tokenValidator.ValidateAccessToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for user %s: %v", claims.UserID, err)
		return
	}

	name := claims.Name
	if name == "" {
		name = claims.Username
	}
	client := newClient(h.hub, conn, claims.UserID, name)

	h.hub.register <- client

	go client.WritePump()
	client.ReadPump() // blocks until the connection closes
}
