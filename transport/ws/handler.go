package ws

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"educhat/auth"
	"educhat/domain/chat"
	"educhat/runtime"
	"educhat/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Cross-origin browser clients are expected; the JWT carries the
		// actual trust decision.
		return true
	},
}

// Handler upgrades socket connections and hands them to the hub.
type Handler struct {
	hub      *runtime.Hub
	resolver *runtime.Resolver
	chats    services.IChatService
	groups   services.IGroupService
	tokens   *auth.TokenManager
	log      *slog.Logger
}

func NewHandler(hub *runtime.Hub, resolver *runtime.Resolver,
	chats services.IChatService, groups services.IGroupService,
	tokens *auth.TokenManager, log *slog.Logger) *Handler {
	return &Handler{
		hub:      hub,
		resolver: resolver,
		chats:    chats,
		groups:   groups,
		tokens:   tokens,
		log:      log,
	}
}

// ServeHTTP completes the Connecting transition. A valid token wins over
// the userId query parameter; a connection without either identity attaches
// in the Unauthenticated state and stays inert.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if token := r.URL.Query().Get("token"); token != "" {
		claims, err := h.tokens.Validate(token)
		if err != nil {
			h.log.Warn("Rejected socket token", "error", err)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		userID = claims.UserID
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Upgrade failed", "error", err)
		return
	}

	// Room resolution happens here, in the connection's goroutine, so the
	// hub loop never waits on the membership collaborator.
	var rooms []chat.RoomID
	if userID != "" {
		rooms, err = h.resolver.InitialRooms(r.Context(), userID)
		if err != nil {
			h.log.Error("Resolving initial rooms failed", "user_id", userID, "error", err)
			_ = conn.Close()
			return
		}
	}

	client := &Client{
		connID:   uuid.New().String(),
		userID:   userID,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		hub:      h.hub,
		resolver: h.resolver,
		chats:    h.chats,
		groups:   h.groups,
		log:      h.log,
	}

	h.hub.Attach(client.connID, userID, client, rooms)
	go client.writePump()
	go client.readPump()
}
