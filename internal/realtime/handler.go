package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/statusbeacon/beacon/internal/domain"
	"github.com/statusbeacon/beacon/internal/pkg/slug"
)

// Close codes sent after the handshake when a subscription is refused.
// The connection is accepted first so the client can observe the code.
const (
	CloseInternalError = 4000
	CloseMissingParam  = 4001
	CloseInvalidToken  = 4002
	CloseUnknownUser   = 4003
)

// Authorizer validates credentials presented on the private channel.
type Authorizer interface {
	// AuthorizeSession resolves a token to the organization the session
	// subscribes to. It returns ErrInvalidToken for tokens that fail
	// verification and ErrUnknownUser for valid tokens whose subject no
	// longer exists.
	AuthorizeSession(ctx context.Context, token string) (domain.OrgRef, error)
}

// Errors Authorizer implementations return to select a close code.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownUser  = errors.New("unknown user")
)

// Handler upgrades websocket subscriptions for the private organization
// channel and the public status channel.
type Handler struct {
	hub        *Hub
	authorizer Authorizer
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewHandler creates a websocket handler. checkOrigin receives the
// request and reports whether the origin is allowed.
func NewHandler(hub *Hub, authorizer Authorizer, checkOrigin func(r *http.Request) bool, logger *slog.Logger) *Handler {
	return &Handler{
		hub:        hub,
		authorizer: authorizer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}
}

// RegisterRoutes registers the websocket endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/status/org", h.ServeOrg)
	r.Get("/ws/status/public/{org_slug}", h.ServePublic)
}

// ServeOrg handles GET /ws/status/org?token=... Authentication happens
// after the handshake so refusals arrive as close codes rather than
// opaque handshake failures.
func (h *Handler) ServeOrg(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		h.refuse(conn, CloseMissingParam, "token required")
		return
	}

	org, err := h.authorizer.AuthorizeSession(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidToken):
			h.refuse(conn, CloseInvalidToken, "invalid token")
		case errors.Is(err, ErrUnknownUser):
			h.refuse(conn, CloseUnknownUser, "unknown user")
		default:
			h.logger.Error("websocket authorization failed", "error", err)
			h.refuse(conn, CloseInternalError, "internal error")
		}
		return
	}

	NewSession(h.hub, conn, OrgChannel(org), h.logger).Run()
}

// ServePublic handles GET /ws/status/public/{org_slug}. No credentials
// are required; events for hidden resources never reach this channel.
func (h *Handler) ServePublic(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	orgSlug := slug.Make(chi.URLParam(r, "org_slug"))
	if orgSlug == "" {
		h.refuse(conn, CloseMissingParam, "organization slug required")
		return
	}

	NewSession(h.hub, conn, PublicChannelForSlug(orgSlug), h.logger).Run()
}

func (h *Handler) refuse(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.Close()
}
