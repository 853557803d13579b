package handler

import (
	"net/http"

	"github.com/cleanearth/cleanearth-bff-go/internal/domain"
	"github.com/cleanearth/cleanearth-bff-go/internal/session"

	"go.uber.org/zap"
)

type sessionResponse struct {
	State    string           `json:"state"`
	Role     domain.RoleKind  `json:"role,omitempty"`
	Identity *domain.Identity `json:"identity,omitempty"`
}

// sessionHandler tells the client shell who it is signed in as. The
// shell polls this on boot before deciding which surface to mount.
func sessionHandler(sessions *session.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/session")
		defer span.End()

		sess := sessionFromContext(r.Context())
		if sess == nil {
			writeJSON(w, http.StatusOK, sessionResponse{State: "unauthenticated"})
			return
		}

		state, role := sessions.State(sess.Identity.ID)
		resp := sessionResponse{Identity: &sess.Identity}
		switch state {
		case session.StateLoading:
			resp.State = "loading"
		case session.StateAuthenticated:
			resp.State = "authenticated"
			resp.Role = role
		default:
			resp.State = "unauthenticated"
			resp.Identity = nil
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
