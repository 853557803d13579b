package handler

import (
	"net/http"

	"github.com/cleanearth/cleanearth-bff-go/internal/domain"
	"github.com/cleanearth/cleanearth-bff-go/internal/service"
	"github.com/cleanearth/cleanearth-bff-go/internal/session"

	"go.uber.org/zap"
)

// accessTokenCookie lets the web surface authenticate browser
// navigations, which carry no Authorization header.
const accessTokenCookie = "ce_access_token"

type pageResponse struct {
	Page string `json:"page"`
}

// webRouteHandler serves one shell route. Every navigation is
// re-evaluated against the guard: render the page, show the loading
// placeholder, or redirect.
func webRouteHandler(
	auth *service.AuthService,
	sessions *session.Manager,
	class session.RouteClass,
	routeRole domain.RoleKind,
	page string,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, role := webAuthState(r, auth, sessions, logger)

		decision := session.EvaluateRoute(state, role, class, routeRole)
		switch decision.Action {
		case session.Render:
			writeJSON(w, http.StatusOK, pageResponse{Page: page})
		case session.Placeholder:
			writeJSON(w, http.StatusOK, pageResponse{Page: "loading"})
		case session.Redirect:
			http.Redirect(w, r, decision.Target, http.StatusSeeOther)
		default:
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		}
	}
}

// webAuthState derives the guard input from the navigation request.
// The token may arrive as a bearer header or as a cookie.
func webAuthState(r *http.Request, auth *service.AuthService, sessions *session.Manager, logger *zap.Logger) (session.AuthState, domain.RoleKind) {
	token := bearerToken(r)
	if token == "" {
		if c, err := r.Cookie(accessTokenCookie); err == nil {
			token = c.Value
		}
	}
	if token == "" {
		return session.StateUnauthenticated, ""
	}

	claims, err := auth.ValidateAccessToken(token)
	if err != nil {
		return session.StateUnauthenticated, ""
	}

	if sessions.Loading(claims.Subject) {
		return session.StateLoading, ""
	}

	sess := sessions.Get(claims.Subject)
	if sess == nil {
		sess, err = sessions.Establish(r.Context(), domain.Identity{
			ID:    claims.Subject,
			Email: claims.Email,
		})
		if err != nil {
			logger.Debug("web navigation could not establish session",
				zap.String("identity_id", claims.Subject),
				zap.Error(err))
			return session.StateUnauthenticated, ""
		}
	}
	return session.StateAuthenticated, sess.Role
}
