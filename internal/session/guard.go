package session

import "github.com/cleanearth/cleanearth-bff-go/internal/domain"

// AuthState is the caller's authentication state as the route guard sees it.
type AuthState int

const (
	StateLoading AuthState = iota
	StateUnauthenticated
	StateAuthenticated
)

// RouteClass classifies a route for the guard.
type RouteClass int

const (
	// RoutePublic renders for everybody.
	RoutePublic RouteClass = iota
	// RouteAuthEntry is a login/register page: public, but authenticated
	// callers are sent to their own dashboard instead.
	RouteAuthEntry
	// RouteRoleScoped belongs to exactly one role.
	RouteRoleScoped
)

// Action is what the guard decided to do with the request.
type Action int

const (
	// Render serves the route as requested.
	Render Action = iota
	// Placeholder serves a neutral loading response; no role-specific
	// content may leak while the session is still being established.
	Placeholder
	// Redirect sends the caller to Decision.Target.
	Redirect
)

// Decision is the guard's verdict for one request.
type Decision struct {
	Action Action
	Target string // set when Action == Redirect
}

// EvaluateRoute decides what happens when a caller in the given auth state
// hits a route of the given class. routeRole is the owning role for
// role-scoped routes and ignored otherwise. The function is pure: it is
// re-evaluated on every request, so a state change (sign-out, role switch)
// takes effect on the very next navigation with no stale grants.
//
// Cross-role access never renders and never 403s; the caller lands on
// their own dashboard root.
func EvaluateRoute(state AuthState, role domain.RoleKind, class RouteClass, routeRole domain.RoleKind) Decision {
	if state == StateLoading {
		return Decision{Action: Placeholder}
	}

	switch class {
	case RoutePublic:
		return Decision{Action: Render}

	case RouteAuthEntry:
		if state == StateAuthenticated {
			return Decision{Action: Redirect, Target: role.DashboardPath()}
		}
		return Decision{Action: Render}

	case RouteRoleScoped:
		if state != StateAuthenticated {
			return Decision{Action: Redirect, Target: "/login"}
		}
		if role != routeRole {
			return Decision{Action: Redirect, Target: role.DashboardPath()}
		}
		return Decision{Action: Render}
	}

	// Unknown classes fail closed.
	return Decision{Action: Redirect, Target: "/login"}
}
