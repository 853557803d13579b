package session

import (
	"context"
	"fmt"

	"github.com/cleanearth/cleanearth-bff-go/internal/domain"
	"github.com/cleanearth/cleanearth-bff-go/internal/port"
)

// RoleResolver classifies an identity as user or collector by probing the
// two profile tables in order. Membership in a table IS the role; there is
// no role column on the identity itself.
type RoleResolver struct {
	profiles port.ProfileStore
}

func NewRoleResolver(profiles port.ProfileStore) *RoleResolver {
	return &RoleResolver{profiles: profiles}
}

// Resolve probes user_profiles first, then collector_profiles. An identity
// with no profile row in either table is unresolvable and the session
// cannot be established.
func (r *RoleResolver) Resolve(ctx context.Context, identityID string) (domain.RoleKind, error) {
	user, err := r.profiles.GetUserProfile(ctx, identityID)
	if err != nil {
		return "", fmt.Errorf("probe user profile: %w", err)
	}
	if user != nil {
		return domain.RoleUser, nil
	}

	collector, err := r.profiles.GetCollectorProfile(ctx, identityID)
	if err != nil {
		return "", fmt.Errorf("probe collector profile: %w", err)
	}
	if collector != nil {
		return domain.RoleCollector, nil
	}

	return "", &domain.ErrNotFound{Resource: "profile", ID: identityID}
}
