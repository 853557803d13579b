// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations (Supabase adapter or in-memory store).
package port

import (
	"context"

	"github.com/cleanearth/cleanearth-bff-go/internal/domain"
)

// AuthProvider is the authentication collaborator (GoTrue in production).
// Sign-up creates the identity only; role profile rows are inserted by the
// auth service through the ProfileStore afterwards.
type AuthProvider interface {
	SignUp(ctx context.Context, email, password string, role domain.RoleKind) (*domain.Identity, error)
	SignIn(ctx context.Context, email, password string) (*domain.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.LoginResponse, error)
	SignOut(ctx context.Context, accessToken string) error
	CurrentSession(ctx context.Context, accessToken string) (*domain.Identity, error)

	// Changes returns the auth-state change feed. The channel stays open for
	// the life of the provider; consumers stop reading when their context ends.
	Changes() <-chan domain.AuthChange
}

// ProfileStore covers the user_profiles and collector_profiles tables.
// Lookups return (nil, nil) when no row exists, so callers can tell
// "absent" apart from a store failure.
type ProfileStore interface {
	GetUserProfile(ctx context.Context, id string) (*domain.UserProfile, error)
	GetCollectorProfile(ctx context.Context, id string) (*domain.CollectorProfile, error)
	CreateUserProfile(ctx context.Context, p *domain.UserProfile) error
	CreateCollectorProfile(ctx context.Context, p *domain.CollectorProfile) error
	UpdateUserTotals(ctx context.Context, id string, updates map[string]any) error
	UpdateWalletBalance(ctx context.Context, id string, balance float64) error
}

// PickupStore covers the pickups table.
type PickupStore interface {
	ListUserPickups(ctx context.Context, userID string, limit int) ([]domain.Pickup, error)
	ListCollectorPickups(ctx context.Context, collectorID string, limit int) ([]domain.Pickup, error)
	CreatePickup(ctx context.Context, p *domain.Pickup) (*domain.Pickup, error)
	UpdatePickupStatus(ctx context.Context, pickupID, status string) error
}

// TransactionStore covers the transactions table (collector wallet ledger).
type TransactionStore interface {
	ListTransactions(ctx context.Context, collectorID string, limit int) ([]domain.Transaction, error)
	CreateTransaction(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error)
}

// RecyclingStore covers the recycling_records table.
type RecyclingStore interface {
	CreateRecyclingRecord(ctx context.Context, r *domain.RecyclingRecord) (*domain.RecyclingRecord, error)
	ListRecyclingRecords(ctx context.Context, ownerID string, limit int) ([]domain.RecyclingRecord, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
