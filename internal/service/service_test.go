package service

import (
	"context"
	"sync"
	"time"

	"github.com/cleanearth/cleanearth-bff-go/internal/domain"
	"github.com/cleanearth/cleanearth-bff-go/internal/infra/cache"
	"github.com/cleanearth/cleanearth-bff-go/internal/infra/observability"
	"github.com/cleanearth/cleanearth-bff-go/internal/session"
)

// Shared fakes for the service tests. Writes can be gated on a channel so
// tests can observe the view state while persistence is still in flight.

type fakeProfileStore struct {
	mu        sync.Mutex
	user      *domain.UserProfile
	collector *domain.CollectorProfile
	userErr   error
	collErr   error

	totalsUpdates  []map[string]any
	balanceUpdates []float64
	updateErr      error
}

func (f *fakeProfileStore) GetUserProfile(ctx context.Context, id string) (*domain.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.user, nil
}

func (f *fakeProfileStore) GetCollectorProfile(ctx context.Context, id string) (*domain.CollectorProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.collErr != nil {
		return nil, f.collErr
	}
	return f.collector, nil
}

func (f *fakeProfileStore) CreateUserProfile(ctx context.Context, p *domain.UserProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = p
	return nil
}

func (f *fakeProfileStore) CreateCollectorProfile(ctx context.Context, p *domain.CollectorProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collector = p
	return nil
}

func (f *fakeProfileStore) UpdateUserTotals(ctx context.Context, id string, updates map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.totalsUpdates = append(f.totalsUpdates, updates)
	return nil
}

func (f *fakeProfileStore) UpdateWalletBalance(ctx context.Context, id string, balance float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.balanceUpdates = append(f.balanceUpdates, balance)
	if f.collector != nil {
		f.collector.WalletBalance = balance
	}
	return nil
}

type fakePickupStore struct {
	mu        sync.Mutex
	created   []domain.Pickup
	createErr error
	gate      chan struct{} // when non-nil, CreatePickup blocks until closed
	nextID    string

	userList []domain.Pickup
	collList []domain.Pickup
	listErr  error

	statusUpdates map[string]string
}

func (f *fakePickupStore) ListUserPickups(ctx context.Context, userID string, limit int) ([]domain.Pickup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.userList, nil
}

func (f *fakePickupStore) ListCollectorPickups(ctx context.Context, collectorID string, limit int) ([]domain.Pickup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.collList, nil
}

func (f *fakePickupStore) CreatePickup(ctx context.Context, p *domain.Pickup) (*domain.Pickup, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	saved := *p
	saved.ID = f.nextID
	f.created = append(f.created, saved)
	return &saved, nil
}

func (f *fakePickupStore) UpdatePickupStatus(ctx context.Context, pickupID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusUpdates == nil {
		f.statusUpdates = make(map[string]string)
	}
	f.statusUpdates[pickupID] = status
	return nil
}

func (f *fakePickupStore) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type fakeTransactionStore struct {
	mu        sync.Mutex
	created   []domain.Transaction
	createErr error
	gate      chan struct{}
	nextID    string

	list    []domain.Transaction
	listErr error
}

func (f *fakeTransactionStore) ListTransactions(ctx context.Context, collectorID string, limit int) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

func (f *fakeTransactionStore) CreateTransaction(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	saved := *t
	saved.ID = f.nextID
	f.created = append(f.created, saved)
	return &saved, nil
}

type fakeRecyclingStore struct {
	mu      sync.Mutex
	created []domain.RecyclingRecord
	list    []domain.RecyclingRecord
}

func (f *fakeRecyclingStore) CreateRecyclingRecord(ctx context.Context, r *domain.RecyclingRecord) (*domain.RecyclingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	saved := *r
	saved.ID = "rec_1"
	saved.CreatedAt = time.Now()
	f.created = append(f.created, saved)
	return &saved, nil
}

func (f *fakeRecyclingStore) ListRecyclingRecords(ctx context.Context, ownerID string, limit int) ([]domain.RecyclingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list, nil
}

type fakeAuthProvider struct {
	identity   *domain.Identity
	signUpErr  error
	signInResp *domain.LoginResponse
	signInErr  error
	signOutErr error
	changes    chan domain.AuthChange
}

func newFakeAuthProvider() *fakeAuthProvider {
	return &fakeAuthProvider{changes: make(chan domain.AuthChange, 4)}
}

func (f *fakeAuthProvider) SignUp(ctx context.Context, email, password string, role domain.RoleKind) (*domain.Identity, error) {
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	return f.identity, nil
}

func (f *fakeAuthProvider) SignIn(ctx context.Context, email, password string) (*domain.LoginResponse, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return f.signInResp, nil
}

func (f *fakeAuthProvider) Refresh(ctx context.Context, refreshToken string) (*domain.LoginResponse, error) {
	return f.signInResp, f.signInErr
}

func (f *fakeAuthProvider) SignOut(ctx context.Context, accessToken string) error {
	return f.signOutErr
}

func (f *fakeAuthProvider) CurrentSession(ctx context.Context, accessToken string) (*domain.Identity, error) {
	return f.identity, nil
}

func (f *fakeAuthProvider) Changes() <-chan domain.AuthChange {
	return f.changes
}

// --- helpers ---

func userSession(id string) *session.Session {
	return &session.Session{
		Identity: domain.Identity{ID: id, Email: id + "@example.com"},
		Role:     domain.RoleUser,
		View:     session.NewViewState(),
	}
}

func collectorSession(id string) *session.Session {
	return &session.Session{
		Identity: domain.Identity{ID: id, Email: id + "@example.com"},
		Role:     domain.RoleCollector,
		View:     session.NewViewState(),
	}
}

func testMetrics() *observability.Metrics {
	return observability.NewMetrics()
}

func userCache() *cache.InMemory[*domain.UserProfile] {
	return cache.New[*domain.UserProfile](time.Minute)
}

func collectorCache() *cache.InMemory[*domain.CollectorProfile] {
	return cache.New[*domain.CollectorProfile](time.Minute)
}
