// Package memstore is an in-memory implementation of the data and auth
// ports. It backs local development without a Supabase project and the
// integration tests, mirroring the table semantics of the real adapter.
package memstore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cleanearth/cleanearth-bff-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

type refreshEntry struct {
	identityID string
	expiresAt  time.Time
}

// Store holds every table in memory behind one mutex. Good enough for a
// dev instance; nothing here survives a restart.
type Store struct {
	mu sync.RWMutex

	identities        map[string]domain.Identity // by id
	emailIndex        map[string]string          // email -> id
	passwordHashes    map[string]string          // id -> bcrypt hash
	refreshTokens     map[string]refreshEntry    // sha256(token) -> entry
	userProfiles      map[string]*domain.UserProfile
	collectorProfiles map[string]*domain.CollectorProfile
	pickups           []domain.Pickup
	transactions      []domain.Transaction
	recycling         []domain.RecyclingRecord

	// error injection for tests
	pickupErr      error
	transactionErr error

	changes chan domain.AuthChange

	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *zap.Logger
}

// New creates an empty in-memory store. Tokens minted here use the same
// secret the handler middleware validates against, so dev sessions look
// exactly like Supabase ones.
func New(jwtSecret string, accessTTL, refreshTTL time.Duration, logger *zap.Logger) *Store {
	return &Store{
		identities:        make(map[string]domain.Identity),
		emailIndex:        make(map[string]string),
		passwordHashes:    make(map[string]string),
		refreshTokens:     make(map[string]refreshEntry),
		userProfiles:      make(map[string]*domain.UserProfile),
		collectorProfiles: make(map[string]*domain.CollectorProfile),
		changes:           make(chan domain.AuthChange, 16),
		jwtSecret:         []byte(jwtSecret),
		accessTTL:         accessTTL,
		refreshTTL:        refreshTTL,
		logger:            logger,
	}
}

// WithPickupError makes subsequent pickup writes fail with err. Pass nil
// to clear. Used by tests to exercise the no-rollback path.
func (s *Store) WithPickupError(err error) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pickupErr = err
	return s
}

// WithTransactionError makes subsequent ledger writes fail with err.
func (s *Store) WithTransactionError(err error) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactionErr = err
	return s
}

// ============================================================
// AuthProvider
// ============================================================

func (s *Store) SignUp(ctx context.Context, email, password string, role domain.RoleKind) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.emailIndex[email]; exists {
		return nil, &domain.ErrConflict{Message: "email already registered"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	identity := domain.Identity{ID: uuid.New().String(), Email: email}
	s.identities[identity.ID] = identity
	s.emailIndex[email] = identity.ID
	s.passwordHashes[identity.ID] = string(hash)

	return &identity, nil
}

func (s *Store) SignIn(ctx context.Context, email, password string) (*domain.LoginResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.emailIndex[email]
	if !ok {
		return nil, &domain.ErrUnauthorized{Message: "invalid email or password"}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHashes[id]), []byte(password)); err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid email or password"}
	}

	identity := s.identities[id]
	resp, err := s.issueTokens(identity)
	if err != nil {
		return nil, err
	}

	s.emitChange(domain.AuthChange{Event: domain.AuthSignedIn, Identity: &identity})
	return resp, nil
}

func (s *Store) Refresh(ctx context.Context, refreshToken string) (*domain.LoginResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := hashToken(refreshToken)
	entry, ok := s.refreshTokens[hash]
	if !ok || entry.expiresAt.Before(time.Now()) {
		delete(s.refreshTokens, hash)
		return nil, &domain.ErrUnauthorized{Message: "invalid refresh token"}
	}

	// rotation
	delete(s.refreshTokens, hash)

	identity := s.identities[entry.identityID]
	resp, err := s.issueTokens(identity)
	if err != nil {
		return nil, err
	}

	s.emitChange(domain.AuthChange{Event: domain.AuthTokenRefreshed, Identity: &identity})
	return resp, nil
}

func (s *Store) SignOut(ctx context.Context, accessToken string) error {
	identity, err := s.CurrentSession(ctx, accessToken)
	if err != nil {
		return err
	}

	s.mu.Lock()
	for hash, entry := range s.refreshTokens {
		if entry.identityID == identity.ID {
			delete(s.refreshTokens, hash)
		}
	}
	s.mu.Unlock()

	s.emitChange(domain.AuthChange{Event: domain.AuthSignedOut, Identity: identity})
	return nil
}

func (s *Store) CurrentSession(ctx context.Context, accessToken string) (*domain.Identity, error) {
	token, err := jwt.Parse(accessToken, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, &domain.ErrUnauthorized{Message: "invalid token claims"}
	}
	sub, _ := claims["sub"].(string)

	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.identities[sub]
	if !ok {
		return nil, &domain.ErrUnauthorized{Message: "unknown identity"}
	}
	return &identity, nil
}

func (s *Store) Changes() <-chan domain.AuthChange {
	return s.changes
}

func (s *Store) emitChange(ev domain.AuthChange) {
	select {
	case s.changes <- ev:
	default:
		s.logger.Warn("auth change feed full, dropping event", zap.String("event", ev.Event))
	}
}

// issueTokens mints a GoTrue-shaped HS256 access token plus an opaque
// refresh token. Caller holds the lock.
func (s *Store) issueTokens(identity domain.Identity) (*domain.LoginResponse, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   identity.ID,
		"email": identity.Email,
		"role":  "authenticated",
		"iat":   now.Unix(),
		"exp":   now.Add(s.accessTTL).Unix(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	refresh := hex.EncodeToString(raw)
	s.refreshTokens[hashToken(refresh)] = refreshEntry{
		identityID: identity.ID,
		expiresAt:  now.Add(s.refreshTTL),
	}

	return &domain.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.accessTTL.Seconds()),
		Identity:     identity,
	}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ============================================================
// ProfileStore
// ============================================================

func (s *Store) GetUserProfile(ctx context.Context, id string) (*domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.userProfiles[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *Store) GetCollectorProfile(ctx context.Context, id string) (*domain.CollectorProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.collectorProfiles[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *Store) CreateUserProfile(ctx context.Context, p *domain.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.userProfiles[p.ID] = &cp
	return nil
}

func (s *Store) CreateCollectorProfile(ctx context.Context, p *domain.CollectorProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	if cp.VerificationStatus == "" {
		cp.VerificationStatus = domain.VerificationPending
	}
	s.collectorProfiles[p.ID] = &cp
	return nil
}

func (s *Store) UpdateUserTotals(ctx context.Context, id string, updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.userProfiles[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "user_profile", ID: id}
	}
	for k, v := range updates {
		switch k {
		case "eco_points":
			if n, ok := v.(int); ok {
				p.EcoPoints = n
			}
		case "total_waste_collected_kg":
			if f, ok := v.(float64); ok {
				p.TotalWasteCollectedKg = f
			}
		case "total_recycling_kg":
			if f, ok := v.(float64); ok {
				p.TotalRecyclingKg = f
			}
		case "co2_saved_kg":
			if f, ok := v.(float64); ok {
				p.CO2SavedKg = f
			}
		}
	}
	return nil
}

func (s *Store) UpdateWalletBalance(ctx context.Context, id string, balance float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.collectorProfiles[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "collector_profile", ID: id}
	}
	p.WalletBalance = balance
	return nil
}

// ============================================================
// PickupStore
// ============================================================

func (s *Store) ListUserPickups(ctx context.Context, userID string, limit int) ([]domain.Pickup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Pickup, 0, limit)
	for _, p := range s.pickups {
		if p.UserID == userID && (p.Status == domain.PickupPending || p.Status == domain.PickupInProgress) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledDate < out[j].ScheduledDate })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListCollectorPickups(ctx context.Context, collectorID string, limit int) ([]domain.Pickup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Pickup, 0, limit)
	for _, p := range s.pickups {
		if p.CollectorID == collectorID && (p.Status == domain.PickupPending || p.Status == domain.PickupInProgress) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledDate > out[j].ScheduledDate })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CreatePickup(ctx context.Context, p *domain.Pickup) (*domain.Pickup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pickupErr != nil {
		return nil, s.pickupErr
	}

	stored := *p
	stored.ID = uuid.New().String()
	if stored.WasteTypes == nil {
		stored.WasteTypes = []string{}
	}
	s.pickups = append(s.pickups, stored)
	return &stored, nil
}

func (s *Store) UpdatePickupStatus(ctx context.Context, pickupID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.pickups {
		if s.pickups[i].ID == pickupID {
			s.pickups[i].Status = status
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "pickup", ID: pickupID}
}

// ============================================================
// TransactionStore
// ============================================================

func (s *Store) ListTransactions(ctx context.Context, collectorID string, limit int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Transaction, 0, limit)
	for _, t := range s.transactions {
		if t.CollectorID == collectorID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CreateTransaction(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transactionErr != nil {
		return nil, s.transactionErr
	}

	stored := *t
	stored.ID = uuid.New().String()
	if stored.Date == "" {
		stored.Date = time.Now().Format("2006-01-02")
	}
	s.transactions = append(s.transactions, stored)
	return &stored, nil
}

// ============================================================
// RecyclingStore
// ============================================================

func (s *Store) CreateRecyclingRecord(ctx context.Context, r *domain.RecyclingRecord) (*domain.RecyclingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *r
	stored.ID = uuid.New().String()
	stored.CreatedAt = time.Now().UTC()
	s.recycling = append(s.recycling, stored)
	return &stored, nil
}

func (s *Store) ListRecyclingRecords(ctx context.Context, ownerID string, limit int) ([]domain.RecyclingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.RecyclingRecord, 0, limit)
	for _, r := range s.recycling {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
