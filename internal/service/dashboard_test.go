package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cleanearth/cleanearth-bff-go/internal/domain"

	"go.uber.org/zap"
)

func newDashboardService(profiles *fakeProfileStore, pickups *fakePickupStore, ledger *fakeTransactionStore) *DashboardService {
	return NewDashboardService(profiles, pickups, ledger, userCache(), collectorCache(), 3, 10, 8, testMetrics(), zap.NewNop())
}

func TestUserDashboardHappyPath(t *testing.T) {
	profiles := &fakeProfileStore{user: &domain.UserProfile{ID: "u1", FullName: "Ada", EcoPoints: 120}}
	pickups := &fakePickupStore{userList: []domain.Pickup{{ID: "pk_1"}, {ID: "pk_2"}}}
	svc := newDashboardService(profiles, pickups, &fakeTransactionStore{})

	sess := userSession("u1")
	dash, err := svc.UserDashboard(context.Background(), sess)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dash.Profile.FullName != "Ada" {
		t.Errorf("profile = %+v", dash.Profile)
	}
	if len(dash.UpcomingPickups) != 2 {
		t.Errorf("pickups = %+v", dash.UpcomingPickups)
	}
}

func TestUserDashboardDegradesPerFetch(t *testing.T) {
	profiles := &fakeProfileStore{userErr: errors.New("profiles down")}
	pickups := &fakePickupStore{listErr: errors.New("pickups down")}
	svc := newDashboardService(profiles, pickups, &fakeTransactionStore{})

	sess := userSession("u1")
	dash, err := svc.UserDashboard(context.Background(), sess)
	if err != nil {
		t.Fatalf("dashboard must not fail: %v", err)
	}
	if dash.Profile == nil || dash.Profile.ID != "u1" {
		t.Errorf("expected zero profile with identity id, got %+v", dash.Profile)
	}
	if dash.Profile.FullName != "" || dash.Profile.EcoPoints != 0 {
		t.Errorf("zero profile carries data: %+v", dash.Profile)
	}
	if len(dash.UpcomingPickups) != 0 {
		t.Errorf("expected empty pickups, got %+v", dash.UpcomingPickups)
	}
}

func TestUserDashboardProfileCache(t *testing.T) {
	profiles := &fakeProfileStore{user: &domain.UserProfile{ID: "u1", FullName: "Ada"}}
	pickups := &fakePickupStore{}
	svc := newDashboardService(profiles, pickups, &fakeTransactionStore{})

	sess := userSession("u1")
	if _, err := svc.UserDashboard(context.Background(), sess); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	// Second dashboard hits the cache, so a store outage goes unnoticed.
	profiles.mu.Lock()
	profiles.userErr = errors.New("profiles down")
	profiles.mu.Unlock()

	dash, err := svc.UserDashboard(context.Background(), sess)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if dash.Profile.FullName != "Ada" {
		t.Errorf("cache miss, profile = %+v", dash.Profile)
	}
}

func TestCollectorDashboardHappyPath(t *testing.T) {
	profiles := &fakeProfileStore{collector: &domain.CollectorProfile{
		ID: "c1", BusinessName: "GreenHaul", WalletBalance: 85250.75,
	}}
	pickups := &fakePickupStore{collList: []domain.Pickup{{ID: "pk_1"}}}
	ledger := &fakeTransactionStore{list: []domain.Transaction{{ID: "tx_1", Type: domain.TxCredit, Amount: 5000}}}
	svc := newDashboardService(profiles, pickups, ledger)

	sess := collectorSession("c1")
	dash, err := svc.CollectorDashboard(context.Background(), sess)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dash.Profile.BusinessName != "GreenHaul" {
		t.Errorf("profile = %+v", dash.Profile)
	}
	if dash.WalletBalance != 85250.75 {
		t.Errorf("balance = %v", dash.WalletBalance)
	}
	if len(dash.RecentTransactions) != 1 || dash.RecentTransactions[0].ID != "tx_1" {
		t.Errorf("transactions = %+v", dash.RecentTransactions)
	}

	// The profile fetch seeds the displayed balance.
	if balance, known := sess.View.WalletBalance(); !known || balance != 85250.75 {
		t.Errorf("view balance = %v known=%v", balance, known)
	}
}

func TestCollectorDashboardLedgerFallback(t *testing.T) {
	profiles := &fakeProfileStore{collector: &domain.CollectorProfile{ID: "c1", WalletBalance: 1000}}
	pickups := &fakePickupStore{}
	ledger := &fakeTransactionStore{listErr: errors.New("ledger down")}
	svc := newDashboardService(profiles, pickups, ledger)

	sess := collectorSession("c1")
	dash, err := svc.CollectorDashboard(context.Background(), sess)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}

	if len(dash.RecentTransactions) != len(fallbackTransactions) {
		t.Fatalf("expected fallback dataset, got %d entries", len(dash.RecentTransactions))
	}
	if dash.RecentTransactions[0].Description != "User Subscription Payment" || dash.RecentTransactions[0].Amount != 5000 {
		t.Errorf("fallback head = %+v", dash.RecentTransactions[0])
	}
	if dash.RecentTransactions[4].Description != "Payout Withdrawal" || dash.RecentTransactions[4].Amount != 50000 {
		t.Errorf("fallback tail = %+v", dash.RecentTransactions[4])
	}
}

func TestCollectorDashboardCacheHitPreservesDeduction(t *testing.T) {
	profiles := &fakeProfileStore{collector: &domain.CollectorProfile{ID: "c1", WalletBalance: 85250.75}}
	svc := newDashboardService(profiles, &fakePickupStore{}, &fakeTransactionStore{})

	sess := collectorSession("c1")
	// First dashboard fills the profile cache and seeds the balance.
	if _, err := svc.CollectorDashboard(context.Background(), sess); err != nil {
		t.Fatalf("first dashboard: %v", err)
	}

	// A withdrawal deducts the display while persistence is in flight.
	sess.View.DeductWallet(5000)

	dash, err := svc.CollectorDashboard(context.Background(), sess)
	if err != nil {
		t.Fatalf("second dashboard: %v", err)
	}
	if dash.WalletBalance != 80250.75 {
		t.Errorf("cached profile wiped the in-flight deduction: balance = %v", dash.WalletBalance)
	}
}

func TestCollectorDashboardFetchReseedsDriftedBalance(t *testing.T) {
	profiles := &fakeProfileStore{collector: &domain.CollectorProfile{ID: "c1", WalletBalance: 85250.75}}
	svc := newDashboardService(profiles, &fakePickupStore{}, &fakeTransactionStore{})

	sess := collectorSession("c1")
	// Simulate a failed withdrawal that deducted the display only.
	sess.View.SetWalletBalance(85250.75)
	sess.View.DeductWallet(5000)

	dash, err := svc.CollectorDashboard(context.Background(), sess)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dash.WalletBalance != 85250.75 {
		t.Errorf("fetch did not re-seed the balance: %v", dash.WalletBalance)
	}
}
