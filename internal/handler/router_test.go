package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cleanearth/cleanearth-bff-go/internal/config"
	"github.com/cleanearth/cleanearth-bff-go/internal/domain"
	"github.com/cleanearth/cleanearth-bff-go/internal/infra/cache"
	"github.com/cleanearth/cleanearth-bff-go/internal/infra/memstore"
	"github.com/cleanearth/cleanearth-bff-go/internal/infra/observability"
	"github.com/cleanearth/cleanearth-bff-go/internal/service"
	"github.com/cleanearth/cleanearth-bff-go/internal/session"

	"go.uber.org/zap"
)

const testJWTSecret = "router-test-secret"

type testServer struct {
	srv      *httptest.Server
	client   *http.Client
	store    *memstore.Store
	sessions *session.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := zap.NewNop()
	store := memstore.New(testJWTSecret, 15*time.Minute, time.Hour, logger)
	metrics := observability.NewMetrics()

	resolver := session.NewRoleResolver(store)
	sessions := session.NewManager(resolver, store, logger)

	userCache := cache.New[*domain.UserProfile](time.Minute)
	collectorCache := cache.New[*domain.CollectorProfile](time.Minute)

	cfg := config.Load()
	cfg.DevMode = true
	cfg.AuthRatePerMinute = 600

	deps := Dependencies{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics,
		Sessions: sessions,
		Auth:     service.NewAuthService(store, store, sessions, testJWTSecret, logger),
		Dashboard: service.NewDashboardService(
			store, store, store, userCache, collectorCache,
			cfg.UpcomingPickupsLimit, cfg.CollectorPickupsLimit, cfg.RecentTransactionsLimit,
			metrics, logger,
		),
		Booking:      service.NewBookingService(store, metrics, logger),
		Wallet:       service.NewWalletService(store, store, collectorCache, metrics, logger),
		Recycling:    service.NewRecyclingService(store, store, userCache, logger),
		Guide:        service.NewGuideService(store),
		Profiles:     store,
		Transactions: store,
		Ready:        func() bool { return true },
	}

	srv := httptest.NewServer(NewRouter(deps))
	t.Cleanup(srv.Close)

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testServer{srv: srv, client: client, store: store, sessions: sessions}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func (ts *testServer) registerAndLogin(t *testing.T, email string, role domain.RoleKind) domain.LoginResponse {
	t.Helper()

	reg := domain.RegisterRequest{
		Email:    email,
		Password: "hunter2-long-enough",
		Role:     role,
		Profile:  domain.RegistrationProfile{FullName: "Test Person", BusinessName: "Test Hauling"},
	}
	resp := ts.do(t, http.MethodPost, "/v1/auth/register", "", reg)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d", email, resp.StatusCode)
	}
	resp.Body.Close()

	login := decode[domain.LoginResponse](t, ts.do(t, http.MethodPost, "/v1/auth/login", "", domain.LoginRequest{
		Email:    email,
		Password: "hunter2-long-enough",
	}))
	if login.AccessToken == "" {
		t.Fatal("login returned no access token")
	}
	return login
}

func TestOpsEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz", "/ping", "/metrics", "/v1/metrics/ops"} {
		resp := ts.do(t, http.MethodGet, path, "", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: status %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestGuideIsPublic(t *testing.T) {
	ts := newTestServer(t)

	categories := decode[[]domain.GuideCategory](t, ts.do(t, http.MethodGet, "/v1/guide", "", nil))
	if len(categories) != 5 {
		t.Fatalf("got %d guide categories, want 5", len(categories))
	}
}

func TestProtectedRoutesRejectAnonymous(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/v1/user/dashboard", "/v1/collector/dashboard", "/v1/user/pickups"} {
		resp := ts.do(t, http.MethodGet, path, "", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s: status %d, want 401", path, resp.StatusCode)
		}
	}

	resp := ts.do(t, http.MethodGet, "/v1/user/dashboard", "not-a-token", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("garbage token: status %d, want 401", resp.StatusCode)
	}
}

func TestUserDashboardRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAndLogin(t, "maria@example.com", domain.RoleUser).AccessToken

	dashboard := decode[domain.UserDashboard](t, ts.do(t, http.MethodGet, "/v1/user/dashboard", token, nil))
	if dashboard.Profile.FullName != "Test Person" {
		t.Errorf("profile name %q, want %q", dashboard.Profile.FullName, "Test Person")
	}
}

func TestCrossRoleAPIRedirectsToOwnDashboard(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAndLogin(t, "maria@example.com", domain.RoleUser).AccessToken

	resp := ts.do(t, http.MethodGet, "/v1/collector/dashboard", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/user/dashboard" {
		t.Errorf("redirect location %q, want /user/dashboard", loc)
	}
}

func TestBookingThroughAPI(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAndLogin(t, "maria@example.com", domain.RoleUser).AccessToken

	resp := ts.do(t, http.MethodPost, "/v1/user/pickups", token, domain.BookingRequest{
		Address:       "12 Allen Ave",
		ScheduledDate: "2025-12-01",
		TimeSlot:      domain.SlotMorning,
		WasteTypes:    []string{"Plastic"},
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("book: status %d, want 202", resp.StatusCode)
	}
	pickup := decode[domain.Pickup](t, resp)
	if pickup.Status != domain.PickupPending {
		t.Errorf("status %q, want pending", pickup.Status)
	}

	// The store write is detached; the list settles on the stored record.
	deadline := time.Now().Add(2 * time.Second)
	for {
		pickups := decode[[]domain.Pickup](t, ts.do(t, http.MethodGet, "/v1/user/pickups", token, nil))
		if len(pickups) == 1 && pickups[0].Address == "12 Allen Ave" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("pickup never appeared in the list: %+v", pickups)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBookingValidationIs400(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAndLogin(t, "maria@example.com", domain.RoleUser).AccessToken

	resp := ts.do(t, http.MethodPost, "/v1/user/pickups", token, domain.BookingRequest{
		ScheduledDate: "2025-12-01",
		TimeSlot:      domain.SlotMorning,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
}

func TestWithdrawalThroughAPI(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAndLogin(t, "hauler@example.com", domain.RoleCollector).AccessToken

	resp := ts.do(t, http.MethodPost, "/v1/collector/withdrawals", token, domain.WithdrawalRequest{Amount: 500})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("withdraw: status %d, want 202", resp.StatusCode)
	}
	tx := decode[domain.Transaction](t, resp)
	if tx.Type != domain.TxDebit {
		t.Errorf("type %q, want Debit", tx.Type)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		txs := decode[[]domain.Transaction](t, ts.do(t, http.MethodGet, "/v1/collector/transactions", token, nil))
		if len(txs) == 1 && txs[0].Amount == 500 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("withdrawal never appeared in the ledger: %+v", txs)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSessionEndpoint(t *testing.T) {
	ts := newTestServer(t)

	anon := decode[sessionResponse](t, ts.do(t, http.MethodGet, "/v1/session", "", nil))
	if anon.State != "unauthenticated" {
		t.Errorf("anonymous state %q, want unauthenticated", anon.State)
	}

	token := ts.registerAndLogin(t, "maria@example.com", domain.RoleUser).AccessToken
	authed := decode[sessionResponse](t, ts.do(t, http.MethodGet, "/v1/session", token, nil))
	if authed.State != "authenticated" || authed.Role != domain.RoleUser {
		t.Errorf("got state %q role %q, want authenticated/user", authed.State, authed.Role)
	}
}

func TestWebGuardRedirects(t *testing.T) {
	ts := newTestServer(t)
	userToken := ts.registerAndLogin(t, "maria@example.com", domain.RoleUser).AccessToken

	cases := []struct {
		name       string
		path       string
		token      string
		wantStatus int
		wantTarget string
	}{
		{"landing is public", "/", "", http.StatusOK, ""},
		{"anonymous login renders", "/login", "", http.StatusOK, ""},
		{"anonymous role route bounces to login", "/user/dashboard", "", http.StatusSeeOther, "/login"},
		{"authed login bounces to own dashboard", "/login", userToken, http.StatusSeeOther, "/user/dashboard"},
		{"authed own dashboard renders", "/user/dashboard", userToken, http.StatusOK, ""},
		{"cross-role lands on own dashboard", "/collector/dashboard", userToken, http.StatusSeeOther, "/user/dashboard"},
		{"unknown path falls back to landing", "/no/such/page", "", http.StatusSeeOther, "/"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodGet, tc.path, tc.token, nil)
			resp.Body.Close()
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("status %d, want %d", resp.StatusCode, tc.wantStatus)
			}
			if tc.wantTarget != "" {
				if loc := resp.Header.Get("Location"); loc != tc.wantTarget {
					t.Errorf("redirect location %q, want %q", loc, tc.wantTarget)
				}
			}
		})
	}
}

func TestLogoutBouncesGuard(t *testing.T) {
	ts := newTestServer(t)

	login := ts.registerAndLogin(t, "maria@example.com", domain.RoleUser)

	resp := ts.do(t, http.MethodPost, "/v1/auth/logout", login.AccessToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: status %d, want 200", resp.StatusCode)
	}

	// The server-side session is gone.
	if ts.sessions.Get(login.Identity.ID) != nil {
		t.Error("session survived logout")
	}

	// A signed-out browser navigates without a token and bounces to login.
	resp = ts.do(t, http.MethodGet, "/user/dashboard", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Errorf("got status %d location %q, want 303 /login",
			resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestAuthRateLimit(t *testing.T) {
	_ = newTestServer(t)

	logger := zap.NewNop()
	store := memstore.New(testJWTSecret, 15*time.Minute, time.Hour, logger)
	sessions := session.NewManager(session.NewRoleResolver(store), store, logger)
	metrics := observability.NewMetrics()

	cfg := config.Load()
	cfg.AuthRatePerMinute = 2

	deps := Dependencies{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics,
		Sessions: sessions,
		Auth:     service.NewAuthService(store, store, sessions, testJWTSecret, logger),
		Dashboard: service.NewDashboardService(
			store, store, store,
			cache.New[*domain.UserProfile](time.Minute),
			cache.New[*domain.CollectorProfile](time.Minute),
			3, 10, 8, metrics, logger,
		),
		Booking:   service.NewBookingService(store, metrics, logger),
		Wallet:    service.NewWalletService(store, store, cache.New[*domain.CollectorProfile](time.Minute), metrics, logger),
		Recycling: service.NewRecyclingService(store, store, cache.New[*domain.UserProfile](time.Minute), logger),
		Guide:     service.NewGuideService(store),
	}
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	saw429 := false
	for i := 0; i < 5; i++ {
		body := bytes.NewBufferString(fmt.Sprintf(`{"email":"u%d@example.com","password":"bad"}`, i))
		resp, err := http.Post(srv.URL+"/v1/auth/login", "application/json", body)
		if err != nil {
			t.Fatalf("login %d: %v", i, err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			saw429 = true
		}
	}
	if !saw429 {
		t.Error("burst of logins never hit the rate limit")
	}
}
