// Package domain defines the core business entities for the CleanEarth BFF.
// These models are independent of external services and represent the
// canonical data structures used throughout the BFF.
package domain

import "time"

// ============================================================
// Identity / Roles
// ============================================================

// RoleKind discriminates the two account variants of the marketplace.
type RoleKind string

const (
	RoleUser      RoleKind = "user"
	RoleCollector RoleKind = "collector"
)

// Valid reports whether the role is one of the two known variants.
func (r RoleKind) Valid() bool {
	return r == RoleUser || r == RoleCollector
}

// DashboardPath returns the dashboard root route for the role.
func (r RoleKind) DashboardPath() string {
	if r == RoleCollector {
		return "/collector/dashboard"
	}
	return "/user/dashboard"
}

// Identity is an authenticated account, role-agnostic.
// Owned by the auth collaborator (GoTrue); the id is immutable.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ============================================================
// Role profiles
// ============================================================

// UserProfile is the waste-producer profile, keyed 1:1 by identity id.
type UserProfile struct {
	ID                    string  `json:"id"`
	FullName              string  `json:"full_name"`
	Phone                 string  `json:"phone,omitempty"`
	Address               string  `json:"address,omitempty"`
	EcoPoints             int     `json:"eco_points"`
	TotalWasteCollectedKg float64 `json:"total_waste_collected_kg"`
	TotalRecyclingKg      float64 `json:"total_recycling_kg"`
	CO2SavedKg            float64 `json:"co2_saved_kg"`
}

// Collector verification statuses.
const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
)

// CollectorProfile is the service-provider profile, keyed 1:1 by identity id.
type CollectorProfile struct {
	ID                 string   `json:"id"`
	BusinessName       string   `json:"business_name"`
	OwnerName          string   `json:"owner_name"`
	RegistrationNumber string   `json:"registration_number,omitempty"`
	Phone              string   `json:"phone,omitempty"`
	Email              string   `json:"email,omitempty"`
	ServiceAreas       []string `json:"service_areas"`
	WalletBalance      float64  `json:"wallet_balance"`
	VerificationStatus string   `json:"verification_status"`
	BankAccountName    string   `json:"bank_account_name,omitempty"`
	BankAccountNumber  string   `json:"bank_account_number,omitempty"`
	BankName           string   `json:"bank_name,omitempty"`
}

// ============================================================
// Pickups
// ============================================================

// Pickup statuses. Only pending → in_progress is mutated in-scope.
const (
	PickupPending    = "pending"
	PickupInProgress = "in_progress"
	PickupCompleted  = "completed"
	PickupCancelled  = "cancelled"
)

// Pickup time slots.
const (
	SlotMorning   = "Morning"
	SlotAfternoon = "Afternoon"
	SlotEvening   = "Evening"
)

// ValidTimeSlot reports whether s is one of the three pickup slots.
func ValidTimeSlot(s string) bool {
	return s == SlotMorning || s == SlotAfternoon || s == SlotEvening
}

// Pickup is a scheduled waste collection. Created by a user (booking) or
// logged by a collector; either side may be absent on a given record.
type Pickup struct {
	ID                string   `json:"id"`
	UserID            string   `json:"user_id,omitempty"`
	CollectorID       string   `json:"collector_id,omitempty"`
	ScheduledDate     string   `json:"scheduled_date"`
	ScheduledTimeSlot string   `json:"scheduled_time_slot"`
	Address           string   `json:"address"`
	Status            string   `json:"status"`
	WasteTypes        []string `json:"waste_types"`
}

// Key implements the optimistic-list record contract.
func (p Pickup) Key() string { return p.ID }

// ============================================================
// Wallet transactions
// ============================================================

// Transaction kinds.
const (
	TxCredit = "Credit"
	TxDebit  = "Debit"
)

// Transaction is a collector wallet ledger entry. Amount is always
// non-negative; the kind carries the sign.
type Transaction struct {
	ID          string  `json:"id"`
	CollectorID string  `json:"collector_id"`
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"` // YYYY-MM-DD
	Description string  `json:"description"`
}

// Key implements the optimistic-list record contract.
func (t Transaction) Key() string { return t.ID }

// ============================================================
// Recycling records
// ============================================================

// RecyclingRecord is one uploaded recyclables entry (user upload or
// collector "record recycling data").
type RecyclingRecord struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	WasteType string    `json:"waste_type"`
	WeightKg  float64   `json:"weight_kg"`
	CreatedAt time.Time `json:"created_at"`
}

// ============================================================
// Auth requests / responses
// ============================================================

// RegistrationProfile carries the role-specific fields collected at sign-up.
type RegistrationProfile struct {
	// User fields
	FullName string `json:"full_name,omitempty"`
	Address  string `json:"address,omitempty"`

	// Collector fields
	BusinessName       string   `json:"business_name,omitempty"`
	OwnerName          string   `json:"owner_name,omitempty"`
	RegistrationNumber string   `json:"registration_number,omitempty"`
	ServiceAreas       []string `json:"service_areas,omitempty"`
	BankAccountName    string   `json:"bank_account_name,omitempty"`
	BankAccountNumber  string   `json:"bank_account_number,omitempty"`
	BankName           string   `json:"bank_name,omitempty"`

	// Shared
	Phone string `json:"phone,omitempty"`
}

// RegisterRequest is the sign-up payload.
type RegisterRequest struct {
	Email    string              `json:"email"`
	Password string              `json:"password"`
	Role     RoleKind            `json:"role"`
	Profile  RegistrationProfile `json:"profile"`
}

// RegisterResponse confirms account creation.
type RegisterResponse struct {
	Identity Identity `json:"identity"`
	Role     RoleKind `json:"role"`
	Message  string   `json:"message"`
}

// LoginRequest is the sign-in payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries tokens plus the resolved role so the client shell
// can route straight to the matching dashboard.
type LoginResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int      `json:"expires_in"`
	Identity     Identity `json:"identity"`
	Role         RoleKind `json:"role"`
}

// RefreshRequest exchanges a refresh token for a new token pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthChange is one entry of the auth collaborator's change feed.
type AuthChange struct {
	Event    string    // "SIGNED_IN", "SIGNED_OUT", "TOKEN_REFRESHED"
	Identity *Identity // nil on sign-out
}

// Auth change feed events.
const (
	AuthSignedIn       = "SIGNED_IN"
	AuthSignedOut      = "SIGNED_OUT"
	AuthTokenRefreshed = "TOKEN_REFRESHED"
)

// ============================================================
// Mutation requests
// ============================================================

// BookingRequest is the pickup booking / log-pickup payload.
type BookingRequest struct {
	Address       string   `json:"address"`
	ScheduledDate string   `json:"scheduled_date"` // YYYY-MM-DD
	TimeSlot      string   `json:"time_slot"`
	WasteTypes    []string `json:"waste_types,omitempty"`
}

// WithdrawalRequest is the collector withdraw-funds payload.
type WithdrawalRequest struct {
	Amount float64 `json:"amount"`
}

// RecyclingUploadRequest records recyclables weight for the caller.
type RecyclingUploadRequest struct {
	WasteType string  `json:"waste_type"`
	WeightKg  float64 `json:"weight_kg"`
}

// ============================================================
// Dashboards
// ============================================================

// UserDashboard aggregates everything the user dashboard renders.
type UserDashboard struct {
	Profile         *UserProfile `json:"profile"`
	UpcomingPickups []Pickup     `json:"upcoming_pickups"`
}

// CollectorDashboard aggregates everything the collector dashboard renders.
type CollectorDashboard struct {
	Profile            *CollectorProfile `json:"profile"`
	Pickups            []Pickup          `json:"pickups"`
	RecentTransactions []Transaction     `json:"recent_transactions"`
	WalletBalance      float64           `json:"wallet_balance"`
}

// Impact is the mobile Home tab impact card.
type Impact struct {
	CO2SavedKg       float64 `json:"co2_saved_kg"`
	TotalRecyclingKg float64 `json:"total_recycling_kg"`
	EcoPoints        int     `json:"eco_points"`
}

// ============================================================
// Recycling guide (mobile Guide tab)
// ============================================================

// GuideCategory is one waste category with its handling tips.
type GuideCategory struct {
	Name string   `json:"name"`
	Tips []string `json:"tips"`
}

// ============================================================
// Ops metrics snapshot
// ============================================================

// OpsSnapshot is the JSON view of the operational counters, served on
// GET /v1/metrics/ops.
type OpsSnapshot struct {
	TotalRequests       int64   `json:"total_requests"`
	ErrorRate           float64 `json:"error_rate"`
	CacheHitRate        float64 `json:"cache_hit_rate"`
	MutationsSubmitted  int64   `json:"mutations_submitted"`
	MutationsReconciled int64   `json:"mutations_reconciled"`
	MutationsFailed     int64   `json:"mutations_failed"`
	Period              string  `json:"period"`
}
