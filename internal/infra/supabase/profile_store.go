package supabase

import (
	"context"
	"fmt"

	"github.com/cleanearth/cleanearth-bff-go/internal/domain"
)

// ============================================================
// ProfileStore implementation — user_profiles / collector_profiles
// ============================================================

// GetUserProfile fetches the waste-producer profile row. Returns (nil, nil)
// when no row exists, which the role resolver relies on.
func (c *Client) GetUserProfile(ctx context.Context, id string) (*domain.UserProfile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetUserProfile")
	defer span.End()

	path := fmt.Sprintf("user_profiles?id=eq.%s&limit=1", id)
	body, err := c.getRows(ctx, path)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	rows, err := decodeRows[domain.UserProfile](body, "user_profiles")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// GetCollectorProfile fetches the service-provider profile row. Returns
// (nil, nil) when no row exists.
func (c *Client) GetCollectorProfile(ctx context.Context, id string) (*domain.CollectorProfile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetCollectorProfile")
	defer span.End()

	path := fmt.Sprintf("collector_profiles?id=eq.%s&limit=1", id)
	body, err := c.getRows(ctx, path)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	rows, err := decodeRows[domain.CollectorProfile](body, "collector_profiles")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// CreateUserProfile inserts the user profile row at sign-up.
func (c *Client) CreateUserProfile(ctx context.Context, p *domain.UserProfile) error {
	ctx, span := tracer.Start(ctx, "Supabase.CreateUserProfile")
	defer span.End()

	data := map[string]any{
		"id":                       p.ID,
		"full_name":                p.FullName,
		"phone":                    p.Phone,
		"address":                  p.Address,
		"eco_points":               p.EcoPoints,
		"total_waste_collected_kg": p.TotalWasteCollectedKg,
		"total_recycling_kg":       p.TotalRecyclingKg,
		"co2_saved_kg":             p.CO2SavedKg,
	}
	_, err := c.doPost(ctx, "user_profiles", data)
	if err != nil {
		return fmt.Errorf("create user profile: %w", err)
	}
	return nil
}

// CreateCollectorProfile inserts the collector profile row at sign-up.
// Verification always starts pending.
func (c *Client) CreateCollectorProfile(ctx context.Context, p *domain.CollectorProfile) error {
	ctx, span := tracer.Start(ctx, "Supabase.CreateCollectorProfile")
	defer span.End()

	serviceAreas := p.ServiceAreas
	if serviceAreas == nil {
		serviceAreas = []string{}
	}

	data := map[string]any{
		"id":                  p.ID,
		"business_name":       p.BusinessName,
		"owner_name":          p.OwnerName,
		"registration_number": p.RegistrationNumber,
		"phone":               p.Phone,
		"email":               p.Email,
		"service_areas":       serviceAreas,
		"wallet_balance":      p.WalletBalance,
		"verification_status": domain.VerificationPending,
		"bank_account_name":   p.BankAccountName,
		"bank_account_number": p.BankAccountNumber,
		"bank_name":           p.BankName,
	}
	_, err := c.doPost(ctx, "collector_profiles", data)
	if err != nil {
		return fmt.Errorf("create collector profile: %w", err)
	}
	return nil
}

// UpdateUserTotals patches counters on the user profile (eco points,
// recycling weight, CO2 estimate).
func (c *Client) UpdateUserTotals(ctx context.Context, id string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateUserTotals")
	defer span.End()

	path := fmt.Sprintf("user_profiles?id=eq.%s", id)
	return c.doPatch(ctx, path, updates)
}

// UpdateWalletBalance overwrites the collector wallet balance. This is the
// second, independent write of the withdrawal flow; it carries no
// transaction boundary with the ledger insert.
func (c *Client) UpdateWalletBalance(ctx context.Context, id string, balance float64) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateWalletBalance")
	defer span.End()

	path := fmt.Sprintf("collector_profiles?id=eq.%s", id)
	return c.doPatch(ctx, path, map[string]any{"wallet_balance": balance})
}
