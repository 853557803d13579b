package supabase

import (
	"context"
	"fmt"

	"github.com/cleanearth/cleanearth-bff-go/internal/domain"

	"github.com/google/uuid"
)

// ============================================================
// PickupStore implementation — pickups table
// ============================================================

// ListUserPickups returns the user's upcoming pickups: pending or
// in_progress, soonest first, bounded by limit.
func (c *Client) ListUserPickups(ctx context.Context, userID string, limit int) ([]domain.Pickup, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListUserPickups")
	defer span.End()

	path := fmt.Sprintf(
		"pickups?user_id=eq.%s&status=in.(%s,%s)&order=scheduled_date.asc&limit=%d",
		userID, domain.PickupPending, domain.PickupInProgress, limit,
	)
	body, err := c.getRows(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/pickups", Err: err}
	}
	if body == nil {
		return []domain.Pickup{}, nil
	}
	return decodeRows[domain.Pickup](body, "pickups")
}

// ListCollectorPickups returns pickups assigned to the collector,
// most recent scheduled date first, bounded by limit.
func (c *Client) ListCollectorPickups(ctx context.Context, collectorID string, limit int) ([]domain.Pickup, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListCollectorPickups")
	defer span.End()

	path := fmt.Sprintf(
		"pickups?collector_id=eq.%s&status=in.(%s,%s)&order=scheduled_date.desc&limit=%d",
		collectorID, domain.PickupPending, domain.PickupInProgress, limit,
	)
	body, err := c.getRows(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/pickups", Err: err}
	}
	if body == nil {
		return []domain.Pickup{}, nil
	}
	return decodeRows[domain.Pickup](body, "pickups")
}

// CreatePickup inserts a pickup row and returns the persisted record with
// its server id. The caller's temporary id is never sent.
func (c *Client) CreatePickup(ctx context.Context, p *domain.Pickup) (*domain.Pickup, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreatePickup")
	defer span.End()

	wasteTypes := p.WasteTypes
	if wasteTypes == nil {
		wasteTypes = []string{}
	}

	data := map[string]any{
		"id":                  uuid.New().String(),
		"scheduled_date":      p.ScheduledDate,
		"scheduled_time_slot": p.ScheduledTimeSlot,
		"address":             p.Address,
		"status":              p.Status,
		"waste_types":         wasteTypes,
	}
	if p.UserID != "" {
		data["user_id"] = p.UserID
	}
	if p.CollectorID != "" {
		data["collector_id"] = p.CollectorID
	}

	body, err := c.doPost(ctx, "pickups", data)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/pickups", Err: err}
	}

	rows, err := decodeRows[domain.Pickup](body, "pickups")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("pickup insert returned no representation")
	}
	return &rows[0], nil
}

// UpdatePickupStatus moves a pickup through the status enum.
func (c *Client) UpdatePickupStatus(ctx context.Context, pickupID, status string) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdatePickupStatus")
	defer span.End()

	path := fmt.Sprintf("pickups?id=eq.%s", pickupID)
	return c.doPatch(ctx, path, map[string]any{"status": status})
}
