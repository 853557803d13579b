package supabase

import (
	"context"
	"fmt"
	"time"

	"github.com/cleanearth/cleanearth-bff-go/internal/domain"

	"github.com/google/uuid"
)

// ============================================================
// TransactionStore implementation — transactions table
// ============================================================

// ListTransactions returns the collector's recent ledger entries,
// newest first, bounded by limit.
func (c *Client) ListTransactions(ctx context.Context, collectorID string, limit int) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListTransactions")
	defer span.End()

	path := fmt.Sprintf(
		"transactions?collector_id=eq.%s&order=date.desc&limit=%d",
		collectorID, limit,
	)
	body, err := c.getRows(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}
	if body == nil {
		return []domain.Transaction{}, nil
	}
	return decodeRows[domain.Transaction](body, "transactions")
}

// CreateTransaction inserts a ledger row and returns the persisted record.
func (c *Client) CreateTransaction(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateTransaction")
	defer span.End()

	date := t.Date
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	data := map[string]any{
		"id":           uuid.New().String(),
		"collector_id": t.CollectorID,
		"type":         t.Type,
		"amount":       t.Amount,
		"date":         date,
		"description":  t.Description,
	}

	body, err := c.doPost(ctx, "transactions", data)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}

	rows, err := decodeRows[domain.Transaction](body, "transactions")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("transaction insert returned no representation")
	}
	return &rows[0], nil
}

// ============================================================
// RecyclingStore implementation — recycling_records table
// ============================================================

// CreateRecyclingRecord inserts an uploaded recyclables entry.
func (c *Client) CreateRecyclingRecord(ctx context.Context, r *domain.RecyclingRecord) (*domain.RecyclingRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateRecyclingRecord")
	defer span.End()

	data := map[string]any{
		"id":         uuid.New().String(),
		"owner_id":   r.OwnerID,
		"waste_type": r.WasteType,
		"weight_kg":  r.WeightKg,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}

	body, err := c.doPost(ctx, "recycling_records", data)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/recycling", Err: err}
	}

	rows, err := decodeRows[domain.RecyclingRecord](body, "recycling_records")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("recycling insert returned no representation")
	}
	return &rows[0], nil
}

// ListRecyclingRecords returns the owner's recent uploads, newest first.
func (c *Client) ListRecyclingRecords(ctx context.Context, ownerID string, limit int) ([]domain.RecyclingRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListRecyclingRecords")
	defer span.End()

	path := fmt.Sprintf(
		"recycling_records?owner_id=eq.%s&order=created_at.desc&limit=%d",
		ownerID, limit,
	)
	body, err := c.getRows(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/recycling", Err: err}
	}
	if body == nil {
		return []domain.RecyclingRecord{}, nil
	}
	return decodeRows[domain.RecyclingRecord](body, "recycling_records")
}
