package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cleanearth/cleanearth-bff-go/internal/domain"

	"go.uber.org/zap"
)

func TestUploadBumpsUserTotals(t *testing.T) {
	records := &fakeRecyclingStore{}
	profiles := &fakeProfileStore{user: &domain.UserProfile{
		ID: "u1", EcoPoints: 100, TotalRecyclingKg: 10, CO2SavedKg: 25,
	}}
	svc := NewRecyclingService(records, profiles, userCache(), zap.NewNop())

	saved, err := svc.Upload(context.Background(), userSession("u1"), &domain.RecyclingUploadRequest{
		WasteType: "Plastic",
		WeightKg:  4,
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if saved.ID == "" || saved.WasteType != "Plastic" {
		t.Errorf("record = %+v", saved)
	}

	if len(profiles.totalsUpdates) != 1 {
		t.Fatalf("totals updates = %d", len(profiles.totalsUpdates))
	}
	u := profiles.totalsUpdates[0]
	if u["eco_points"] != 140 {
		t.Errorf("eco_points = %v", u["eco_points"])
	}
	if u["total_recycling_kg"] != 14.0 {
		t.Errorf("total_recycling_kg = %v", u["total_recycling_kg"])
	}
	if u["co2_saved_kg"] != 35.0 {
		t.Errorf("co2_saved_kg = %v", u["co2_saved_kg"])
	}
}

func TestUploadCollectorSkipsTotals(t *testing.T) {
	records := &fakeRecyclingStore{}
	profiles := &fakeProfileStore{}
	svc := NewRecyclingService(records, profiles, userCache(), zap.NewNop())

	if _, err := svc.Upload(context.Background(), collectorSession("c1"), &domain.RecyclingUploadRequest{
		WasteType: "Metal",
		WeightKg:  12,
	}); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(profiles.totalsUpdates) != 0 {
		t.Error("collector upload touched user totals")
	}
}

func TestUploadValidation(t *testing.T) {
	svc := NewRecyclingService(&fakeRecyclingStore{}, &fakeProfileStore{}, userCache(), zap.NewNop())

	for _, req := range []domain.RecyclingUploadRequest{
		{WasteType: "", WeightKg: 1},
		{WasteType: "Plastic", WeightKg: 0},
		{WasteType: "Plastic", WeightKg: -2},
	} {
		_, err := svc.Upload(context.Background(), userSession("u1"), &req)
		var verr *domain.ErrValidation
		if !errors.As(err, &verr) {
			t.Errorf("req %+v: expected validation error, got %v", req, err)
		}
	}
}

func TestUploadTotalsFailureKeepsRecord(t *testing.T) {
	records := &fakeRecyclingStore{}
	profiles := &fakeProfileStore{
		user:      &domain.UserProfile{ID: "u1"},
		updateErr: errors.New("profiles down"),
	}
	svc := NewRecyclingService(records, profiles, userCache(), zap.NewNop())

	saved, err := svc.Upload(context.Background(), userSession("u1"), &domain.RecyclingUploadRequest{
		WasteType: "Organic",
		WeightKg:  2,
	})
	if err != nil {
		t.Fatalf("totals failure must not fail the upload: %v", err)
	}
	if saved == nil {
		t.Fatal("record missing")
	}
	if len(records.created) != 1 {
		t.Errorf("records = %d", len(records.created))
	}
}

func TestGuideCategories(t *testing.T) {
	svc := NewGuideService(&fakeProfileStore{})
	cats := svc.Categories(context.Background())

	if len(cats) != 5 {
		t.Fatalf("categories = %d", len(cats))
	}
	want := []string{"General", "Plastic", "Metal", "Organic", "E-Waste"}
	for i, name := range want {
		if cats[i].Name != name {
			t.Errorf("category %d = %q, want %q", i, cats[i].Name, name)
		}
		if len(cats[i].Tips) == 0 {
			t.Errorf("category %q has no tips", name)
		}
	}
}

func TestImpactMissingProfileYieldsZeros(t *testing.T) {
	svc := NewGuideService(&fakeProfileStore{})
	impact, err := svc.Impact(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("impact: %v", err)
	}
	if impact.EcoPoints != 0 || impact.CO2SavedKg != 0 {
		t.Errorf("impact = %+v", impact)
	}
}
