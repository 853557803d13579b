package service

import (
	"context"
	"math"

	"github.com/cleanearth/cleanearth-bff-go/internal/domain"
	"github.com/cleanearth/cleanearth-bff-go/internal/port"
	"github.com/cleanearth/cleanearth-bff-go/internal/session"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var recyclingTracer = otel.Tracer("service/recycling")

const (
	ecoPointsPerKg = 10
	co2PerKg       = 2.5 // kg CO2 avoided per kg recycled
)

// RecyclingService records recyclables and keeps the user impact totals
// in step with them.
type RecyclingService struct {
	records      port.RecyclingStore
	profiles     port.ProfileStore
	profileCache port.Cache[*domain.UserProfile]
	logger       *zap.Logger
}

func NewRecyclingService(records port.RecyclingStore, profiles port.ProfileStore, profileCache port.Cache[*domain.UserProfile], logger *zap.Logger) *RecyclingService {
	return &RecyclingService{
		records:      records,
		profiles:     profiles,
		profileCache: profileCache,
		logger:       logger,
	}
}

// ============================================================
// Upload — POST /v1/user/recycling (also /v1/collector/recycling)
// ============================================================

// Upload stores the record synchronously. For users it then bumps the
// impact totals; the totals write is secondary, its failure leaves the
// record in place and is only logged.
func (s *RecyclingService) Upload(ctx context.Context, sess *session.Session, req *domain.RecyclingUploadRequest) (*domain.RecyclingRecord, error) {
	ctx, span := recyclingTracer.Start(ctx, "RecyclingService.Upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("identity.id", sess.Identity.ID),
		attribute.Float64("weight_kg", req.WeightKg),
	)

	if req.WasteType == "" {
		return nil, &domain.ErrValidation{Field: "waste_type", Message: "required"}
	}
	if req.WeightKg <= 0 {
		return nil, &domain.ErrValidation{Field: "weight_kg", Message: "must be positive"}
	}

	saved, err := s.records.CreateRecyclingRecord(ctx, &domain.RecyclingRecord{
		OwnerID:   sess.Identity.ID,
		WasteType: req.WasteType,
		WeightKg:  req.WeightKg,
	})
	if err != nil {
		return nil, err
	}

	if sess.Role == domain.RoleUser {
		s.bumpTotals(ctx, sess.Identity.ID, req.WeightKg)
	}

	s.logger.Info("recycling recorded",
		zap.String("record_id", saved.ID),
		zap.String("waste_type", req.WasteType),
		zap.Float64("weight_kg", req.WeightKg),
	)
	return saved, nil
}

func (s *RecyclingService) bumpTotals(ctx context.Context, userID string, weightKg float64) {
	profile, err := s.profiles.GetUserProfile(ctx, userID)
	if err != nil || profile == nil {
		s.logger.Warn("recycling: totals not updated, profile unavailable",
			zap.String("identity_id", userID), zap.Error(err))
		return
	}

	updates := map[string]any{
		"eco_points":         profile.EcoPoints + int(math.Round(weightKg*ecoPointsPerKg)),
		"total_recycling_kg": profile.TotalRecyclingKg + weightKg,
		"co2_saved_kg":       profile.CO2SavedKg + weightKg*co2PerKg,
	}
	if err := s.profiles.UpdateUserTotals(ctx, userID, updates); err != nil {
		s.logger.Error("recycling: totals update failed",
			zap.String("identity_id", userID), zap.Error(err))
		return
	}
	s.profileCache.Delete(userID)
}

// ============================================================
// History — GET /v1/user/recycling
// ============================================================

func (s *RecyclingService) History(ctx context.Context, ownerID string, limit int) ([]domain.RecyclingRecord, error) {
	ctx, span := recyclingTracer.Start(ctx, "RecyclingService.History")
	defer span.End()

	return s.records.ListRecyclingRecords(ctx, ownerID, limit)
}
