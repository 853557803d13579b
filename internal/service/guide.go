package service

import (
	"context"

	"github.com/cleanearth/cleanearth-bff-go/internal/domain"
	"github.com/cleanearth/cleanearth-bff-go/internal/port"

	"go.opentelemetry.io/otel"
)

var guideTracer = otel.Tracer("service/guide")

// guideCategories is the static recycling guide content. Served as-is;
// there is no store behind it.
var guideCategories = []domain.GuideCategory{
	{
		Name: "General",
		Tips: []string{
			"Rinse containers before recycling to avoid contamination",
			"Flatten cardboard boxes to save collection space",
			"Separate waste by category before your pickup day",
		},
	},
	{
		Name: "Plastic",
		Tips: []string{
			"Check the resin code; types 1 (PET) and 2 (HDPE) are widely recyclable",
			"Remove caps and lids, they are often a different plastic",
			"Avoid bagging recyclables in plastic film",
		},
	},
	{
		Name: "Metal",
		Tips: []string{
			"Aluminium cans are infinitely recyclable, always set them aside",
			"Empty aerosol cans completely before recycling",
			"Scrap metal above a few kilograms is worth a dedicated pickup",
		},
	},
	{
		Name: "Organic",
		Tips: []string{
			"Compost fruit and vegetable scraps instead of binning them",
			"Keep cooked food and oils out of the organic stream",
			"Garden waste composts faster when shredded",
		},
	},
	{
		Name: "E-Waste",
		Tips: []string{
			"Never put batteries in regular waste, they cause collection fires",
			"Wipe personal data from devices before handing them over",
			"Cables and chargers count as e-waste too",
		},
	},
}

// GuideService serves the recycling guide and the per-user impact card.
type GuideService struct {
	profiles port.ProfileStore
}

func NewGuideService(profiles port.ProfileStore) *GuideService {
	return &GuideService{profiles: profiles}
}

// Categories returns the full guide.
func (s *GuideService) Categories(ctx context.Context) []domain.GuideCategory {
	_, span := guideTracer.Start(ctx, "GuideService.Categories")
	defer span.End()

	return guideCategories
}

// Impact returns the user's environmental impact figures. A missing
// profile yields zeros rather than an error; the card always renders.
func (s *GuideService) Impact(ctx context.Context, userID string) (*domain.Impact, error) {
	ctx, span := guideTracer.Start(ctx, "GuideService.Impact")
	defer span.End()

	profile, err := s.profiles.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return &domain.Impact{}, nil
	}

	return &domain.Impact{
		CO2SavedKg:       profile.CO2SavedKg,
		TotalRecyclingKg: profile.TotalRecyclingKg,
		EcoPoints:        profile.EcoPoints,
	}, nil
}
