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
)

var bookingTracer = otel.Tracer("service/booking")

// BookingService runs the pickup booking flow. Submissions render into
// the session view immediately; persistence happens detached from the
// request, exactly once, with no retry and no rollback.
type BookingService struct {
	pickups port.PickupStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewBookingService(pickups port.PickupStore, metrics *observability.Metrics, logger *zap.Logger) *BookingService {
	return &BookingService{pickups: pickups, metrics: metrics, logger: logger}
}

// ============================================================
// Book — POST /v1/user/pickups (also POST /v1/collector/pickups)
// ============================================================

// Book validates the request, prepends a temporary record to the session's
// pickup list and kicks off background persistence. The returned record
// carries a temp key; callers see it replaced in place once the store
// confirms, and see it unchanged forever if the store does not.
func (s *BookingService) Book(ctx context.Context, sess *session.Session, req *domain.BookingRequest) (*domain.Pickup, error) {
	ctx, span := bookingTracer.Start(ctx, "BookingService.Book")
	defer span.End()
	span.SetAttributes(attribute.String("identity.id", sess.Identity.ID))

	flow := session.NewFlow()

	if err := validateBooking(req); err != nil {
		// Validation failures never leave the input step; the store is
		// not touched.
		return nil, err
	}
	flow.To(session.FlowConfirming)
	flow.To(session.FlowSubmitting)

	optimistic := domain.Pickup{
		ID:                session.NewTempKey(),
		ScheduledDate:     req.ScheduledDate,
		ScheduledTimeSlot: req.TimeSlot,
		Address:           req.Address,
		Status:            domain.PickupPending,
		WasteTypes:        req.WasteTypes,
	}
	if sess.Role == domain.RoleCollector {
		optimistic.CollectorID = sess.Identity.ID
	} else {
		optimistic.UserID = sess.Identity.ID
	}
	if optimistic.WasteTypes == nil {
		optimistic.WasteTypes = []string{}
	}

	sess.View.Pickups.Prepend(optimistic)
	sess.View.Mutations.Submitted(optimistic.ID)
	s.metrics.IncrMutation("booking", "submitted")

	// Detached from the request: the caller has already been answered by
	// the time this write runs.
	go s.persist(context.WithoutCancel(ctx), sess, optimistic)

	flow.To(session.FlowDone)
	return &optimistic, nil
}

func (s *BookingService) persist(ctx context.Context, sess *session.Session, optimistic domain.Pickup) {
	toStore := optimistic
	toStore.ID = "" // the store assigns the real id

	saved, err := s.pickups.CreatePickup(ctx, &toStore)
	if err != nil {
		// The optimistic record stays in the view as-is. No retry, no
		// rollback; the divergence heals on the next full fetch.
		sess.View.Mutations.Failed(optimistic.ID, err)
		s.metrics.IncrMutation("booking", "failed")
		s.logger.Error("pickup persistence failed",
			zap.String("temp_key", optimistic.ID),
			zap.String("identity_id", sess.Identity.ID),
			zap.Error(err),
		)
		return
	}

	sess.View.Pickups.Swap(optimistic.ID, *saved)
	sess.View.Mutations.Reconciled(optimistic.ID, saved.ID)
	s.metrics.IncrMutation("booking", "reconciled")
	s.logger.Info("pickup persisted",
		zap.String("temp_key", optimistic.ID),
		zap.String("pickup_id", saved.ID),
	)
}

func validateBooking(req *domain.BookingRequest) error {
	if req.Address == "" {
		return &domain.ErrValidation{Field: "address", Message: "required"}
	}
	if req.ScheduledDate == "" {
		return &domain.ErrValidation{Field: "scheduled_date", Message: "required"}
	}
	if _, err := time.Parse("2006-01-02", req.ScheduledDate); err != nil {
		return &domain.ErrValidation{Field: "scheduled_date", Message: "invalid format, use YYYY-MM-DD"}
	}
	if !domain.ValidTimeSlot(req.TimeSlot) {
		return &domain.ErrValidation{Field: "time_slot", Message: "must be Morning, Afternoon or Evening"}
	}
	return nil
}

// ============================================================
// List — GET /v1/user/pickups, GET /v1/collector/pickups
// ============================================================

// List refreshes the session's pickup list from the store and returns
// it. A fresh fetch replaces whatever the view currently holds,
// optimistic records included. When the store is unreachable the view
// keeps serving its last known list.
func (s *BookingService) List(ctx context.Context, sess *session.Session, limit int) []domain.Pickup {
	ctx, span := bookingTracer.Start(ctx, "BookingService.List")
	defer span.End()

	var items []domain.Pickup
	var err error
	if sess.Role == domain.RoleCollector {
		items, err = s.pickups.ListCollectorPickups(ctx, sess.Identity.ID, limit)
	} else {
		items, err = s.pickups.ListUserPickups(ctx, sess.Identity.ID, limit)
	}
	if err != nil {
		s.logger.Warn("pickup list fetch failed, serving last known view",
			zap.String("identity_id", sess.Identity.ID),
			zap.Error(err),
		)
		return sess.View.Pickups.Snapshot()
	}

	sess.View.Pickups.Reset(items)
	return sess.View.Pickups.Snapshot()
}

// ============================================================
// Pickup status — PATCH /v1/collector/pickups/{id}
// ============================================================

// UpdateStatus moves a pickup between statuses. This is a plain
// synchronous write; only bookings and withdrawals go through the
// optimistic path.
func (s *BookingService) UpdateStatus(ctx context.Context, pickupID, status string) error {
	ctx, span := bookingTracer.Start(ctx, "BookingService.UpdateStatus")
	defer span.End()

	switch status {
	case domain.PickupPending, domain.PickupInProgress, domain.PickupCompleted, domain.PickupCancelled:
	default:
		return &domain.ErrValidation{Field: "status", Message: "unknown status"}
	}

	return s.pickups.UpdatePickupStatus(ctx, pickupID, status)
}
