package handler

import (
	"encoding/json"
	"net/http"

	"github.com/cleanearth/cleanearth-bff-go/internal/domain"
	"github.com/cleanearth/cleanearth-bff-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func bookPickupHandler(svc *service.BookingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST pickups")
		defer span.End()

		sess := sessionFromContext(ctx)

		var req domain.BookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		pickup, err := svc.Book(ctx, sess, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		// The record carries a temp id until persistence confirms; 202
		// signals the write is still in flight.
		writeJSON(w, http.StatusAccepted, pickup)
	}
}

func listPickupsHandler(svc *service.BookingService, limit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET pickups")
		defer span.End()

		sess := sessionFromContext(ctx)
		items := svc.List(ctx, sess, parseLimit(r, limit, 100))
		writeJSON(w, http.StatusOK, items)
	}
}

func startPickupHandler(svc *service.BookingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/collector/pickups/{pickupID}/start")
		defer span.End()

		pickupID := chi.URLParam(r, "pickupID")
		if pickupID == "" {
			writeError(w, http.StatusBadRequest, "pickupID is required")
			return
		}

		if err := svc.UpdateStatus(ctx, pickupID, domain.PickupInProgress); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": pickupID, "status": domain.PickupInProgress})
	}
}
