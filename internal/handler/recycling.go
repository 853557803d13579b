package handler

import (
	"encoding/json"
	"net/http"

	"github.com/cleanearth/cleanearth-bff-go/internal/domain"
	"github.com/cleanearth/cleanearth-bff-go/internal/service"

	"go.uber.org/zap"
)

func uploadRecyclableHandler(svc *service.RecyclingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST recyclables")
		defer span.End()

		sess := sessionFromContext(ctx)

		var req domain.RecyclingUploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		record, err := svc.Upload(ctx, sess, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, record)
	}
}

func recyclingHistoryHandler(svc *service.RecyclingService, limit int, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET recyclables")
		defer span.End()

		sess := sessionFromContext(ctx)
		records, err := svc.History(ctx, sess.Identity.ID, parseLimit(r, limit, 100))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func impactHandler(svc *service.GuideService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/user/impact")
		defer span.End()

		sess := sessionFromContext(ctx)
		impact, err := svc.Impact(ctx, sess.Identity.ID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, impact)
	}
}

func guideHandler(svc *service.GuideService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/guide")
		defer span.End()

		writeJSON(w, http.StatusOK, svc.Categories(ctx))
	}
}
