package handler

import (
	"net/http"

	"github.com/cleanearth/cleanearth-bff-go/internal/service"

	"go.uber.org/zap"
)

func userDashboardHandler(svc *service.DashboardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/user/dashboard")
		defer span.End()

		sess := sessionFromContext(ctx)
		dashboard, err := svc.UserDashboard(ctx, sess)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, dashboard)
	}
}

func collectorDashboardHandler(svc *service.DashboardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/collector/dashboard")
		defer span.End()

		sess := sessionFromContext(ctx)
		dashboard, err := svc.CollectorDashboard(ctx, sess)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, dashboard)
	}
}
