package handler

import (
	"encoding/json"
	"net/http"

	"github.com/cleanearth/cleanearth-bff-go/internal/domain"
	"github.com/cleanearth/cleanearth-bff-go/internal/service"

	"go.uber.org/zap"
)

func withdrawHandler(svc *service.WalletService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/collector/withdrawals")
		defer span.End()

		sess := sessionFromContext(ctx)

		var req domain.WithdrawalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		tx, err := svc.Withdraw(ctx, sess, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, tx)
	}
}

func listTransactionsHandler(svc *service.WalletService, limit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/collector/transactions")
		defer span.End()

		sess := sessionFromContext(ctx)
		items := svc.Transactions(ctx, sess, parseLimit(r, limit, 100))
		writeJSON(w, http.StatusOK, items)
	}
}
