package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cleanearth/cleanearth-bff-go/internal/domain"
	"github.com/cleanearth/cleanearth-bff-go/internal/port"

	"go.uber.org/zap"
)

// Dev-only handlers, mounted behind DEV_MODE. Useful for exercising the
// wallet and ledger surfaces against an empty store.

type addBalanceRequest struct {
	CollectorID string  `json:"collector_id"`
	Amount      float64 `json:"amount"`
}

func devAddBalanceHandler(profiles port.ProfileStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/dev/add-balance")
		defer span.End()

		var req addBalanceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.CollectorID == "" {
			writeError(w, http.StatusBadRequest, "collector_id is required")
			return
		}

		profile, err := profiles.GetCollectorProfile(ctx, req.CollectorID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if profile == nil {
			writeError(w, http.StatusNotFound, "collector profile not found")
			return
		}

		newBalance := profile.WalletBalance + req.Amount
		if err := profiles.UpdateWalletBalance(ctx, req.CollectorID, newBalance); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]float64{"wallet_balance": newBalance})
	}
}

type seedTransactionsRequest struct {
	CollectorID string `json:"collector_id"`
	Count       int    `json:"count"`
}

func devSeedTransactionsHandler(transactions port.TransactionStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/dev/seed-transactions")
		defer span.End()

		var req seedTransactionsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.CollectorID == "" {
			writeError(w, http.StatusBadRequest, "collector_id is required")
			return
		}
		if req.Count <= 0 || req.Count > 100 {
			req.Count = 10
		}

		created := 0
		for i := 0; i < req.Count; i++ {
			tx := domain.Transaction{
				CollectorID: req.CollectorID,
				Type:        domain.TxCredit,
				Amount:      float64(500 + i*250),
				Date:        time.Now().AddDate(0, 0, -i).Format("2006-01-02"),
				Description: fmt.Sprintf("Seeded Subscription Payment #%d", i+1),
			}
			if i%3 == 2 {
				tx.Type = domain.TxDebit
				tx.Description = fmt.Sprintf("Seeded Commission Fee #%d", i+1)
			}
			if _, err := transactions.CreateTransaction(ctx, &tx); err != nil {
				logger.Warn("seed transaction failed", zap.Int("index", i), zap.Error(err))
				continue
			}
			created++
		}
		writeJSON(w, http.StatusOK, map[string]int{"created": created})
	}
}
