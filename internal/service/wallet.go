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

var walletTracer = otel.Tracer("service/wallet")

// WalletService runs the collector withdrawal flow. Like bookings,
// withdrawals are optimistic: the displayed balance drops and the ledger
// entry appears before the store is asked, and neither is ever rolled
// back if the store says no.
type WalletService struct {
	profiles     port.ProfileStore
	transactions port.TransactionStore
	profileCache port.Cache[*domain.CollectorProfile]
	metrics      *observability.Metrics
	logger       *zap.Logger
}

func NewWalletService(
	profiles port.ProfileStore,
	transactions port.TransactionStore,
	profileCache port.Cache[*domain.CollectorProfile],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *WalletService {
	return &WalletService{
		profiles:     profiles,
		transactions: transactions,
		profileCache: profileCache,
		metrics:      metrics,
		logger:       logger,
	}
}

// ============================================================
// Withdraw — POST /v1/collector/withdrawals
// ============================================================

// Withdraw deducts the displayed balance, prepends a temporary debit to
// the session ledger and persists in the background. There is no balance
// check: the amount is taken at face value, and a repeated submission
// after a persistence failure deducts the display again.
func (s *WalletService) Withdraw(ctx context.Context, sess *session.Session, req *domain.WithdrawalRequest) (*domain.Transaction, error) {
	ctx, span := walletTracer.Start(ctx, "WalletService.Withdraw")
	defer span.End()
	span.SetAttributes(
		attribute.String("identity.id", sess.Identity.ID),
		attribute.Float64("amount", req.Amount),
	)

	flow := session.NewFlow()

	if req.Amount <= 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	flow.To(session.FlowConfirming)
	flow.To(session.FlowSubmitting)

	optimistic := domain.Transaction{
		ID:          session.NewTempKey(),
		CollectorID: sess.Identity.ID,
		Type:        domain.TxDebit,
		Amount:      req.Amount,
		Date:        time.Now().Format("2006-01-02"),
		Description: "Payout Withdrawal",
	}

	sess.View.DeductWallet(req.Amount)
	sess.View.Transactions.Prepend(optimistic)
	sess.View.Mutations.Submitted(optimistic.ID)
	s.metrics.IncrMutation("withdrawal", "submitted")

	go s.persist(context.WithoutCancel(ctx), sess, optimistic)

	flow.To(session.FlowDone)
	return &optimistic, nil
}

// ============================================================
// Ledger — GET /v1/collector/transactions
// ============================================================

// Transactions refreshes the session ledger from the store and returns
// it. Optimistic entries are replaced by whatever the store holds; when
// the store is unreachable the last known view is served instead.
func (s *WalletService) Transactions(ctx context.Context, sess *session.Session, limit int) []domain.Transaction {
	ctx, span := walletTracer.Start(ctx, "WalletService.Transactions")
	defer span.End()

	items, err := s.transactions.ListTransactions(ctx, sess.Identity.ID, limit)
	if err != nil {
		s.logger.Warn("transaction list fetch failed, serving last known view",
			zap.String("identity_id", sess.Identity.ID),
			zap.Error(err),
		)
		return sess.View.Transactions.Snapshot()
	}

	sess.View.Transactions.Reset(items)
	return sess.View.Transactions.Snapshot()
}

// persist writes the ledger entry and then patches the wallet balance.
// The two writes are independent: a failure between them leaves a debit
// entry with an untouched stored balance.
func (s *WalletService) persist(ctx context.Context, sess *session.Session, optimistic domain.Transaction) {
	toStore := optimistic
	toStore.ID = ""

	saved, err := s.transactions.CreateTransaction(ctx, &toStore)
	if err != nil {
		sess.View.Mutations.Failed(optimistic.ID, err)
		s.metrics.IncrMutation("withdrawal", "failed")
		s.logger.Error("withdrawal persistence failed",
			zap.String("temp_key", optimistic.ID),
			zap.String("identity_id", sess.Identity.ID),
			zap.Error(err),
		)
		return
	}

	sess.View.Transactions.Swap(optimistic.ID, *saved)
	sess.View.Mutations.Reconciled(optimistic.ID, saved.ID)
	s.metrics.IncrMutation("withdrawal", "reconciled")

	profile, err := s.profiles.GetCollectorProfile(ctx, optimistic.CollectorID)
	if err != nil || profile == nil {
		s.logger.Error("withdrawal: balance read failed, stored balance not updated",
			zap.String("transaction_id", saved.ID),
			zap.String("identity_id", optimistic.CollectorID),
			zap.Error(err),
		)
		return
	}

	newBalance := profile.WalletBalance - optimistic.Amount
	if err := s.profiles.UpdateWalletBalance(ctx, optimistic.CollectorID, newBalance); err != nil {
		s.logger.Error("withdrawal: balance update failed after ledger write",
			zap.String("transaction_id", saved.ID),
			zap.String("identity_id", optimistic.CollectorID),
			zap.Error(err),
		)
		return
	}
	s.profileCache.Delete(optimistic.CollectorID)

	s.logger.Info("withdrawal persisted",
		zap.String("transaction_id", saved.ID),
		zap.Float64("amount", optimistic.Amount),
		zap.Float64("new_balance", newBalance),
	)
}
