package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shalconnects/balanze-ledger-go/internal/domain"
	"github.com/shalconnects/balanze-ledger-go/internal/infra/observability"
	"github.com/shalconnects/balanze-ledger-go/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var transferTracer = otel.Tracer("service/transfer")

// TransferService moves money between two owned accounts by writing a
// paired expense/income leg. There is no backend transaction spanning
// the legs: a failing second leg triggers a compensating delete of the
// first, keyed by a shared correlation tag.
type TransferService struct {
	accounts port.AccountStore
	ledger   port.LedgerStore
	audit    port.AuditLogger
	state    *StateCache
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewTransferService creates a TransferService.
func NewTransferService(
	accounts port.AccountStore,
	ledger port.LedgerStore,
	audit port.AuditLogger,
	state *StateCache,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *TransferService {
	return &TransferService{
		accounts: accounts,
		ledger:   ledger,
		audit:    audit,
		state:    state,
		metrics:  metrics,
		logger:   logger,
	}
}

// ============================================================
// Account-to-account transfer
// ============================================================

// Transfer executes a two-leg transfer: an expense on the source, an
// income on the destination (converted by the exchange rate), then two
// balance writes. The destination leg failing rolls back the source leg
// by the shared correlation tag; a failing balance write after both legs
// committed is surfaced as-is.
func (s *TransferService) Transfer(ctx context.Context, userID string, req domain.TransferRequest) (*domain.TransferResult, error) {
	ctx, span := transferTracer.Start(ctx, "TransferService.Transfer")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("transfer.from", req.FromAccountID),
		attribute.String("transfer.to", req.ToAccountID),
	)

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("transfer", time.Since(start))
	}()

	if err := validateTransferRequest(req); err != nil {
		return nil, err
	}

	fromAccount, err := s.accounts.GetAccount(ctx, userID, req.FromAccountID)
	if err != nil {
		return nil, err
	}
	toAccount, err := s.accounts.GetAccount(ctx, userID, req.ToAccountID)
	if err != nil {
		return nil, err
	}

	// Pre-check against the last known balance. The backend remains the
	// authority; this only rejects obvious overdrafts early.
	if fromAccount.CalculatedBalance < req.FromAmount {
		return nil, &domain.ErrInsufficientFunds{
			Available: fromAccount.CalculatedBalance,
			Required:  req.FromAmount,
		}
	}

	rate := req.ExchangeRate
	if rate <= 0 {
		rate = 1
	}

	fromAmount := decimal.NewFromFloat(req.FromAmount)
	toAmount := fromAmount.Mul(decimal.NewFromFloat(rate)).Round(2)
	fromBalanceAfter := decimal.NewFromFloat(fromAccount.CalculatedBalance).Sub(fromAmount)
	toBalanceAfter := decimal.NewFromFloat(toAccount.CalculatedBalance).Add(toAmount)

	transferID := uuid.NewString()
	humanID := req.TransactionID
	if humanID == "" {
		humanID = domain.GenerateTransactionID()
	}
	now := time.Now().Format(time.RFC3339)

	sourceNote := req.Note
	if sourceNote == "" {
		sourceNote = "Transfer to " + toAccount.Name
	}
	destNote := req.Note
	if destNote == "" {
		destNote = "Transfer from " + fromAccount.Name
	}

	// Source leg.
	_, err = s.ledger.InsertTransaction(ctx, userID, map[string]any{
		"account_id":             req.FromAccountID,
		"amount":                 req.FromAmount,
		"type":                   "expense",
		"category":               "Transfer",
		"description":            sourceNote,
		"date":                   now,
		"transaction_id":         humanID,
		"tags":                   []string{"transfer", transferID, req.ToAccountID, toAmount.String()},
		"balance_after_transfer": fromBalanceAfter.InexactFloat64(),
		"transfer_time":          now,
	})
	if err != nil {
		s.metrics.IncrLedgerWrite("transfer_leg", "error")
		if pl := domain.ClassifyPlanLimit(err); pl != nil {
			s.metrics.IncrPlanLimit(pl.Code)
			return nil, pl
		}
		return nil, err
	}

	// Destination leg. On failure, delete every row tagged with this
	// transfer's correlation id (the committed source leg).
	_, err = s.ledger.InsertTransaction(ctx, userID, map[string]any{
		"account_id":             req.ToAccountID,
		"amount":                 toAmount.InexactFloat64(),
		"type":                   "income",
		"category":               "Transfer",
		"description":            destNote,
		"date":                   now,
		"transaction_id":         humanID,
		"tags":                   []string{"transfer", transferID, req.FromAccountID, fromAmount.String()},
		"balance_after_transfer": toBalanceAfter.InexactFloat64(),
		"transfer_time":          now,
	})
	if err != nil {
		s.metrics.IncrLedgerWrite("transfer_leg", "error")
		s.compensate(ctx, userID, "transfer", []string{"transfer", transferID})
		if pl := domain.ClassifyPlanLimit(err); pl != nil {
			s.metrics.IncrPlanLimit(pl.Code)
			return nil, pl
		}
		return nil, err
	}
	s.metrics.IncrLedgerWrite("transfer_leg", "success")

	// Balance writes. Both legs are committed at this point; a failure
	// here is reported, not compensated.
	if err := s.accounts.UpdateAccountBalance(ctx, userID, req.FromAccountID, fromBalanceAfter.InexactFloat64()); err != nil {
		return nil, fmt.Errorf("transfer committed but source balance update failed: %w", err)
	}
	if err := s.accounts.UpdateAccountBalance(ctx, userID, req.ToAccountID, toBalanceAfter.InexactFloat64()); err != nil {
		return nil, fmt.Errorf("transfer committed but destination balance update failed: %w", err)
	}

	s.state.InvalidateTransactions(userID)
	s.state.InvalidateAccounts(userID)

	s.logActivity(ctx, userID, domain.ActivityTransferCreated, humanID,
		fmt.Sprintf("Transferred %s from %s to %s", fromAmount.StringFixed(2), fromAccount.Name, toAccount.Name),
		map[string]any{
			"transfer_id":     transferID,
			"from_account_id": req.FromAccountID,
			"to_account_id":   req.ToAccountID,
			"from_amount":     req.FromAmount,
			"to_amount":       toAmount.InexactFloat64(),
		},
	)

	return &domain.TransferResult{
		TransferID:       transferID,
		TransactionID:    humanID,
		FromAccountID:    req.FromAccountID,
		ToAccountID:      req.ToAccountID,
		FromAmount:       req.FromAmount,
		ToAmount:         toAmount.InexactFloat64(),
		FromBalanceAfter: fromBalanceAfter.InexactFloat64(),
		ToBalanceAfter:   toBalanceAfter.InexactFloat64(),
		TransferTime:     now,
	}, nil
}

func validateTransferRequest(req domain.TransferRequest) error {
	if req.FromAccountID == "" {
		return &domain.ErrValidation{Field: "from_account_id", Message: "source account is required"}
	}
	if req.ToAccountID == "" {
		return &domain.ErrValidation{Field: "to_account_id", Message: "destination account is required"}
	}
	if req.FromAccountID == req.ToAccountID {
		return &domain.ErrValidation{Field: "to_account_id", Message: "source and destination must differ"}
	}
	if req.FromAmount <= 0 {
		return &domain.ErrValidation{Field: "from_amount", Message: "amount must be positive"}
	}
	return nil
}

// ============================================================
// DPS transfer
// ============================================================

// TransferDPS moves an automatic-savings amount from a DPS-enabled
// account into its linked savings account: two legs plus a dps_transfers
// record. Either follow-up write failing deletes everything tagged with
// this transfer's correlation tag.
func (s *TransferService) TransferDPS(ctx context.Context, userID string, req domain.DPSTransferRequest) (*domain.TransferResult, error) {
	ctx, span := transferTracer.Start(ctx, "TransferService.TransferDPS")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("transfer.from", req.FromAccountID),
	)

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("transfer_dps", time.Since(start))
	}()

	if req.FromAccountID == "" {
		return nil, &domain.ErrValidation{Field: "from_account_id", Message: "source account is required"}
	}
	if req.Amount <= 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "amount must be positive"}
	}

	fromAccount, err := s.accounts.GetAccount(ctx, userID, req.FromAccountID)
	if err != nil {
		return nil, err
	}
	if !fromAccount.HasDPS {
		return nil, &domain.ErrValidation{Field: "from_account_id", Message: "account does not have DPS enabled"}
	}
	if fromAccount.DPSSavingsAccountID == nil || *fromAccount.DPSSavingsAccountID == "" {
		return nil, &domain.ErrValidation{Field: "from_account_id", Message: "account has no linked DPS savings account"}
	}
	toAccount, err := s.accounts.GetAccount(ctx, userID, *fromAccount.DPSSavingsAccountID)
	if err != nil {
		return nil, err
	}

	amount := decimal.NewFromFloat(req.Amount)
	fromBalanceAfter := decimal.NewFromFloat(fromAccount.CalculatedBalance).Sub(amount)
	toBalanceAfter := decimal.NewFromFloat(toAccount.CalculatedBalance).Add(amount)

	transferID := uuid.NewString()
	correlationTag := "dps_transfer_" + transferID
	humanID := req.TransactionID
	if humanID == "" {
		humanID = domain.GenerateTransactionID()
	}
	now := time.Now().Format(time.RFC3339)

	// Source leg.
	_, err = s.ledger.InsertTransaction(ctx, userID, map[string]any{
		"account_id":             req.FromAccountID,
		"amount":                 req.Amount,
		"type":                   "expense",
		"category":               "DPS",
		"description":            "DPS Transfer to " + toAccount.Name,
		"date":                   now,
		"transaction_id":         humanID,
		"tags":                   []string{correlationTag},
		"balance_after_transfer": fromBalanceAfter.InexactFloat64(),
		"transfer_time":          now,
	})
	if err != nil {
		s.metrics.IncrLedgerWrite("dps_transfer_leg", "error")
		if pl := domain.ClassifyPlanLimit(err); pl != nil {
			s.metrics.IncrPlanLimit(pl.Code)
			return nil, pl
		}
		return nil, err
	}

	// Destination leg.
	_, err = s.ledger.InsertTransaction(ctx, userID, map[string]any{
		"account_id":             toAccount.ID,
		"amount":                 req.Amount,
		"type":                   "income",
		"category":               "DPS",
		"description":            "DPS Transfer from " + fromAccount.Name,
		"date":                   now,
		"transaction_id":         humanID,
		"tags":                   []string{correlationTag},
		"balance_after_transfer": toBalanceAfter.InexactFloat64(),
		"transfer_time":          now,
	})
	if err != nil {
		s.metrics.IncrLedgerWrite("dps_transfer_leg", "error")
		s.compensate(ctx, userID, "dps_transfer", []string{correlationTag})
		if pl := domain.ClassifyPlanLimit(err); pl != nil {
			s.metrics.IncrPlanLimit(pl.Code)
			return nil, pl
		}
		return nil, err
	}

	// Savings ledger record. A failure here rolls back both legs.
	if err := s.ledger.InsertDPSTransfer(ctx, &domain.DPSTransfer{
		UserID:        userID,
		FromAccountID: req.FromAccountID,
		ToAccountID:   toAccount.ID,
		Amount:        req.Amount,
		Date:          now,
		TransactionID: humanID,
	}); err != nil {
		s.metrics.IncrLedgerWrite("dps_transfer_record", "error")
		s.compensate(ctx, userID, "dps_transfer", []string{correlationTag})
		return nil, err
	}
	s.metrics.IncrLedgerWrite("dps_transfer_record", "success")

	s.state.InvalidateTransactions(userID)
	s.state.InvalidateAccounts(userID)

	s.logActivity(ctx, userID, domain.ActivityDPSTransferCreated, humanID,
		fmt.Sprintf("DPS transfer of %s from %s to %s", amount.StringFixed(2), fromAccount.Name, toAccount.Name),
		map[string]any{
			"transfer_id":     transferID,
			"from_account_id": req.FromAccountID,
			"to_account_id":   toAccount.ID,
			"amount":          req.Amount,
		},
	)

	return &domain.TransferResult{
		TransferID:       transferID,
		TransactionID:    humanID,
		FromAccountID:    req.FromAccountID,
		ToAccountID:      toAccount.ID,
		FromAmount:       req.Amount,
		ToAmount:         req.Amount,
		FromBalanceAfter: fromBalanceAfter.InexactFloat64(),
		ToBalanceAfter:   toBalanceAfter.InexactFloat64(),
		TransferTime:     now,
	}, nil
}

// ============================================================
// Helpers
// ============================================================

// compensate deletes every ledger row carrying the correlation tags.
// A failing compensation is logged loudly: it means an orphaned leg
// needs manual cleanup.
func (s *TransferService) compensate(ctx context.Context, userID, protocol string, tags []string) {
	s.metrics.IncrCompensation(protocol)
	if err := s.ledger.DeleteTransactionsByTags(ctx, userID, tags); err != nil {
		s.logger.Error("compensating delete failed, orphaned transfer leg",
			zap.String("protocol", protocol),
			zap.Strings("tags", tags),
			zap.Error(err),
		)
	}
}

func (s *TransferService) logActivity(ctx context.Context, userID, activityType, entityID, description string, details map[string]any) {
	if err := s.audit.LogActivity(ctx, &domain.ActivityLog{
		UserID:       userID,
		ActivityType: activityType,
		EntityType:   "transfer",
		EntityID:     entityID,
		Description:  description,
		Details:      details,
	}); err != nil {
		s.logger.Warn("audit log write failed", zap.Error(err))
	}
}
