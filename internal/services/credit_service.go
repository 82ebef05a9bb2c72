package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/navid-f/TutorAppBack/internal/models"
	"github.com/navid-f/TutorAppBack/internal/repository"
)

var (
	ErrInvalidAmount       = errors.New("amount must be a positive multiple of 0.5")
	ErrReasonRequired      = errors.New("reason is required")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrAccountNotFound     = errors.New("credit account not found")
)

// CreditService is the ledger of record: every balance change goes through it
// (or through the package-level helpers inside another service's transaction)
// and appends exactly one immutable transaction row.
type CreditService struct {
	db         *pgxpool.Pool
	creditRepo *repository.CreditRepository
}

func NewCreditService(db *pgxpool.Pool, creditRepo *repository.CreditRepository) *CreditService {
	return &CreditService{db: db, creditRepo: creditRepo}
}

// validAmount enforces the half-credit grain without floating point: amount
// doubled must be a whole number of half-credits.
func validAmount(amount decimal.Decimal) bool {
	if !amount.IsPositive() {
		return false
	}
	doubled := amount.Mul(decimal.NewFromInt(2))
	return doubled.Equal(doubled.Truncate(0))
}

func (s *CreditService) Add(
	ctx context.Context,
	userID int64,
	amount decimal.Decimal,
	reason string,
	performedBy string,
) (*models.CreditTransaction, error) {
	return s.credit(ctx, models.TransactionTypeAdd, userID, amount, reason, performedBy)
}

func (s *CreditService) Refund(
	ctx context.Context,
	userID int64,
	amount decimal.Decimal,
	reason string,
	performedBy string,
) (*models.CreditTransaction, error) {
	return s.credit(ctx, models.TransactionTypeRefund, userID, amount, reason, performedBy)
}

func (s *CreditService) credit(
	ctx context.Context,
	txnType models.TransactionType,
	userID int64,
	amount decimal.Decimal,
	reason string,
	performedBy string,
) (*models.CreditTransaction, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txn, err := creditAccount(ctx, repository.NewCreditRepository(tx), txnType, userID, amount, reason, performedBy)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *CreditService) Deduct(
	ctx context.Context,
	userID int64,
	amount decimal.Decimal,
	reason string,
	performedBy string,
) (*models.CreditTransaction, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txn, err := deductFromAccount(ctx, repository.NewCreditRepository(tx), userID, amount, reason, performedBy)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *CreditService) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	balance, err := s.creditRepo.GetBalance(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrAccountNotFound
		}
		return decimal.Zero, err
	}
	return balance.Balance, nil
}

func (s *CreditService) GetHistory(
	ctx context.Context,
	userID int64,
	filter repository.HistoryFilter,
) ([]models.CreditTransaction, int, error) {
	transactions, err := s.creditRepo.ListTransactions(ctx, userID, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.creditRepo.CountTransactions(ctx, userID, filter.Type)
	if err != nil {
		return nil, 0, err
	}
	return transactions, total, nil
}

// creditAccount appends an add/refund entry and raises the balance. Shared
// with the booking service so a refund lands in the same transaction as the
// cancellation status write.
func creditAccount(
	ctx context.Context,
	repo *repository.CreditRepository,
	txnType models.TransactionType,
	userID int64,
	amount decimal.Decimal,
	reason string,
	performedBy string,
) (*models.CreditTransaction, error) {
	if err := validateAdjustment(amount, reason); err != nil {
		return nil, err
	}

	if _, err := repo.AddToBalance(ctx, userID, amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	txn := &models.CreditTransaction{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      amount,
		Type:        txnType,
		Reason:      reason,
		PerformedBy: performedBy,
	}
	if err := repo.InsertTransaction(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// deductFromAccount lowers the balance and appends the deduct entry. The
// balance write is conditional, so an uncovered amount leaves the ledger
// untouched and returns ErrInsufficientCredits.
func deductFromAccount(
	ctx context.Context,
	repo *repository.CreditRepository,
	userID int64,
	amount decimal.Decimal,
	reason string,
	performedBy string,
) (*models.CreditTransaction, error) {
	if err := validateAdjustment(amount, reason); err != nil {
		return nil, err
	}

	if _, err := repo.DeductFromBalance(ctx, userID, amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := repo.GetBalance(ctx, userID); errors.Is(getErr, pgx.ErrNoRows) {
				return nil, ErrAccountNotFound
			}
			return nil, ErrInsufficientCredits
		}
		return nil, err
	}

	txn := &models.CreditTransaction{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      amount.Neg(),
		Type:        models.TransactionTypeDeduct,
		Reason:      reason,
		PerformedBy: performedBy,
	}
	if err := repo.InsertTransaction(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func validateAdjustment(amount decimal.Decimal, reason string) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	return nil
}
