package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/navid-f/TutorAppBack/internal/models"
)

type HistoryFilter struct {
	Type  string
	Page  int
	Limit int
}

type CreditRepository struct {
	db DBTX
}

func NewCreditRepository(db DBTX) *CreditRepository {
	return &CreditRepository{db: db}
}

// EnsureAccount creates a zero balance row if the user has none yet.
func (r *CreditRepository) EnsureAccount(ctx context.Context, userID int64) error {
	query := `
		INSERT INTO credit_balances (user_id, balance)
		VALUES ($1, 0)
		ON CONFLICT (user_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, userID)
	return err
}

func (r *CreditRepository) GetBalance(ctx context.Context, userID int64) (*models.CreditBalance, error) {
	query := `
		SELECT user_id, balance, updated_at
		FROM credit_balances
		WHERE user_id = $1
	`
	var balance models.CreditBalance
	err := r.db.QueryRow(ctx, query, userID).
		Scan(&balance.UserID, &balance.Balance, &balance.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// AddToBalance increases the balance unconditionally. Returns pgx.ErrNoRows
// when the user has no balance row.
func (r *CreditRepository) AddToBalance(ctx context.Context, userID int64, amount decimal.Decimal) (*models.CreditBalance, error) {
	query := `
		UPDATE credit_balances
		SET balance = balance + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING user_id, balance, updated_at
	`
	var balance models.CreditBalance
	err := r.db.QueryRow(ctx, query, userID, amount).
		Scan(&balance.UserID, &balance.Balance, &balance.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// DeductFromBalance decreases the balance only when it covers the amount.
// The WHERE clause makes the check and the write one atomic statement, so a
// shortfall never mutates the row; pgx.ErrNoRows signals either an uncovered
// amount or a missing account.
func (r *CreditRepository) DeductFromBalance(ctx context.Context, userID int64, amount decimal.Decimal) (*models.CreditBalance, error) {
	query := `
		UPDATE credit_balances
		SET balance = balance - $2, updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2
		RETURNING user_id, balance, updated_at
	`
	var balance models.CreditBalance
	err := r.db.QueryRow(ctx, query, userID, amount).
		Scan(&balance.UserID, &balance.Balance, &balance.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

func (r *CreditRepository) InsertTransaction(ctx context.Context, txn *models.CreditTransaction) error {
	query := `
		INSERT INTO credit_transactions (id, user_id, amount, type, reason, performed_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	return r.db.QueryRow(
		ctx,
		query,
		txn.ID,
		txn.UserID,
		txn.Amount,
		txn.Type,
		txn.Reason,
		txn.PerformedBy,
	).Scan(&txn.CreatedAt)
}

func (r *CreditRepository) ListTransactions(
	ctx context.Context,
	userID int64,
	filter HistoryFilter,
) ([]models.CreditTransaction, error) {
	args := []any{userID}
	where := "user_id = $1"
	if filter.Type != "" {
		args = append(args, filter.Type)
		where += " AND type = $2"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT id, user_id, amount, type, reason, performed_by, created_at
		FROM credit_transactions
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]models.CreditTransaction, 0)
	for rows.Next() {
		var txn models.CreditTransaction
		if err := rows.Scan(
			&txn.ID,
			&txn.UserID,
			&txn.Amount,
			&txn.Type,
			&txn.Reason,
			&txn.PerformedBy,
			&txn.CreatedAt,
		); err != nil {
			return nil, err
		}
		transactions = append(transactions, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return transactions, nil
}

func (r *CreditRepository) CountTransactions(ctx context.Context, userID int64, txnType string) (int, error) {
	args := []any{userID}
	where := "user_id = $1"
	if txnType != "" {
		args = append(args, txnType)
		where += " AND type = $2"
	}

	var total int
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM credit_transactions WHERE "+where, args...).
		Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// SumTransactions returns the running sum of all ledger entries for a user.
// The balance row must always agree with it.
func (r *CreditRepository) SumTransactions(ctx context.Context, userID int64) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM credit_transactions
		WHERE user_id = $1
	`
	var sum decimal.Decimal
	if err := r.db.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}
