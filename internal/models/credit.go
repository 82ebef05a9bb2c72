package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeAdd    TransactionType = "add"
	TransactionTypeDeduct TransactionType = "deduct"
	TransactionTypeRefund TransactionType = "refund"
)

// PerformedBySystem marks ledger entries written by sweeps rather than a user.
const PerformedBySystem = "system"

type CreditBalance struct {
	UserID    int64           `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CreditTransaction is append-only; rows are never updated or deleted.
// Amount is signed: positive for add/refund, negative for deduct.
type CreditTransaction struct {
	ID          uuid.UUID       `json:"id"`
	UserID      int64           `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        TransactionType `json:"type"`
	Reason      string          `json:"reason"`
	PerformedBy string          `json:"performed_by"`
	CreatedAt   time.Time       `json:"created_at"`
}
