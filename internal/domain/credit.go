package domain

import "time"

// ─── Credit Types ───────────────────────────────────────────────────────────
// These live in domain because they represent core business rules.
// The ledger is append-only; the balance column on the profile is the fast
// path and the ledger is the audit trail that must reconcile with it.

// EntryType represents the accounting side of a ledger entry.
type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"
	EntryCredit EntryType = "CREDIT"
)

// TransactionType represents the business reason for a credit operation.
type TransactionType string

const (
	TxSpend      TransactionType = "SPEND"
	TxRefund     TransactionType = "REFUND"
	TxReferral   TransactionType = "REFERRAL"
	TxAdjustment TransactionType = "ADJUSTMENT"
)

// CreditLedgerEntry is a single row in the stored-credit ledger, written
// alongside the order that consumed the credit. Amount and Balance are minor
// units (cents); Balance is the user's balance after this entry applied.
type CreditLedgerEntry struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Type        TransactionType `json:"type"`
	EntryType   EntryType       `json:"entry_type"`
	Amount      int64           `json:"amount"`
	OrderID     string          `json:"order_id,omitempty"`
	Description string          `json:"description,omitempty"`
	Balance     int64           `json:"balance"`
	CreatedAt   time.Time       `json:"created_at"`
}
