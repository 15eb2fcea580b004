package journal

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType enumerates the two sides of a posting.
type EntryType string

const (
	EntryTypeDebit  EntryType = "DEBIT"
	EntryTypeCredit EntryType = "CREDIT"
)

// Opposite returns the reversing side.
func (t EntryType) Opposite() EntryType {
	if t == EntryTypeDebit {
		return EntryTypeCredit
	}
	return EntryTypeDebit
}

// Batch is the atomic posting unit: it is accepted or rejected as a whole.
type Batch struct {
	ID              uuid.UUID
	OfficeID        int64
	CurrencyCode    string
	TransactionDate time.Time
	EntryDate       time.Time
	ReferenceNumber string
	Comments        string
	ReversalOf      *uuid.UUID
	CreatedAt       time.Time
	Lines           []Line
}

// Line is one immutable debit or credit row of a posted batch.
type Line struct {
	ID              int64
	BatchID         uuid.UUID
	OfficeID        int64
	AccountID       int64
	TransactionDate time.Time
	EntryDate       time.Time
	Type            EntryType
	Amount          decimal.Decimal
	Reversed        bool
	ReferenceNumber string
	Comments        string
	CreatedAt       time.Time
}

// DebitTotal sums the debit side of the batch.
func (b Batch) DebitTotal() decimal.Decimal {
	return b.total(EntryTypeDebit)
}

// CreditTotal sums the credit side of the batch.
func (b Batch) CreditTotal() decimal.Decimal {
	return b.total(EntryTypeCredit)
}

func (b Batch) total(t EntryType) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range b.Lines {
		if line.Type == t {
			sum = sum.Add(line.Amount)
		}
	}
	return sum
}

// Balanced reports whether debits equal credits exactly.
func (b Batch) Balanced() bool {
	return b.DebitTotal().Equal(b.CreditTotal())
}
