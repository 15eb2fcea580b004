package journal

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LineInput is one debit or credit line of a posting request. Amount is a
// pointer so a missing value is distinguishable from an explicit zero.
type LineInput struct {
	GLAccountID int64
	Amount      *decimal.Decimal
	Comments    string
}

// BatchInput is the inbound posting request accepted by the validator.
type BatchInput struct {
	OfficeID         int64
	CurrencyCode     string
	TransactionDate  time.Time
	Comments         string
	ReferenceNumber  string
	AccountingRuleID *int64
	PaymentTypeID    *int64
	Amount           *decimal.Decimal
	Debits           []LineInput
	Credits          []LineInput
}

// FieldError reports a single validation failure, addressed by the request
// field that caused it (e.g. "debits[0].glAccountId").
type FieldError struct {
	Field   string
	Message string
	Err     error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e FieldError) Unwrap() error {
	return e.Err
}

// ValidationErrors aggregates every failure found in one validation pass so a
// caller can fix all issues in a single round trip.
type ValidationErrors []FieldError

func (errs ValidationErrors) Error() string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Error())
	}
	return "gl: invalid journal batch: " + strings.Join(parts, "; ")
}

// Is lets errors.Is match any sentinel carried by a member error.
func (errs ValidationErrors) Is(target error) bool {
	for _, e := range errs {
		if e.Err != nil && errors.Is(e.Err, target) {
			return true
		}
	}
	return false
}
