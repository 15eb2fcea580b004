package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/northbook/northbook/internal/gl/accounts"
	"github.com/northbook/northbook/internal/gl/shared"
)

// PostableResolver is the chart-of-accounts lookup the validator depends on.
type PostableResolver interface {
	ResolvePostable(ctx context.Context, id int64, manual bool) (accounts.Account, error)
}

// Validator checks a posting request and normalizes it into a Batch. All
// failures are collected and reported together, never fail-fast.
type Validator struct {
	accounts PostableResolver
	validate *validator.Validate
	now      func() time.Time
}

func NewValidator(resolver PostableResolver) *Validator {
	return &Validator{
		accounts: resolver,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (v *Validator) WithNow(now func() time.Time) {
	if now != nil {
		v.now = now
	}
}

// Validate applies every rule to the batch request. On success it returns the
// normalized batch ready for Service.Append; otherwise a ValidationErrors
// listing each offending field.
func (v *Validator) Validate(ctx context.Context, in BatchInput) (Batch, error) {
	var errs ValidationErrors

	if err := v.validate.Var(in.OfficeID, "required,gt=0"); err != nil {
		errs = append(errs, FieldError{Field: "officeId", Message: "must be provided and positive"})
	}
	if in.TransactionDate.IsZero() {
		errs = append(errs, FieldError{Field: "transactionDate", Message: "must be provided"})
	}
	if strings.TrimSpace(in.CurrencyCode) == "" {
		errs = append(errs, FieldError{Field: "currencyCode", Message: "must not be blank"})
	}

	debits, debitErrs := v.validateLines(ctx, "debits", in.Debits)
	credits, creditErrs := v.validateLines(ctx, "credits", in.Credits)
	errs = append(errs, debitErrs...)
	errs = append(errs, creditErrs...)

	// Totals skip lines without a usable amount, so an imbalance is reported
	// alongside the line errors instead of on the caller's next attempt.
	debitTotal := sumLines(debits)
	creditTotal := sumLines(credits)
	if !debitTotal.Equal(creditTotal) {
		errs = append(errs, FieldError{
			Field:   "amount",
			Message: fmt.Sprintf("debits (%s) must equal credits (%s)", debitTotal.StringFixed(2), creditTotal.StringFixed(2)),
			Err:     shared.ErrUnbalanced,
		})
	}

	if in.Amount != nil && in.Amount.IsNegative() {
		errs = append(errs, FieldError{Field: "amount", Message: "must be zero or positive", Err: shared.ErrInvalidAmount})
	}

	if len(errs) > 0 {
		return Batch{}, errs
	}

	entryDate := dateOnly(v.now())
	batch := Batch{
		OfficeID:        in.OfficeID,
		CurrencyCode:    in.CurrencyCode,
		TransactionDate: dateOnly(in.TransactionDate),
		EntryDate:       entryDate,
		ReferenceNumber: in.ReferenceNumber,
		Comments:        in.Comments,
	}
	batch.Lines = append(batch.Lines, toLines(batch, EntryTypeDebit, in.Debits)...)
	batch.Lines = append(batch.Lines, toLines(batch, EntryTypeCredit, in.Credits)...)
	return batch, nil
}

// validateLines checks each line of one side. An empty side is validated
// against a single synthetic placeholder so the error surface always carries
// at least one "<side>[0]." entry.
func (v *Validator) validateLines(ctx context.Context, side string, lines []LineInput) ([]LineInput, ValidationErrors) {
	var errs ValidationErrors
	placeholder := false
	if len(lines) == 0 {
		lines = []LineInput{{}}
		placeholder = true
	}
	for i, line := range lines {
		prefix := fmt.Sprintf("%s[%d].", side, i)
		if err := v.validate.Var(line.GLAccountID, "required,gt=0"); err != nil {
			fieldErr := FieldError{Field: prefix + "glAccountId", Message: "must be provided and positive"}
			if placeholder {
				fieldErr.Err = shared.ErrEmptyLineSet
			}
			errs = append(errs, fieldErr)
		} else if _, err := v.accounts.ResolvePostable(ctx, line.GLAccountID, true); err != nil {
			errs = append(errs, FieldError{Field: prefix + "glAccountId", Message: err.Error(), Err: err})
		}
		switch {
		case line.Amount == nil:
			errs = append(errs, FieldError{Field: prefix + "amount", Message: "must be provided", Err: shared.ErrInvalidAmount})
		case line.Amount.IsNegative():
			errs = append(errs, FieldError{Field: prefix + "amount", Message: "must be zero or positive", Err: shared.ErrInvalidAmount})
		}
	}
	if placeholder {
		return nil, errs
	}
	return lines, errs
}

func sumLines(lines []LineInput) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		if line.Amount != nil {
			sum = sum.Add(*line.Amount)
		}
	}
	return sum
}

func toLines(batch Batch, t EntryType, inputs []LineInput) []Line {
	out := make([]Line, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, Line{
			OfficeID:        batch.OfficeID,
			AccountID:       in.GLAccountID,
			TransactionDate: batch.TransactionDate,
			EntryDate:       batch.EntryDate,
			Type:            t,
			Amount:          *in.Amount,
			ReferenceNumber: batch.ReferenceNumber,
			Comments:        in.Comments,
		})
	}
	return out
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
