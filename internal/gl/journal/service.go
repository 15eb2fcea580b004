package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/northbook/northbook/internal/gl/shared"
)

// Service owns the ledger write path. Corrections are expressed as new
// reversing batches; posted lines are never edited or deleted.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Append writes a validated batch atomically and returns its id. The balance
// invariant is re-checked before commit: a pre-validated object is not trusted
// across a process boundary.
func (s *Service) Append(ctx context.Context, batch Batch) (uuid.UUID, error) {
	if len(batch.Lines) == 0 {
		return uuid.Nil, shared.ErrEmptyLineSet
	}
	if !batch.Balanced() {
		return uuid.Nil, shared.ErrUnbalanced
	}
	var batchID uuid.UUID
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		if err := tx.InsertLines(ctx, inserted.ID, batch.Lines); err != nil {
			return fmt.Errorf("insert lines: %w", err)
		}
		batchID = inserted.ID
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.logger.Info("journal batch posted",
		slog.String("batch_id", batchID.String()),
		slog.Int64("office_id", batch.OfficeID),
		slog.Int("lines", len(batch.Lines)),
		slog.String("amount", batch.DebitTotal().StringFixed(2)))
	return batchID, nil
}

// Get loads a posted batch with its lines.
func (s *Service) Get(ctx context.Context, batchID uuid.UUID) (Batch, error) {
	return s.repo.GetBatchWithLines(ctx, batchID)
}

// Reverse posts a new batch mirroring the original with debit and credit
// swapped, and flags both the original and reversal lines as reversed so the
// pair drops out of trial-balance aggregation.
func (s *Service) Reverse(ctx context.Context, batchID uuid.UUID, comment string) (uuid.UUID, error) {
	var reversalID uuid.UUID
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetBatchWithLinesForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		for _, line := range original.Lines {
			if line.Reversed {
				return shared.ErrAlreadyReversed
			}
		}
		entryDate := dateOnly(s.now())
		reversal := Batch{
			OfficeID:        original.OfficeID,
			CurrencyCode:    original.CurrencyCode,
			TransactionDate: original.TransactionDate,
			EntryDate:       entryDate,
			ReferenceNumber: original.ReferenceNumber,
			Comments:        defaultReversalComment(comment, original.ID),
			ReversalOf:      &original.ID,
		}
		for _, line := range original.Lines {
			reversal.Lines = append(reversal.Lines, Line{
				OfficeID:        line.OfficeID,
				AccountID:       line.AccountID,
				TransactionDate: line.TransactionDate,
				EntryDate:       entryDate,
				Type:            line.Type.Opposite(),
				Amount:          line.Amount,
				Reversed:        true,
				ReferenceNumber: line.ReferenceNumber,
				Comments:        reversal.Comments,
			})
		}
		inserted, err := tx.InsertBatch(ctx, reversal)
		if err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, inserted.ID, reversal.Lines); err != nil {
			return err
		}
		if err := tx.MarkLinesReversed(ctx, original.ID); err != nil {
			return err
		}
		reversalID = inserted.ID
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.logger.Info("journal batch reversed",
		slog.String("batch_id", batchID.String()),
		slog.String("reversal_id", reversalID.String()))
	return reversalID, nil
}

func defaultReversalComment(comment string, originalID uuid.UUID) string {
	if comment != "" {
		return comment
	}
	return fmt.Sprintf("Reversal of batch %s", originalID)
}
