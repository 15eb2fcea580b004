package journal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/northbook/northbook/internal/gl/shared"
	"github.com/northbook/northbook/internal/platform/db"
)

// Repository encapsulates DB operations on the append-only ledger.
type Repository interface {
	GetBatchWithLines(ctx context.Context, batchID uuid.UUID) (Batch, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a posting transaction.
type TxRepository interface {
	InsertBatch(ctx context.Context, b Batch) (Batch, error)
	InsertLines(ctx context.Context, batchID uuid.UUID, lines []Line) error
	GetBatchWithLinesForUpdate(ctx context.Context, batchID uuid.UUID) (Batch, error)
	MarkLinesReversed(ctx context.Context, batchID uuid.UUID) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) GetBatchWithLines(ctx context.Context, batchID uuid.UUID) (Batch, error) {
	return getBatchWithLines(ctx, r.db, batchID, false)
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertBatch(ctx context.Context, b Batch) (Batch, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_batches (id, office_id, currency_code, transaction_date, entry_date, reference_number, comments, reversal_of)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING created_at`,
		b.ID, b.OfficeID, b.CurrencyCode, b.TransactionDate, b.EntryDate, b.ReferenceNumber, b.Comments, b.ReversalOf)
	if err := row.Scan(&b.CreatedAt); err != nil {
		return Batch{}, err
	}
	return b, nil
}

func (r *txRepository) InsertLines(ctx context.Context, batchID uuid.UUID, lines []Line) error {
	for _, line := range lines {
		_, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (batch_id, office_id, account_id, transaction_date, entry_date, type, amount, reversed, reference_number, comments)
VALUES ($1,$2,$3,$4,$5,$6,$7::numeric,$8,$9,$10)`,
			batchID, line.OfficeID, line.AccountID, line.TransactionDate, line.EntryDate, line.Type, line.Amount.String(), line.Reversed, line.ReferenceNumber, line.Comments)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetBatchWithLinesForUpdate(ctx context.Context, batchID uuid.UUID) (Batch, error) {
	return getBatchWithLines(ctx, r.tx, batchID, true)
}

func (r *txRepository) MarkLinesReversed(ctx context.Context, batchID uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `UPDATE journal_lines SET reversed=TRUE WHERE batch_id=$1`, batchID)
	return err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getBatchWithLines(ctx context.Context, q querier, batchID uuid.UUID, forUpdate bool) (Batch, error) {
	batchSQL := `SELECT id, office_id, currency_code, transaction_date, entry_date, reference_number, comments, reversal_of, created_at
FROM journal_batches WHERE id=$1`
	if forUpdate {
		batchSQL += ` FOR UPDATE`
	}
	var b Batch
	err := q.QueryRow(ctx, batchSQL, batchID).
		Scan(&b.ID, &b.OfficeID, &b.CurrencyCode, &b.TransactionDate, &b.EntryDate, &b.ReferenceNumber, &b.Comments, &b.ReversalOf, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Batch{}, shared.ErrBatchNotFound
		}
		return Batch{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, batch_id, office_id, account_id, transaction_date, entry_date, type, amount::text, reversed, reference_number, comments, created_at
FROM journal_lines WHERE batch_id=$1 ORDER BY id ASC`, batchID)
	if err != nil {
		return Batch{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		var amount string
		err := rows.Scan(&line.ID, &line.BatchID, &line.OfficeID, &line.AccountID, &line.TransactionDate, &line.EntryDate, &line.Type, &amount, &line.Reversed, &line.ReferenceNumber, &line.Comments, &line.CreatedAt)
		if err != nil {
			return Batch{}, err
		}
		if line.Amount, err = decimal.NewFromString(amount); err != nil {
			return Batch{}, err
		}
		line.TransactionDate = normalizeDate(line.TransactionDate)
		line.EntryDate = normalizeDate(line.EntryDate)
		b.Lines = append(b.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return Batch{}, err
	}
	b.TransactionDate = normalizeDate(b.TransactionDate)
	b.EntryDate = normalizeDate(b.EntryDate)
	return b, nil
}

func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
