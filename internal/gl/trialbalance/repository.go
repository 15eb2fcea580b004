package trialbalance

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository is the storage surface of the reconciler. It reads committed
// journal lines and exclusively owns the trial_balance view.
type Repository interface {
	LastCoveredDate(ctx context.Context) (time.Time, bool, error)
	// LedgerDatesSince includes the covered horizon itself, so a date whose
	// rows were only partially inserted is re-scanned on the next run.
	LedgerDatesSince(ctx context.Context, since time.Time) ([]time.Time, error)
	LedgerLinesOn(ctx context.Context, date time.Time) ([]LedgerLine, error)
	// InsertRow reports false without error when the row already exists.
	InsertRow(ctx context.Context, row Row) (bool, error)
	PairsWithOpenRows(ctx context.Context) ([]Pair, error)
	LatestClosedBalance(ctx context.Context, pair Pair) (decimal.Decimal, bool, error)
	OpenRows(ctx context.Context, pair Pair) ([]Row, error)
	SetClosingBalance(ctx context.Context, rowID int64, balance decimal.Decimal) error
	ReadRows(ctx context.Context, pair Pair) ([]Row, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) LastCoveredDate(ctx context.Context) (time.Time, bool, error) {
	var last *time.Time
	err := r.db.QueryRow(ctx, `SELECT MAX(transaction_date) FROM trial_balance`).Scan(&last)
	if err != nil {
		return time.Time{}, false, err
	}
	if last == nil {
		return time.Time{}, false, nil
	}
	return normalizeDate(*last), true, nil
}

func (r *repository) LedgerDatesSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT transaction_date FROM journal_lines WHERE transaction_date >= $1 AND NOT reversed ORDER BY transaction_date`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, normalizeDate(d))
	}
	return dates, rows.Err()
}

func (r *repository) LedgerLinesOn(ctx context.Context, date time.Time) ([]LedgerLine, error) {
	rows, err := r.db.Query(ctx, `SELECT office_id, account_id, transaction_date, entry_date, type, amount::text
FROM journal_lines WHERE transaction_date = $1 AND NOT reversed ORDER BY id`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []LedgerLine
	for rows.Next() {
		var line LedgerLine
		var amount string
		if err := rows.Scan(&line.OfficeID, &line.AccountID, &line.TransactionDate, &line.EntryDate, &line.Type, &amount); err != nil {
			return nil, err
		}
		if line.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		line.TransactionDate = normalizeDate(line.TransactionDate)
		line.EntryDate = normalizeDate(line.EntryDate)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *repository) InsertRow(ctx context.Context, row Row) (bool, error) {
	_, err := r.db.Exec(ctx, `INSERT INTO trial_balance (office_id, account_id, transaction_date, entry_date, amount)
VALUES ($1,$2,$3,$4,$5::numeric)`,
		row.OfficeID, row.AccountID, row.TransactionDate, row.EntryDate, row.Amount.String())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repository) PairsWithOpenRows(ctx context.Context) ([]Pair, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT office_id, account_id FROM trial_balance WHERE closing_balance IS NULL ORDER BY office_id, account_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pairs []Pair
	for rows.Next() {
		var p Pair
		if err := rows.Scan(&p.OfficeID, &p.AccountID); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

func (r *repository) LatestClosedBalance(ctx context.Context, pair Pair) (decimal.Decimal, bool, error) {
	var balance string
	err := r.db.QueryRow(ctx, `SELECT closing_balance::text FROM trial_balance
WHERE office_id=$1 AND account_id=$2 AND closing_balance IS NOT NULL
ORDER BY transaction_date DESC, entry_date DESC LIMIT 1`, pair.OfficeID, pair.AccountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}
	d, err := decimal.NewFromString(balance)
	if err != nil {
		return decimal.Zero, false, err
	}
	return d, true, nil
}

func (r *repository) OpenRows(ctx context.Context, pair Pair) ([]Row, error) {
	return r.queryRows(ctx, `SELECT id, office_id, account_id, transaction_date, entry_date, amount::text, closing_balance::text
FROM trial_balance WHERE office_id=$1 AND account_id=$2 AND closing_balance IS NULL
ORDER BY transaction_date ASC, entry_date ASC`, pair)
}

func (r *repository) ReadRows(ctx context.Context, pair Pair) ([]Row, error) {
	return r.queryRows(ctx, `SELECT id, office_id, account_id, transaction_date, entry_date, amount::text, closing_balance::text
FROM trial_balance WHERE office_id=$1 AND account_id=$2
ORDER BY transaction_date ASC, entry_date ASC`, pair)
}

func (r *repository) SetClosingBalance(ctx context.Context, rowID int64, balance decimal.Decimal) error {
	_, err := r.db.Exec(ctx, `UPDATE trial_balance SET closing_balance=$2::numeric WHERE id=$1`, rowID, balance.String())
	return err
}

func (r *repository) queryRows(ctx context.Context, sql string, pair Pair) ([]Row, error) {
	rows, err := r.db.Query(ctx, sql, pair.OfficeID, pair.AccountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Row
	for rows.Next() {
		var row Row
		var amount string
		var closing *string
		if err := rows.Scan(&row.ID, &row.OfficeID, &row.AccountID, &row.TransactionDate, &row.EntryDate, &amount, &closing); err != nil {
			return nil, err
		}
		if row.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		if closing != nil {
			d, err := decimal.NewFromString(*closing)
			if err != nil {
				return nil, err
			}
			row.ClosingBalance = &d
		}
		row.TransactionDate = normalizeDate(row.TransactionDate)
		row.EntryDate = normalizeDate(row.EntryDate)
		out = append(out, row)
	}
	return out, rows.Err()
}

func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
