package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/northbook/northbook/internal/gl/shared"
	"github.com/northbook/northbook/internal/platform/db"
)

// Repository encapsulates DB operations for the chart of accounts.
type Repository interface {
	GetByID(ctx context.Context, id int64) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	List(ctx context.Context) ([]Account, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Account, error)
	Insert(ctx context.Context, a Account) (Account, error)
	Update(ctx context.Context, a Account) error
	DescendantsOf(ctx context.Context, subtreePrefix string) ([]Account, error)
	SetParentAndHierarchy(ctx context.Context, id int64, parentID *int64, hierarchy string) error
	SetDisabled(ctx context.Context, id int64, disabled bool) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `id, code, name, description, classification, usage, disabled, manual_entries_allowed, parent_id, hierarchy, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Description, &a.Classification, &a.Usage, &a.Disabled, &a.ManualEntriesAllowed, &a.ParentID, &a.Hierarchy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM gl_accounts WHERE id=$1`, id))
}

func (r *repository) GetByCode(ctx context.Context, code string) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM gl_accounts WHERE code=$1`, code))
}

func (r *repository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM gl_accounts ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAccounts(rows)
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM gl_accounts WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) Insert(ctx context.Context, a Account) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO gl_accounts (code, name, description, classification, usage, disabled, manual_entries_allowed, parent_id, hierarchy)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at, updated_at`,
		a.Code, a.Name, a.Description, a.Classification, a.Usage, a.Disabled, a.ManualEntriesAllowed, a.ParentID, a.Hierarchy)
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return Account{}, shared.ErrDuplicateCode
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) Update(ctx context.Context, a Account) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE gl_accounts SET name=$2, description=$3, classification=$4, manual_entries_allowed=$5, updated_at=NOW() WHERE id=$1`,
		a.ID, a.Name, a.Description, a.Classification, a.ManualEntriesAllowed)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) DescendantsOf(ctx context.Context, subtreePrefix string) ([]Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM gl_accounts WHERE hierarchy LIKE $1 || '%' ORDER BY hierarchy, id`, subtreePrefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAccounts(rows)
}

func (r *txRepository) SetParentAndHierarchy(ctx context.Context, id int64, parentID *int64, hierarchy string) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE gl_accounts SET parent_id=$2, hierarchy=$3, updated_at=NOW() WHERE id=$1`, id, parentID, hierarchy)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) SetDisabled(ctx context.Context, id int64, disabled bool) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE gl_accounts SET disabled=$2, updated_at=NOW() WHERE id=$1`, id, disabled)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func collectAccounts(rows pgx.Rows) ([]Account, error) {
	var accounts []Account
	for rows.Next() {
		var a Account
		err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Description, &a.Classification, &a.Usage, &a.Disabled, &a.ManualEntriesAllowed, &a.ParentID, &a.Hierarchy, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
