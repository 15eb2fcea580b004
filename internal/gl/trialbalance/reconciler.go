package trialbalance

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// epoch is the default last-covered date for an empty trial balance.
var epoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

const defaultWorkers = 4

// Reconciler incrementally rebuilds the trial-balance view from the ledger.
// A run executes three phases in order: gap detection, aggregation, and
// balance carry-forward. Every phase is idempotent, so a crashed or partially
// failed run is repaired simply by running again. The caller guarantees at
// most one concurrent run.
type Reconciler struct {
	repo    Repository
	logger  *slog.Logger
	now     func() time.Time
	workers int
}

// Option tweaks reconciler construction.
type Option func(*Reconciler)

// WithWorkers bounds the carry-forward worker pool.
func WithWorkers(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithClock overrides the business-date clock.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

func NewReconciler(repo Repository, logger *slog.Logger, opts ...Option) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reconciler{repo: repo, logger: logger, now: time.Now, workers: defaultWorkers}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one reconciliation pass. Unit-level persistence failures are
// collected in the report; only a failure to establish the set of work units
// aborts the run itself.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	var report Report

	dates, err := r.detectGaps(ctx)
	if err != nil {
		return report, fmt.Errorf("gap detection: %w", err)
	}

	r.aggregate(ctx, dates, &report)

	pairs, err := r.repo.PairsWithOpenRows(ctx)
	if err != nil {
		return report, fmt.Errorf("carry-forward scan: %w", err)
	}
	r.carryForward(ctx, pairs, &report)

	r.logger.Info("reconciliation run finished",
		slog.Int("gap_dates", len(dates)),
		slog.Int("pairs", len(pairs)),
		slog.Int("rows_inserted", report.RowsInserted),
		slog.Int("rows_updated", report.RowsUpdated),
		slog.Int("unit_errors", len(report.Errors)))
	return report, nil
}

// detectGaps finds ledger dates from the covered horizon onward. The horizon
// date itself is re-scanned: a crash can leave it partially aggregated, and
// the unique index makes re-inserting the surviving rows a no-op. The
// still-open current business day is never finalized: a date qualifies only
// once a full day has elapsed, so late postings cannot arrive after
// aggregation.
func (r *Reconciler) detectGaps(ctx context.Context) ([]time.Time, error) {
	lastCovered, ok, err := r.repo.LastCoveredDate(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		lastCovered = epoch
	}
	candidates, err := r.repo.LedgerDatesSince(ctx, lastCovered)
	if err != nil {
		return nil, err
	}
	cutoff := dateOnly(r.now()).AddDate(0, 0, -1)
	dates := make([]time.Time, 0, len(candidates))
	for _, d := range candidates {
		if d.After(cutoff) {
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

type groupKey struct {
	officeID  int64
	accountID int64
	entryDate time.Time
}

// aggregate folds one day of ledger lines into per-(office, account, entry
// date) delta rows, in ascending date order. The fold lives here rather than
// in SQL so the sign convention and grouping are type-checked. A failed date
// ends the phase: inserting later dates would advance the covered horizon
// past the failure and the skipped activity would never be picked up again.
// The next run resumes at the failed date.
func (r *Reconciler) aggregate(ctx context.Context, dates []time.Time, report *Report) {
	for _, date := range dates {
		if ctx.Err() != nil {
			return
		}
		inserted, err := r.aggregateDate(ctx, date)
		report.RowsInserted += inserted
		if err != nil {
			report.Errors = append(report.Errors, UnitError{
				Unit: "aggregate " + date.Format("2006-01-02"),
				Err:  err,
			})
			r.logger.Error("aggregation halted",
				slog.String("date", date.Format("2006-01-02")),
				slog.Any("error", err))
			return
		}
	}
}

func (r *Reconciler) aggregateDate(ctx context.Context, date time.Time) (int, error) {
	lines, err := r.repo.LedgerLinesOn(ctx, date)
	if err != nil {
		return 0, err
	}
	groups := make(map[groupKey]Row)
	var order []groupKey
	for _, line := range lines {
		key := groupKey{officeID: line.OfficeID, accountID: line.AccountID, entryDate: line.EntryDate}
		row, seen := groups[key]
		if !seen {
			row = Row{
				OfficeID:        line.OfficeID,
				AccountID:       line.AccountID,
				TransactionDate: date,
				EntryDate:       line.EntryDate,
			}
			order = append(order, key)
		}
		row.Amount = row.Amount.Add(line.SignedAmount())
		groups[key] = row
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.officeID != b.officeID {
			return a.officeID < b.officeID
		}
		if a.accountID != b.accountID {
			return a.accountID < b.accountID
		}
		return a.entryDate.Before(b.entryDate)
	})
	inserted := 0
	for _, key := range order {
		ok, err := r.repo.InsertRow(ctx, groups[key])
		if err != nil {
			return inserted, err
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

// carryForward extends running closing balances for every pair that owns
// uncarried rows. Pairs share no mutable state and run on a bounded pool;
// within a pair the replay order (transactionDate, entryDate) ascending is
// load-bearing and stays strictly sequential.
func (r *Reconciler) carryForward(ctx context.Context, pairs []Pair, report *Report) {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, pair := range pairs {
		if gctx.Err() != nil {
			break
		}
		pair := pair
		g.Go(func() error {
			updated, err := r.carryForwardPair(gctx, pair)
			mu.Lock()
			defer mu.Unlock()
			report.RowsUpdated += updated
			if err != nil {
				report.Errors = append(report.Errors, UnitError{Unit: "carry-forward " + pair.String(), Err: err})
				r.logger.Error("carry-forward unit failed",
					slog.Int64("office_id", pair.OfficeID),
					slog.Int64("account_id", pair.AccountID),
					slog.Any("error", err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Reconciler) carryForwardPair(ctx context.Context, pair Pair) (int, error) {
	accumulator, _, err := r.repo.LatestClosedBalance(ctx, pair)
	if err != nil {
		return 0, err
	}
	rows, err := r.repo.OpenRows(ctx, pair)
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, row := range rows {
		accumulator = accumulator.Add(row.Amount)
		if err := r.repo.SetClosingBalance(ctx, row.ID, accumulator); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
