package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northbook/northbook/internal/gl/shared"
	_ "github.com/northbook/northbook/testing"
)

type mockRepository struct {
	batches map[uuid.UUID]*Batch
	lines   map[uuid.UUID][]Line
	nextID  int64

	insertLinesError error
}

func newMockRepo() *mockRepository {
	return &mockRepository{
		batches: make(map[uuid.UUID]*Batch),
		lines:   make(map[uuid.UUID][]Line),
		nextID:  1,
	}
}

func (m *mockRepository) GetBatchWithLines(ctx context.Context, batchID uuid.UUID) (Batch, error) {
	b, ok := m.batches[batchID]
	if !ok {
		return Batch{}, shared.ErrBatchNotFound
	}
	out := *b
	out.Lines = append([]Line(nil), m.lines[batchID]...)
	return out, nil
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	staged := &mockTxRepo{mock: m, stagedBatches: make(map[uuid.UUID]Batch), stagedLines: make(map[uuid.UUID][]Line), stagedReversed: make(map[uuid.UUID]bool)}
	if err := fn(ctx, staged); err != nil {
		return err
	}
	// Commit: staged writes become visible together.
	for id, b := range staged.stagedBatches {
		copied := b
		m.batches[id] = &copied
	}
	for id, lines := range staged.stagedLines {
		m.lines[id] = append(m.lines[id], lines...)
	}
	for id := range staged.stagedReversed {
		for i := range m.lines[id] {
			m.lines[id][i].Reversed = true
		}
	}
	return nil
}

type mockTxRepo struct {
	mock           *mockRepository
	stagedBatches  map[uuid.UUID]Batch
	stagedLines    map[uuid.UUID][]Line
	stagedReversed map[uuid.UUID]bool
}

func (m *mockTxRepo) InsertBatch(ctx context.Context, b Batch) (Batch, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	m.stagedBatches[b.ID] = b
	return b, nil
}

func (m *mockTxRepo) InsertLines(ctx context.Context, batchID uuid.UUID, lines []Line) error {
	if m.mock.insertLinesError != nil {
		return m.mock.insertLinesError
	}
	for _, line := range lines {
		line.ID = m.mock.nextID
		m.mock.nextID++
		line.BatchID = batchID
		m.stagedLines[batchID] = append(m.stagedLines[batchID], line)
	}
	return nil
}

func (m *mockTxRepo) GetBatchWithLinesForUpdate(ctx context.Context, batchID uuid.UUID) (Batch, error) {
	return m.mock.GetBatchWithLines(ctx, batchID)
}

func (m *mockTxRepo) MarkLinesReversed(ctx context.Context, batchID uuid.UUID) error {
	m.stagedReversed[batchID] = true
	return nil
}

func testBatch(debit, credit string) Batch {
	day := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	return Batch{
		OfficeID:        1,
		CurrencyCode:    "USD",
		TransactionDate: day,
		EntryDate:       day,
		Lines: []Line{
			{OfficeID: 1, AccountID: 100, TransactionDate: day, EntryDate: day, Type: EntryTypeDebit, Amount: decimal.RequireFromString(debit)},
			{OfficeID: 1, AccountID: 200, TransactionDate: day, EntryDate: day, Type: EntryTypeCredit, Amount: decimal.RequireFromString(credit)},
		},
	}
}

func TestAppendWritesAtomically(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)

	id, err := svc.Append(context.Background(), testBatch("100.00", "100.00"))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	stored, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 2)
	assert.True(t, stored.Balanced())
}

func TestAppendRejectsUnbalancedBatch(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)

	_, err := svc.Append(context.Background(), testBatch("100.00", "99.99"))
	assert.ErrorIs(t, err, shared.ErrUnbalanced)
	assert.Empty(t, repo.batches, "rejected batch must leave the ledger unchanged")
	assert.Empty(t, repo.lines)
}

func TestAppendRejectsEmptyBatch(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	_, err := svc.Append(context.Background(), Batch{})
	assert.ErrorIs(t, err, shared.ErrEmptyLineSet)
}

func TestAppendRollsBackOnLineFailure(t *testing.T) {
	repo := newMockRepo()
	repo.insertLinesError = errors.New("disk full")
	svc := NewService(repo, nil)

	_, err := svc.Append(context.Background(), testBatch("50.00", "50.00"))
	require.Error(t, err)
	assert.Empty(t, repo.batches, "no partial batch visibility")
	assert.Empty(t, repo.lines)
}

func TestReverseFlipsSidesAndMarksOriginal(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	originalID, err := svc.Append(ctx, testBatch("100.00", "100.00"))
	require.NoError(t, err)

	reversalID, err := svc.Reverse(ctx, originalID, "")
	require.NoError(t, err)

	original, err := svc.Get(ctx, originalID)
	require.NoError(t, err)
	for _, line := range original.Lines {
		assert.True(t, line.Reversed)
	}

	reversal, err := svc.Get(ctx, reversalID)
	require.NoError(t, err)
	require.NotNil(t, reversal.ReversalOf)
	assert.Equal(t, originalID, *reversal.ReversalOf)
	require.Len(t, reversal.Lines, 2)
	assert.Equal(t, EntryTypeCredit, reversal.Lines[0].Type)
	assert.Equal(t, EntryTypeDebit, reversal.Lines[1].Type)
	for _, line := range reversal.Lines {
		assert.True(t, line.Reversed)
	}
	assert.True(t, reversal.Balanced())

	_, err = svc.Reverse(ctx, originalID, "")
	assert.ErrorIs(t, err, shared.ErrAlreadyReversed)
}

func TestReverseMissingBatch(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	_, err := svc.Reverse(context.Background(), uuid.New(), "")
	assert.ErrorIs(t, err, shared.ErrBatchNotFound)
}
