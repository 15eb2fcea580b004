package accounts

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northbook/northbook/internal/gl/shared"
	_ "github.com/northbook/northbook/testing"
)

type mockRepository struct {
	accounts map[int64]*Account
	nextID   int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{accounts: make(map[int64]*Account), nextID: 1}
}

func (m *mockRepository) GetByID(ctx context.Context, id int64) (Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, shared.ErrAccountNotFound
	}
	return *a, nil
}

func (m *mockRepository) GetByCode(ctx context.Context, code string) (Account, error) {
	for _, a := range m.accounts {
		if a.Code == code {
			return *a, nil
		}
	}
	return Account{}, shared.ErrAccountNotFound
}

func (m *mockRepository) List(ctx context.Context) ([]Account, error) {
	out := make([]Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &mockTxRepository{mock: m})
}

type mockTxRepository struct {
	mock *mockRepository
}

func (m *mockTxRepository) GetForUpdate(ctx context.Context, id int64) (Account, error) {
	return m.mock.GetByID(ctx, id)
}

func (m *mockTxRepository) Insert(ctx context.Context, a Account) (Account, error) {
	if _, err := m.mock.GetByCode(ctx, a.Code); err == nil {
		return Account{}, shared.ErrDuplicateCode
	}
	a.ID = m.mock.nextID
	m.mock.nextID++
	m.mock.accounts[a.ID] = &a
	return a, nil
}

func (m *mockTxRepository) Update(ctx context.Context, a Account) error {
	stored, ok := m.mock.accounts[a.ID]
	if !ok {
		return shared.ErrAccountNotFound
	}
	*stored = a
	return nil
}

func (m *mockTxRepository) DescendantsOf(ctx context.Context, subtreePrefix string) ([]Account, error) {
	var out []Account
	for _, a := range m.mock.accounts {
		if strings.HasPrefix(a.Hierarchy, subtreePrefix) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockTxRepository) SetParentAndHierarchy(ctx context.Context, id int64, parentID *int64, hierarchy string) error {
	a, ok := m.mock.accounts[id]
	if !ok {
		return shared.ErrAccountNotFound
	}
	a.ParentID = parentID
	a.Hierarchy = hierarchy
	return nil
}

func (m *mockTxRepository) SetDisabled(ctx context.Context, id int64, disabled bool) error {
	a, ok := m.mock.accounts[id]
	if !ok {
		return shared.ErrAccountNotFound
	}
	a.Disabled = disabled
	return nil
}

func mustCreate(t *testing.T, svc *Service, in CreateInput) Account {
	t.Helper()
	a, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	return a
}

func header(code, name string, parentID *int64) CreateInput {
	return CreateInput{ParentID: parentID, Code: code, Name: name, Classification: ClassificationAsset, Usage: UsageHeader}
}

func detail(code, name string, parentID *int64) CreateInput {
	return CreateInput{ParentID: parentID, Code: code, Name: name, Classification: ClassificationAsset, Usage: UsageDetail, ManualEntriesAllowed: true}
}

func TestCreateComputesHierarchy(t *testing.T) {
	svc := NewService(newMockRepository())
	ctx := context.Background()

	root := mustCreate(t, svc, header("1000", "Assets", nil))
	assert.Equal(t, RootHierarchy, root.Hierarchy)

	child := mustCreate(t, svc, header("1100", "Current Assets", &root.ID))
	assert.Equal(t, root.ChildHierarchy(), child.Hierarchy)

	leaf := mustCreate(t, svc, detail("1110", "Cash", &child.ID))
	assert.Equal(t, child.ChildHierarchy(), leaf.Hierarchy)
	assert.True(t, strings.HasPrefix(leaf.Hierarchy, root.Hierarchy))

	_, err := svc.Create(ctx, detail("1110", "Cash copy", nil))
	assert.ErrorIs(t, err, shared.ErrDuplicateCode)
}

func TestCreateRejectsBadParents(t *testing.T) {
	svc := NewService(newMockRepository())
	ctx := context.Background()

	missing := int64(99)
	_, err := svc.Create(ctx, detail("1000", "Cash", &missing))
	assert.ErrorIs(t, err, shared.ErrInvalidParent)

	leaf := mustCreate(t, svc, detail("1000", "Cash", nil))
	_, err = svc.Create(ctx, detail("1001", "Petty Cash", &leaf.ID))
	assert.ErrorIs(t, err, shared.ErrInvalidParent)
}

func TestReparentRewritesSubtree(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)
	ctx := context.Background()

	rootA := mustCreate(t, svc, header("1000", "Assets", nil))
	rootB := mustCreate(t, svc, header("2000", "Liabilities", nil))
	mid := mustCreate(t, svc, header("1100", "Current", &rootA.ID))
	leaf1 := mustCreate(t, svc, detail("1110", "Cash", &mid.ID))
	leaf2 := mustCreate(t, svc, detail("1120", "Bank", &mid.ID))

	require.NoError(t, svc.Reparent(ctx, mid.ID, &rootB.ID))

	moved, err := svc.GetByID(ctx, mid.ID)
	require.NoError(t, err)
	assert.Equal(t, rootB.ChildHierarchy(), moved.Hierarchy)

	for _, id := range []int64{leaf1.ID, leaf2.ID} {
		got, err := svc.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, moved.ChildHierarchy(), got.Hierarchy)
		assert.True(t, strings.HasPrefix(got.Hierarchy, rootB.Hierarchy))
	}
}

func TestReparentToRoot(t *testing.T) {
	svc := NewService(newMockRepository())
	ctx := context.Background()

	root := mustCreate(t, svc, header("1000", "Assets", nil))
	mid := mustCreate(t, svc, header("1100", "Current", &root.ID))
	leaf := mustCreate(t, svc, detail("1110", "Cash", &mid.ID))

	require.NoError(t, svc.Reparent(ctx, mid.ID, nil))

	moved, err := svc.GetByID(ctx, mid.ID)
	require.NoError(t, err)
	assert.Equal(t, RootHierarchy, moved.Hierarchy)

	got, err := svc.GetByID(ctx, leaf.ID)
	require.NoError(t, err)
	assert.Equal(t, moved.ChildHierarchy(), got.Hierarchy)
}

func TestReparentRejectsCycles(t *testing.T) {
	svc := NewService(newMockRepository())
	ctx := context.Background()

	root := mustCreate(t, svc, header("1000", "Assets", nil))
	mid := mustCreate(t, svc, header("1100", "Current", &root.ID))
	deep := mustCreate(t, svc, header("1110", "Deep", &mid.ID))

	assert.ErrorIs(t, svc.Reparent(ctx, root.ID, &deep.ID), shared.ErrCycle)
	assert.ErrorIs(t, svc.Reparent(ctx, root.ID, &root.ID), shared.ErrCycle)
}

func TestResolvePostable(t *testing.T) {
	svc := NewService(newMockRepository())
	ctx := context.Background()

	head := mustCreate(t, svc, header("1000", "Assets", nil))
	_, err := svc.ResolvePostable(ctx, head.ID, true)
	assert.ErrorIs(t, err, shared.ErrAccountNotPostable)

	leaf := mustCreate(t, svc, detail("1100", "Cash", &head.ID))
	got, err := svc.ResolvePostable(ctx, leaf.ID, true)
	require.NoError(t, err)
	assert.Equal(t, leaf.ID, got.ID)

	require.NoError(t, svc.Disable(ctx, leaf.ID))
	_, err = svc.ResolvePostable(ctx, leaf.ID, true)
	assert.ErrorIs(t, err, shared.ErrAccountNotPostable)

	noManual := mustCreate(t, svc, CreateInput{
		ParentID: &head.ID, Code: "1200", Name: "System only",
		Classification: ClassificationAsset, Usage: UsageDetail, ManualEntriesAllowed: false,
	})
	_, err = svc.ResolvePostable(ctx, noManual.ID, true)
	assert.ErrorIs(t, err, shared.ErrAccountNotPostable)
	_, err = svc.ResolvePostable(ctx, noManual.ID, false)
	assert.NoError(t, err)
}

func TestUsageLookups(t *testing.T) {
	svc := NewService(newMockRepository())
	ctx := context.Background()

	head := mustCreate(t, svc, header("1000", "Assets", nil))
	leaf := mustCreate(t, svc, detail("1100", "Cash", &head.ID))

	isDetail, err := svc.IsDetailAccount(ctx, leaf.ID)
	require.NoError(t, err)
	assert.True(t, isDetail)

	isHeader, err := svc.IsHeaderAccount(ctx, head.ID)
	require.NoError(t, err)
	assert.True(t, isHeader)

	_, err = svc.IsDetailAccount(ctx, 42)
	assert.ErrorIs(t, err, shared.ErrAccountNotFound)
}
