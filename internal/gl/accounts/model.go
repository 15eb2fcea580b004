package accounts

import (
	"strconv"
	"time"
)

// Classification enumerates CoA categories.
type Classification string

const (
	ClassificationAsset     Classification = "ASSET"
	ClassificationLiability Classification = "LIABILITY"
	ClassificationEquity    Classification = "EQUITY"
	ClassificationIncome    Classification = "INCOME"
	ClassificationExpense   Classification = "EXPENSE"
)

// Valid reports whether the classification is a known category.
func (c Classification) Valid() bool {
	switch c {
	case ClassificationAsset, ClassificationLiability, ClassificationEquity, ClassificationIncome, ClassificationExpense:
		return true
	}
	return false
}

// Usage distinguishes grouping accounts from postable ones.
type Usage string

const (
	UsageHeader Usage = "HEADER"
	UsageDetail Usage = "DETAIL"
)

// RootHierarchy is the materialized path of a root account.
const RootHierarchy = "."

// Account models a chart of accounts node. Hierarchy is the materialized
// ancestor path: "." for a root, parent.Hierarchy + parent.ID + "." otherwise.
type Account struct {
	ID                   int64
	Code                 string
	Name                 string
	Description          string
	Classification       Classification
	Usage                Usage
	Disabled             bool
	ManualEntriesAllowed bool
	ParentID             *int64
	Hierarchy            string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsDetail reports whether the account accepts journal lines.
func (a Account) IsDetail() bool {
	return a.Usage == UsageDetail
}

// IsHeader reports whether the account only groups children.
func (a Account) IsHeader() bool {
	return a.Usage == UsageHeader
}

// ChildHierarchy returns the materialized path every direct child
// of this account carries, which doubles as the subtree prefix.
func (a Account) ChildHierarchy() string {
	return a.Hierarchy + strconv.FormatInt(a.ID, 10) + "."
}
