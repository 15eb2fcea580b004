package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/northbook/northbook/internal/gl/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput groups fields for a new chart-of-accounts node.
type CreateInput struct {
	ParentID             *int64
	Code                 string
	Name                 string
	Description          string
	Classification       Classification
	Usage                Usage
	ManualEntriesAllowed bool
}

// UpdateInput carries mutable attributes of an existing node.
type UpdateInput struct {
	Name                 string
	Description          string
	Classification       Classification
	ManualEntriesAllowed bool
}

func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

func (s *Service) GetByID(ctx context.Context, id int64) (Account, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByCode(ctx context.Context, code string) (Account, error) {
	return s.repo.GetByCode(ctx, code)
}

// Create inserts a new account with its hierarchy derived from the parent.
func (s *Service) Create(ctx context.Context, in CreateInput) (Account, error) {
	if strings.TrimSpace(in.Code) == "" {
		return Account{}, errors.New("gl: account code required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return Account{}, errors.New("gl: account name required")
	}
	if !in.Classification.Valid() {
		return Account{}, fmt.Errorf("gl: unknown classification %q", in.Classification)
	}
	if in.Usage != UsageHeader && in.Usage != UsageDetail {
		return Account{}, fmt.Errorf("gl: unknown usage %q", in.Usage)
	}
	var created Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		hierarchy := RootHierarchy
		if in.ParentID != nil {
			parent, err := tx.GetForUpdate(ctx, *in.ParentID)
			if err != nil {
				if errors.Is(err, shared.ErrAccountNotFound) {
					return shared.ErrInvalidParent
				}
				return err
			}
			if parent.IsDetail() {
				return shared.ErrInvalidParent
			}
			hierarchy = parent.ChildHierarchy()
		}
		inserted, err := tx.Insert(ctx, Account{
			Code:                 in.Code,
			Name:                 in.Name,
			Description:          in.Description,
			Classification:       in.Classification,
			Usage:                in.Usage,
			ManualEntriesAllowed: in.ManualEntriesAllowed,
			ParentID:             in.ParentID,
			Hierarchy:            hierarchy,
		})
		if err != nil {
			return err
		}
		created = inserted
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return created, nil
}

// Update renames or reclassifies an account in place.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Account, error) {
	if !in.Classification.Valid() {
		return Account{}, fmt.Errorf("gl: unknown classification %q", in.Classification)
	}
	var updated Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		current.Name = in.Name
		current.Description = in.Description
		current.Classification = in.Classification
		current.ManualEntriesAllowed = in.ManualEntriesAllowed
		if err := tx.Update(ctx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return updated, nil
}

// Reparent moves an account under a new parent (nil for root) and rewrites the
// materialized path of the node and every pre-existing descendant.
func (s *Service) Reparent(ctx context.Context, accountID int64, newParentID *int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		node, err := tx.GetForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		oldPrefix := node.ChildHierarchy()
		newHierarchy := RootHierarchy
		if newParentID != nil {
			if *newParentID == node.ID {
				return shared.ErrCycle
			}
			parent, err := tx.GetForUpdate(ctx, *newParentID)
			if err != nil {
				if errors.Is(err, shared.ErrAccountNotFound) {
					return shared.ErrInvalidParent
				}
				return err
			}
			if parent.IsDetail() {
				return shared.ErrInvalidParent
			}
			if strings.HasPrefix(parent.Hierarchy, oldPrefix) {
				return shared.ErrCycle
			}
			newHierarchy = parent.ChildHierarchy()
		}
		descendants, err := tx.DescendantsOf(ctx, oldPrefix)
		if err != nil {
			return err
		}
		if err := tx.SetParentAndHierarchy(ctx, node.ID, newParentID, newHierarchy); err != nil {
			return err
		}
		node.Hierarchy = newHierarchy
		newPrefix := node.ChildHierarchy()
		for _, desc := range descendants {
			rewritten := newPrefix + strings.TrimPrefix(desc.Hierarchy, oldPrefix)
			if err := tx.SetParentAndHierarchy(ctx, desc.ID, desc.ParentID, rewritten); err != nil {
				return err
			}
		}
		return nil
	})
}

// Disable soft-disables an account; postings to it are rejected afterwards.
func (s *Service) Disable(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetForUpdate(ctx, id); err != nil {
			return err
		}
		return tx.SetDisabled(ctx, id, true)
	})
}

// IsDetailAccount reports whether the account is postable by usage.
func (s *Service) IsDetailAccount(ctx context.Context, id int64) (bool, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return a.IsDetail(), nil
}

// IsHeaderAccount reports whether the account only groups children.
func (s *Service) IsHeaderAccount(ctx context.Context, id int64) (bool, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return a.IsHeader(), nil
}

// ResolvePostable loads the account and verifies it can receive a journal
// line. Manual postings additionally require ManualEntriesAllowed.
func (s *Service) ResolvePostable(ctx context.Context, id int64, manual bool) (Account, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if a.IsHeader() || a.Disabled {
		return Account{}, shared.ErrAccountNotPostable
	}
	if manual && !a.ManualEntriesAllowed {
		return Account{}, shared.ErrAccountNotPostable
	}
	return a, nil
}
