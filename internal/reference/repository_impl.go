package reference

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/posreport/internal/clock"
	"github.com/smallbiznis/posreport/internal/reference/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock clock.Clock
}

func NewRepository(db *gorm.DB, genID *snowflake.Node, clk clock.Clock) domain.Repository {
	return &repository{db: db, genID: genID, clock: clk}
}

func (r *repository) Exists(ctx context.Context, branch, store string) (domain.Match, error) {
	branch = strings.TrimSpace(branch)
	store = strings.TrimSpace(store)
	if branch == "" {
		return domain.Match{}, nil
	}

	var b domain.Branch
	err := r.db.WithContext(ctx).
		Where("code = ? OR name = ?", branch, branch).
		Limit(1).
		Find(&b).Error
	if err != nil {
		return domain.Match{}, err
	}
	if b.ID == 0 {
		return domain.Match{}, nil
	}
	if store == "" {
		return domain.Match{Branch: true}, nil
	}

	var count int64
	err = r.db.WithContext(ctx).
		Model(&domain.Store{}).
		Where("branch_code = ?", b.Code).
		Where("code = ? OR name = ?", store, store).
		Count(&count).Error
	if err != nil {
		return domain.Match{}, err
	}
	return domain.Match{Branch: true, Store: count > 0}, nil
}

func (r *repository) EnsureBranchStore(ctx context.Context, branch, store string) error {
	branch = strings.TrimSpace(branch)
	store = strings.TrimSpace(store)
	now := r.clock.Now()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).Create(&domain.Branch{
			ID:        r.genID.Generate(),
			Code:      branch,
			Name:      branch,
			CreatedAt: now,
		}).Error; err != nil {
			return err
		}
		if store == "" {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "branch_code"}, {Name: "code"}},
			DoNothing: true,
		}).Create(&domain.Store{
			ID:         r.genID.Generate(),
			BranchCode: branch,
			Code:       store,
			Name:       store,
			CreatedAt:  now,
		}).Error
	})
}

func (r *repository) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	var branches []domain.Branch
	err := r.db.WithContext(ctx).Order("code").Find(&branches).Error
	return branches, err
}

func (r *repository) ListStores(ctx context.Context, branchCode string) ([]domain.Store, error) {
	var stores []domain.Store
	err := r.db.WithContext(ctx).
		Where("branch_code = ?", strings.TrimSpace(branchCode)).
		Order("code").
		Find(&stores).Error
	return stores, err
}
