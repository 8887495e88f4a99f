package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/posreport/internal/clock"
	"github.com/smallbiznis/posreport/internal/ingestion/domain"
	"github.com/smallbiznis/posreport/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock clock.Clock
}

func New(conn *gorm.DB, genID *snowflake.Node, clk clock.Clock) *Repository {
	return &Repository{db: conn, genID: genID, clock: clk}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx, genID: r.genID, clock: r.clock}
}

// Transaction runs fn in one database transaction. Everything fn writes through the
// repository it receives rolls back together.
func (r *Repository) Transaction(ctx context.Context, fn func(repo *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

// Upsert inserts row, or overwrites the non-key columns of the row already holding its
// natural key. The insert runs in a savepoint so a unique violation leaves the
// surrounding transaction usable for the update.
func (r *Repository) Upsert(ctx context.Context, row domain.Record) (domain.Outcome, error) {
	now := r.clock.Now()
	meta := row.Meta()
	meta.ID = r.genID.Generate()
	meta.CreatedAt = now
	meta.UpdatedAt = now

	err := r.db.WithContext(ctx).Transaction(func(sp *gorm.DB) error {
		return sp.Create(row).Error
	})
	if err == nil {
		return domain.OutcomeCreated, nil
	}
	if !db.IsDuplicateKeyErr(err) {
		return "", err
	}

	attrs := row.Attributes()
	attrs["updated_at"] = now
	if err := r.db.WithContext(ctx).
		Table(row.TableName()).
		Where(row.NaturalKey()).
		Updates(attrs).Error; err != nil {
		return "", err
	}

	*meta = domain.Entity{}
	if err := r.db.WithContext(ctx).Where(row.NaturalKey()).Take(row).Error; err != nil {
		return "", err
	}
	return domain.OutcomeUpdated, nil
}

// EnsureCategory reports whether this call created the category.
func (r *Repository) EnsureCategory(ctx context.Context, code, name string) (bool, error) {
	now := r.clock.Now()
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).
		Create(&domain.Category{
			ID:        r.genID.Generate(),
			Code:      code,
			Name:      name,
			CreatedAt: now,
			UpdatedAt: now,
		})
	return res.RowsAffected > 0, res.Error
}

// EnsureProduct reports whether this call created the product. An existing product
// keeps its category.
func (r *Repository) EnsureProduct(ctx context.Context, code, categoryCode, name string) (bool, error) {
	now := r.clock.Now()
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).
		Create(&domain.Product{
			ID:           r.genID.Generate(),
			Code:         code,
			CategoryCode: categoryCode,
			Name:         name,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *Repository) FindDocument(ctx context.Context, id snowflake.ID) (*domain.Document, error) {
	var doc domain.Document
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
