package repository

import (
	"context"

	"github.com/nimasrn/farm-ledger/internal/model"
	"github.com/nimasrn/farm-ledger/pkg/pg"
	"gorm.io/gorm/clause"
)

type ProjectRepository struct {
	*pg.DB
}

func NewProjectRepository(db *pg.DB) *ProjectRepository {
	return &ProjectRepository{
		db,
	}
}

func (r *ProjectRepository) Create(ctx context.Context, p *model.Project) (*model.Project, error) {
	entity := toProjectEntity(p)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toProjectModel(entity), nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*model.Project, error) {
	var entity ProjectEntity
	if err := r.Read(ctx).Where("id = ?", id).First(&entity).Error; err != nil {
		return nil, notFound(err, model.ErrProjectNotFound)
	}
	return toProjectModel(&entity), nil
}

// LockByID loads the project with SELECT ... FOR UPDATE. It must run
// inside WithinTransaction for the lock to last until commit.
func (r *ProjectRepository) LockByID(ctx context.Context, id int64) (*model.Project, error) {
	var entity ProjectEntity
	err := r.Write(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		return nil, notFound(err, model.ErrProjectNotFound)
	}
	return toProjectModel(&entity), nil
}

func (r *ProjectRepository) CountByCustomer(ctx context.Context, customerID int64) (int64, error) {
	var count int64
	err := r.Read(ctx).Model(&ProjectEntity{}).Where("customer_id = ?", customerID).Count(&count).Error
	return count, err
}

func (r *ProjectRepository) List(ctx context.Context, f model.ProjectFilter) ([]*model.Project, error) {
	q := r.Read(ctx).Model(&ProjectEntity{}).Where("customer_id = ?", f.CustomerID)

	if f.Search != "" {
		p := likePattern(f.Search)
		q = q.Where("LOWER(name) LIKE ?"+likeEscape+" OR LOWER(location) LIKE ?"+likeEscape, p, p)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}

	var entities []*ProjectEntity
	if err := q.Order("id ASC").Find(&entities).Error; err != nil {
		return nil, err
	}
	return toProjectModels(entities), nil
}

func (r *ProjectRepository) Update(ctx context.Context, id int64, updates map[string]any) (*model.Project, error) {
	if len(updates) > 0 {
		res := r.Write(ctx).Model(&ProjectEntity{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, model.ErrProjectNotFound
		}
	}
	var entity ProjectEntity
	if err := r.Write(ctx).Where("id = ?", id).First(&entity).Error; err != nil {
		return nil, notFound(err, model.ErrProjectNotFound)
	}
	return toProjectModel(&entity), nil
}

// Delete removes the project and its transactions.
func (r *ProjectRepository) Delete(ctx context.Context, id int64) error {
	return r.WithinTransaction(ctx, func(ctx context.Context) error {
		db := r.Write(ctx)
		if err := db.Where("project_id = ?", id).Delete(&TransactionEntity{}).Error; err != nil {
			return err
		}
		res := db.Where("id = ?", id).Delete(&ProjectEntity{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return model.ErrProjectNotFound
		}
		return nil
	})
}
