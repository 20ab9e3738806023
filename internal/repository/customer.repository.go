package repository

import (
	"context"

	"github.com/nimasrn/farm-ledger/internal/model"
	"github.com/nimasrn/farm-ledger/pkg/pg"
)

type CustomerRepository struct {
	*pg.DB
}

func NewCustomerRepository(db *pg.DB) *CustomerRepository {
	return &CustomerRepository{
		db,
	}
}

func (r *CustomerRepository) Create(ctx context.Context, c *model.Customer) (*model.Customer, error) {
	entity := toCustomerEntity(c)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, duplicate(err, model.ErrDuplicateNationalID)
	}
	return toCustomerModel(entity), nil
}

func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*model.Customer, error) {
	var entity CustomerEntity
	if err := r.Read(ctx).Where("id = ?", id).First(&entity).Error; err != nil {
		return nil, notFound(err, model.ErrCustomerNotFound)
	}
	return toCustomerModel(&entity), nil
}

func (r *CustomerRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := r.Read(ctx).Model(&CustomerEntity{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// List returns customers ordered by name. Search matches name, father
// name, village and phone.
func (r *CustomerRepository) List(ctx context.Context, f model.CustomerFilter) ([]*model.Customer, error) {
	q := r.Read(ctx).Model(&CustomerEntity{})

	if f.Search != "" {
		p := likePattern(f.Search)
		q = q.Where(
			"LOWER(name) LIKE ?"+likeEscape+" OR LOWER(father_name) LIKE ?"+likeEscape+
				" OR LOWER(village) LIKE ?"+likeEscape+" OR phone LIKE ?"+likeEscape,
			p, p, p, p,
		)
	}
	switch f.Status {
	case model.CustomerStatusActive:
		q = q.Where("is_active = ?", true)
	case model.CustomerStatusInactive:
		q = q.Where("is_active = ?", false)
	}

	var entities []*CustomerEntity
	if err := q.Order("name ASC").Order("id ASC").Find(&entities).Error; err != nil {
		return nil, err
	}
	return toCustomerModels(entities), nil
}

// ExistsByNationalIDHash reports whether another customer already holds
// the id behind hash. excludeID skips the customer being updated.
func (r *CustomerRepository) ExistsByNationalIDHash(ctx context.Context, hash string, excludeID int64) (bool, error) {
	if hash == "" {
		return false, nil
	}
	q := r.Read(ctx).Model(&CustomerEntity{}).Where("national_id_hash = ?", hash)
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update writes the given columns and returns the reloaded row.
func (r *CustomerRepository) Update(ctx context.Context, id int64, updates map[string]any) (*model.Customer, error) {
	if len(updates) > 0 {
		res := r.Write(ctx).Model(&CustomerEntity{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, duplicate(res.Error, model.ErrDuplicateNationalID)
		}
		if res.RowsAffected == 0 {
			return nil, model.ErrCustomerNotFound
		}
	}
	var entity CustomerEntity
	if err := r.Write(ctx).Where("id = ?", id).First(&entity).Error; err != nil {
		return nil, notFound(err, model.ErrCustomerNotFound)
	}
	return toCustomerModel(&entity), nil
}

// SetNationalID stores or clears the encrypted id and its hash.
func (r *CustomerRepository) SetNationalID(ctx context.Context, id int64, ciphertext, hash string) error {
	res := r.Write(ctx).Model(&CustomerEntity{}).Where("id = ?", id).Updates(map[string]any{
		"national_id_encrypted": nullable(ciphertext),
		"national_id_hash":      nullable(hash),
	})
	if res.Error != nil {
		return duplicate(res.Error, model.ErrDuplicateNationalID)
	}
	if res.RowsAffected == 0 {
		return model.ErrCustomerNotFound
	}
	return nil
}

// ToggleActive flips is_active and returns the new value.
func (r *CustomerRepository) ToggleActive(ctx context.Context, id int64) (bool, error) {
	var active bool
	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		var entity CustomerEntity
		if err := r.Write(ctx).Where("id = ?", id).First(&entity).Error; err != nil {
			return notFound(err, model.ErrCustomerNotFound)
		}
		active = !entity.IsActive
		return r.Write(ctx).Model(&CustomerEntity{}).Where("id = ?", id).Update("is_active", active).Error
	})
	return active, err
}

// Delete removes the customer with its projects and transactions.
func (r *CustomerRepository) Delete(ctx context.Context, id int64) error {
	return r.WithinTransaction(ctx, func(ctx context.Context) error {
		db := r.Write(ctx)
		if err := db.Where("customer_id = ?", id).Delete(&TransactionEntity{}).Error; err != nil {
			return err
		}
		if err := db.Where("customer_id = ?", id).Delete(&ProjectEntity{}).Error; err != nil {
			return err
		}
		res := db.Where("id = ?", id).Delete(&CustomerEntity{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return model.ErrCustomerNotFound
		}
		return nil
	})
}

// Summary totals the customer's transactions per project. Projects with
// no transactions are included with zero totals.
func (r *CustomerRepository) Summary(ctx context.Context, customerID int64) ([]*model.ProjectSummary, error) {
	var rows []struct {
		ProjectID        int64
		ProjectName      string
		TotalDebit       string
		TotalCredit      string
		TransactionCount int64
	}
	err := r.Read(ctx).
		Table("projects AS p").
		Select("p.id AS project_id, p.name AS project_name, " +
			"CAST(COALESCE(SUM(t.debit), 0) AS TEXT) AS total_debit, " +
			"CAST(COALESCE(SUM(t.credit), 0) AS TEXT) AS total_credit, " +
			"COUNT(t.id) AS transaction_count").
		Joins("LEFT JOIN transactions AS t ON t.project_id = p.id AND t.customer_id = p.customer_id").
		Where("p.customer_id = ?", customerID).
		Group("p.id, p.name").
		Order("p.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]*model.ProjectSummary, 0, len(rows))
	for _, row := range rows {
		debit, err := parseAmount(row.TotalDebit)
		if err != nil {
			return nil, err
		}
		credit, err := parseAmount(row.TotalCredit)
		if err != nil {
			return nil, err
		}
		out = append(out, &model.ProjectSummary{
			ProjectID:        row.ProjectID,
			ProjectName:      row.ProjectName,
			TotalDebit:       debit,
			TotalCredit:      credit,
			Balance:          credit.Sub(debit),
			TransactionCount: row.TransactionCount,
		})
	}
	return out, nil
}
