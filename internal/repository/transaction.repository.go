package repository

import (
	"context"

	"github.com/nimasrn/farm-ledger/internal/ledger"
	"github.com/nimasrn/farm-ledger/internal/model"
	"github.com/nimasrn/farm-ledger/pkg/pg"
)

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(txn)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toTransactionModel(entity), nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*model.Transaction, error) {
	var entity TransactionEntity
	if err := r.Read(ctx).Where("id = ?", id).First(&entity).Error; err != nil {
		return nil, notFound(err, model.ErrTransactionNotFound)
	}
	return toTransactionModel(&entity), nil
}

// List returns a customer's transactions ordered by project then serial.
func (r *TransactionRepository) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, error) {
	q := r.Read(ctx).Model(&TransactionEntity{}).Where("customer_id = ?", f.CustomerID)

	if f.ProjectID != nil {
		q = q.Where("project_id = ?", *f.ProjectID)
	}
	if f.ExpenseType != "" {
		q = q.Where("expense_type = ?", string(f.ExpenseType))
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		q = q.Where("LOWER(remark) LIKE ?"+likeEscape+" OR LOWER(unit) LIKE ?"+likeEscape, p, p)
	}
	if f.From != nil {
		q = q.Where("date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("date <= ?", *f.To)
	}

	var entities []*TransactionEntity
	if err := q.Order("project_id ASC").Order("serial_number ASC").Order("id ASC").Find(&entities).Error; err != nil {
		return nil, err
	}
	return toTransactionModels(entities), nil
}

// Update writes the mutable columns of txn. Pair and serial are left alone.
func (r *TransactionRepository) Update(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	res := r.Write(ctx).Model(&TransactionEntity{}).Where("id = ?", txn.ID).Updates(map[string]any{
		"date":         txn.Date,
		"expense_type": string(txn.ExpenseType),
		"quantity":     txn.Quantity,
		"unit":         txn.Unit,
		"debit":        txn.Debit,
		"credit":       txn.Credit,
		"remark":       txn.Remark,
	})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, model.ErrTransactionNotFound
	}

	var entity TransactionEntity
	if err := r.Write(ctx).Where("id = ?", txn.ID).First(&entity).Error; err != nil {
		return nil, notFound(err, model.ErrTransactionNotFound)
	}
	return toTransactionModel(&entity), nil
}

func (r *TransactionRepository) Delete(ctx context.Context, id int64) error {
	res := r.Write(ctx).Where("id = ?", id).Delete(&TransactionEntity{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrTransactionNotFound
	}
	return nil
}

// MaxSerial is the highest serial of the scope, 0 when it is empty.
func (r *TransactionRepository) MaxSerial(ctx context.Context, s ledger.Scope) (int, error) {
	var max int
	err := r.Write(ctx).Model(&TransactionEntity{}).
		Where("customer_id = ? AND project_id = ?", s.CustomerID, s.ProjectID).
		Select("COALESCE(MAX(serial_number), 0)").
		Scan(&max).Error
	return max, err
}

// Entries lists the scope ordered by serial then id.
func (r *TransactionRepository) Entries(ctx context.Context, s ledger.Scope) ([]ledger.Entry, error) {
	var rows []struct {
		ID           int64
		SerialNumber int
	}
	err := r.Write(ctx).Model(&TransactionEntity{}).
		Select("id, serial_number").
		Where("customer_id = ? AND project_id = ?", s.CustomerID, s.ProjectID).
		Order("serial_number ASC").Order("id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	entries := make([]ledger.Entry, len(rows))
	for i, row := range rows {
		entries[i] = ledger.Entry{ID: row.ID, Serial: row.SerialNumber}
	}
	return entries, nil
}

// ApplySerials writes each change in order.
func (r *TransactionRepository) ApplySerials(ctx context.Context, changes []ledger.Change) error {
	for _, c := range changes {
		err := r.Write(ctx).Model(&TransactionEntity{}).
			Where("id = ?", c.ID).
			Update("serial_number", c.To).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// Scopes lists every (customer, project) pair that has transactions.
func (r *TransactionRepository) Scopes(ctx context.Context) ([]ledger.Scope, error) {
	var rows []struct {
		CustomerID int64
		ProjectID  int64
	}
	err := r.Read(ctx).Model(&TransactionEntity{}).
		Distinct("customer_id", "project_id").
		Order("customer_id ASC").Order("project_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	scopes := make([]ledger.Scope, len(rows))
	for i, row := range rows {
		scopes[i] = ledger.Scope{CustomerID: row.CustomerID, ProjectID: row.ProjectID}
	}
	return scopes, nil
}
