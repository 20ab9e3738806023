package repository

import (
	"time"

	"github.com/nimasrn/farm-ledger/internal/model"
	"github.com/nimasrn/farm-ledger/pkg/pg"
	"github.com/shopspring/decimal"
)

type UserEntity struct {
	ID           int64      `gorm:"primaryKey;autoIncrement;column:id"`
	Username     string     `gorm:"column:username;not null;uniqueIndex"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	FullName     string     `gorm:"column:full_name;not null"`
	Role         string     `gorm:"column:role;not null"`
	IsActive     bool       `gorm:"column:is_active;not null"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at"`
	pg.Timestamps
}

func (UserEntity) TableName() string { return "users" }

type CustomerEntity struct {
	ID                  int64   `gorm:"primaryKey;autoIncrement;column:id"`
	Name                string  `gorm:"column:name;not null;index"`
	FatherName          string  `gorm:"column:father_name;not null"`
	Phone               string  `gorm:"column:phone;not null"`
	Village             string  `gorm:"column:village;not null"`
	Address             string  `gorm:"column:address;not null"`
	Notes               string  `gorm:"column:notes;not null"`
	NationalIDEncrypted *string `gorm:"column:national_id_encrypted"`
	NationalIDHash      *string `gorm:"column:national_id_hash;uniqueIndex"`
	IsActive            bool    `gorm:"column:is_active;not null"`
	pg.Timestamps
}

func (CustomerEntity) TableName() string { return "customers" }

type ProjectEntity struct {
	ID          int64           `gorm:"primaryKey;autoIncrement;column:id"`
	CustomerID  int64           `gorm:"column:customer_id;not null;index"`
	Customer    *CustomerEntity `gorm:"foreignKey:CustomerID;references:ID;constraint:OnDelete:CASCADE"`
	Name        string          `gorm:"column:name;not null"`
	Location    string          `gorm:"column:location;not null"`
	Description string          `gorm:"column:description;not null"`
	LandArea    decimal.Decimal `gorm:"column:land_area;type:numeric(12,2);not null"`
	AreaUnit    string          `gorm:"column:area_unit;not null"`
	StartDate   *model.Date     `gorm:"column:start_date;type:date"`
	Status      string          `gorm:"column:status;not null;index"`
	pg.Timestamps
}

func (ProjectEntity) TableName() string { return "projects" }

type TransactionEntity struct {
	ID           int64            `gorm:"primaryKey;autoIncrement;column:id"`
	CustomerID   int64            `gorm:"column:customer_id;not null;index:idx_transactions_scope,priority:1"`
	Customer     *CustomerEntity  `gorm:"foreignKey:CustomerID;references:ID;constraint:OnDelete:CASCADE"`
	ProjectID    int64            `gorm:"column:project_id;not null;index:idx_transactions_scope,priority:2"`
	Project      *ProjectEntity   `gorm:"foreignKey:ProjectID;references:ID;constraint:OnDelete:CASCADE"`
	SerialNumber int              `gorm:"column:serial_number;not null;index:idx_transactions_scope,priority:3"`
	Date         model.Date       `gorm:"column:date;type:date;not null"`
	ExpenseType  string           `gorm:"column:expense_type;not null"`
	Quantity     *decimal.Decimal `gorm:"column:quantity;type:numeric(14,3)"`
	Unit         string           `gorm:"column:unit;not null"`
	Debit        decimal.Decimal  `gorm:"column:debit;type:numeric(14,2);not null"`
	Credit       decimal.Decimal  `gorm:"column:credit;type:numeric(14,2);not null"`
	Remark       string           `gorm:"column:remark;not null"`
	pg.Timestamps
}

func (TransactionEntity) TableName() string { return "transactions" }

type ActivityLogEntity struct {
	ID            int64     `gorm:"primaryKey;autoIncrement;column:id"`
	EventID       string    `gorm:"column:event_id;not null;uniqueIndex"`
	EventType     string    `gorm:"column:event_type;not null"`
	ActorID       int64     `gorm:"column:actor_id;not null"`
	CustomerID    int64     `gorm:"column:customer_id;not null;index"`
	ProjectID     int64     `gorm:"column:project_id;not null"`
	TransactionID int64     `gorm:"column:transaction_id;not null"`
	SerialNumber  int       `gorm:"column:serial_number;not null"`
	Details       string    `gorm:"column:details;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ActivityLogEntity) TableName() string { return "activity_logs" }

// AllEntities is the schema in dependency order.
func AllEntities() []any {
	return []any{&UserEntity{}, &CustomerEntity{}, &ProjectEntity{}, &TransactionEntity{}, &ActivityLogEntity{}}
}

func toUserEntity(m *model.User) *UserEntity {
	if m == nil {
		return nil
	}
	return &UserEntity{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		FullName:     m.FullName,
		Role:         string(m.Role),
		IsActive:     m.IsActive,
		LastLoginAt:  m.LastLoginAt,
	}
}

func toUserModel(e *UserEntity) *model.User {
	if e == nil {
		return nil
	}
	return &model.User{
		ID:           e.ID,
		Username:     e.Username,
		PasswordHash: e.PasswordHash,
		FullName:     e.FullName,
		Role:         model.Role(e.Role),
		IsActive:     e.IsActive,
		LastLoginAt:  e.LastLoginAt,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func toCustomerEntity(m *model.Customer) *CustomerEntity {
	if m == nil {
		return nil
	}
	return &CustomerEntity{
		ID:                  m.ID,
		Name:                m.Name,
		FatherName:          m.FatherName,
		Phone:               m.Phone,
		Village:             m.Village,
		Address:             m.Address,
		Notes:               m.Notes,
		NationalIDEncrypted: nullable(m.NationalIDEncrypted),
		NationalIDHash:      nullable(m.NationalIDHash),
		IsActive:            m.IsActive,
	}
}

func toCustomerModel(e *CustomerEntity) *model.Customer {
	if e == nil {
		return nil
	}
	return &model.Customer{
		ID:                  e.ID,
		Name:                e.Name,
		FatherName:          e.FatherName,
		Phone:               e.Phone,
		Village:             e.Village,
		Address:             e.Address,
		Notes:               e.Notes,
		NationalIDEncrypted: deref(e.NationalIDEncrypted),
		NationalIDHash:      deref(e.NationalIDHash),
		IsActive:            e.IsActive,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

func toCustomerModels(entities []*CustomerEntity) []*model.Customer {
	models := make([]*model.Customer, len(entities))
	for i, e := range entities {
		models[i] = toCustomerModel(e)
	}
	return models
}

func toProjectEntity(m *model.Project) *ProjectEntity {
	if m == nil {
		return nil
	}
	return &ProjectEntity{
		ID:          m.ID,
		CustomerID:  m.CustomerID,
		Name:        m.Name,
		Location:    m.Location,
		Description: m.Description,
		LandArea:    m.LandArea,
		AreaUnit:    string(m.AreaUnit),
		StartDate:   m.StartDate,
		Status:      string(m.Status),
	}
}

func toProjectModel(e *ProjectEntity) *model.Project {
	if e == nil {
		return nil
	}
	return &model.Project{
		ID:          e.ID,
		CustomerID:  e.CustomerID,
		Name:        e.Name,
		Location:    e.Location,
		Description: e.Description,
		LandArea:    e.LandArea,
		AreaUnit:    model.AreaUnit(e.AreaUnit),
		StartDate:   e.StartDate,
		Status:      model.ProjectStatus(e.Status),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func toProjectModels(entities []*ProjectEntity) []*model.Project {
	models := make([]*model.Project, len(entities))
	for i, e := range entities {
		models[i] = toProjectModel(e)
	}
	return models
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	return &TransactionEntity{
		ID:           m.ID,
		CustomerID:   m.CustomerID,
		ProjectID:    m.ProjectID,
		SerialNumber: m.SerialNumber,
		Date:         m.Date,
		ExpenseType:  string(m.ExpenseType),
		Quantity:     m.Quantity,
		Unit:         m.Unit,
		Debit:        m.Debit,
		Credit:       m.Credit,
		Remark:       m.Remark,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	return &model.Transaction{
		ID:           e.ID,
		CustomerID:   e.CustomerID,
		ProjectID:    e.ProjectID,
		SerialNumber: e.SerialNumber,
		Date:         e.Date,
		ExpenseType:  model.ExpenseType(e.ExpenseType),
		Quantity:     e.Quantity,
		Unit:         e.Unit,
		Debit:        e.Debit,
		Credit:       e.Credit,
		Remark:       e.Remark,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}

func toActivityLogModel(e *ActivityLogEntity) *model.ActivityLog {
	return &model.ActivityLog{
		ID:            e.ID,
		EventID:       e.EventID,
		EventType:     model.LedgerEventType(e.EventType),
		ActorID:       e.ActorID,
		CustomerID:    e.CustomerID,
		ProjectID:     e.ProjectID,
		TransactionID: e.TransactionID,
		SerialNumber:  e.SerialNumber,
		Details:       e.Details,
		CreatedAt:     e.CreatedAt,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
