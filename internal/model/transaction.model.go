package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ExpenseType string

const (
	ExpenseInvestment      ExpenseType = "investment"
	ExpensePaymentReceived ExpenseType = "payment_received"

	ExpenseLabour     ExpenseType = "labour"
	ExpenseTransport  ExpenseType = "transport"
	ExpenseFertilizer ExpenseType = "fertilizer"
	ExpenseSeeds      ExpenseType = "seeds"
	ExpensePesticide  ExpenseType = "pesticide"
	ExpenseMachinery  ExpenseType = "machinery"
	ExpenseIrrigation ExpenseType = "irrigation"
	ExpenseEquipment  ExpenseType = "equipment"
	ExpenseMisc       ExpenseType = "misc"
)

var creditTypes = map[ExpenseType]bool{
	ExpenseInvestment:      true,
	ExpensePaymentReceived: true,
}

var debitTypes = map[ExpenseType]bool{
	ExpenseLabour:     true,
	ExpenseTransport:  true,
	ExpenseFertilizer: true,
	ExpenseSeeds:      true,
	ExpensePesticide:  true,
	ExpenseMachinery:  true,
	ExpenseIrrigation: true,
	ExpenseEquipment:  true,
	ExpenseMisc:       true,
}

func (t ExpenseType) Valid() bool {
	return creditTypes[t] || debitTypes[t]
}

// IsCredit reports whether money flows in for this type.
func (t ExpenseType) IsCredit() bool {
	return creditTypes[t]
}

// Column limits: amounts are NUMERIC(14,2), quantity NUMERIC(14,3).
var (
	MaxAmount   = decimal.New(1, 12)
	MaxQuantity = decimal.New(1, 11)
)

// CheckAmounts enforces that only the side matching the expense type is
// positive and the other side is zero.
func CheckAmounts(t ExpenseType, debit, credit decimal.Decimal) error {
	if !t.Valid() {
		return ValidationError("expenseType %q is not supported", t)
	}
	if debit.IsNegative() || credit.IsNegative() {
		return ValidationError("amounts must not be negative")
	}
	if debit.GreaterThanOrEqual(MaxAmount) || credit.GreaterThanOrEqual(MaxAmount) {
		return ValidationError("amounts must be less than %s", MaxAmount)
	}
	if t.IsCredit() {
		if !credit.IsPositive() {
			return ValidationError("credit must be greater than 0 for %s", t)
		}
		if !debit.IsZero() {
			return ValidationError("debit must be 0 for %s", t)
		}
		return nil
	}
	if !debit.IsPositive() {
		return ValidationError("debit must be greater than 0 for %s", t)
	}
	if !credit.IsZero() {
		return ValidationError("credit must be 0 for %s", t)
	}
	return nil
}

type Transaction struct {
	ID           int64            `json:"id"`
	CustomerID   int64            `json:"customerId"`
	ProjectID    int64            `json:"projectId"`
	SerialNumber int              `json:"serialNumber"`
	Date         Date             `json:"date"`
	ExpenseType  ExpenseType      `json:"expenseType"`
	Quantity     *decimal.Decimal `json:"quantity,omitempty"`
	Unit         string           `json:"unit,omitempty"`
	Debit        decimal.Decimal  `json:"debit"`
	Credit       decimal.Decimal  `json:"credit"`
	Remark       string           `json:"remark"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

type TransactionCreateRequest struct {
	CustomerID  int64            `json:"customerId"  validate:"required,gt=0"`
	ProjectID   int64            `json:"projectId"   validate:"required,gt=0"`
	Date        *Date            `json:"date"`
	ExpenseType ExpenseType      `json:"expenseType" validate:"required"`
	Quantity    *decimal.Decimal `json:"quantity"`
	Unit        string           `json:"unit"        validate:"max=30"`
	Debit       decimal.Decimal  `json:"debit"`
	Credit      decimal.Decimal  `json:"credit"`
	Remark      string           `json:"remark"      validate:"max=1000"`
	// serial numbers are always assigned by the ledger
	SerialNumber *int `json:"serialNumber"`
}

func (r *TransactionCreateRequest) Validate() error {
	if r.SerialNumber != nil {
		return ValidationError("serialNumber is assigned automatically")
	}
	if err := Validate(r); err != nil {
		return err
	}
	if err := checkQuantity(r.Quantity); err != nil {
		return err
	}
	return CheckAmounts(r.ExpenseType, r.Debit.Round(2), r.Credit.Round(2))
}

// Transaction builds the row to insert, without its serial number.
func (r *TransactionCreateRequest) Transaction(now time.Time) *Transaction {
	t := &Transaction{
		CustomerID:  r.CustomerID,
		ProjectID:   r.ProjectID,
		ExpenseType: r.ExpenseType,
		Quantity:    r.Quantity,
		Unit:        strings.TrimSpace(r.Unit),
		Debit:       r.Debit.Round(2),
		Credit:      r.Credit.Round(2),
		Remark:      r.Remark,
	}
	if r.Date != nil && !r.Date.IsZero() {
		t.Date = *r.Date
	} else {
		t.Date = NewDate(now)
	}
	return t
}

// TransactionUpdateRequest is a partial update. The pair and the serial
// are fixed once a transaction exists.
type TransactionUpdateRequest struct {
	Date        *Date            `json:"date"`
	ExpenseType *ExpenseType     `json:"expenseType"`
	Quantity    *decimal.Decimal `json:"quantity"`
	Unit        *string          `json:"unit"   validate:"omitempty,max=30"`
	Debit       *decimal.Decimal `json:"debit"`
	Credit      *decimal.Decimal `json:"credit"`
	Remark      *string          `json:"remark" validate:"omitempty,max=1000"`

	CustomerID   *int64 `json:"customerId"`
	ProjectID    *int64 `json:"projectId"`
	SerialNumber *int   `json:"serialNumber"`
}

func (r *TransactionUpdateRequest) Validate() error {
	if r.CustomerID != nil || r.ProjectID != nil {
		return ValidationError("a transaction cannot be moved to another customer or project")
	}
	if r.SerialNumber != nil {
		return ValidationError("serialNumber cannot be changed")
	}
	if err := checkQuantity(r.Quantity); err != nil {
		return err
	}
	return Validate(r)
}

// Apply merges the request into t and re-checks the amounts of the result.
func (r *TransactionUpdateRequest) Apply(t *Transaction) error {
	merged := *t
	if r.Date != nil && !r.Date.IsZero() {
		merged.Date = *r.Date
	}
	if r.ExpenseType != nil {
		merged.ExpenseType = *r.ExpenseType
	}
	if r.Quantity != nil {
		merged.Quantity = r.Quantity
	}
	if r.Unit != nil {
		merged.Unit = strings.TrimSpace(*r.Unit)
	}
	if r.Debit != nil {
		merged.Debit = r.Debit.Round(2)
	}
	if r.Credit != nil {
		merged.Credit = r.Credit.Round(2)
	}
	if r.Remark != nil {
		merged.Remark = *r.Remark
	}
	if err := CheckAmounts(merged.ExpenseType, merged.Debit, merged.Credit); err != nil {
		return err
	}
	*t = merged
	return nil
}

// TransactionFilter controls List queries. CustomerID is mandatory.
type TransactionFilter struct {
	CustomerID  int64
	ProjectID   *int64
	ExpenseType ExpenseType
	Search      string
	From        *Date
	To          *Date
}

func (f TransactionFilter) Validate() error {
	if f.ExpenseType != "" && !f.ExpenseType.Valid() {
		return ValidationError("expenseType %q is not supported", f.ExpenseType)
	}
	if f.From != nil && f.To != nil && f.To.Before(f.From.Time) {
		return ValidationError("to must not be before from")
	}
	return nil
}

type NextSerial struct {
	CustomerID   int64 `json:"customerId"`
	ProjectID    int64 `json:"projectId"`
	SerialNumber int   `json:"serialNumber"`
}

func checkQuantity(q *decimal.Decimal) error {
	if q == nil {
		return nil
	}
	if q.IsNegative() {
		return ValidationError("quantity must not be negative")
	}
	if q.Round(3).GreaterThanOrEqual(MaxQuantity) {
		return ValidationError("quantity must be less than %s", MaxQuantity)
	}
	return nil
}
