package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type LedgerEventType string

const (
	EventTransactionCreated LedgerEventType = "transaction.created"
	EventTransactionUpdated LedgerEventType = "transaction.updated"
	EventTransactionDeleted LedgerEventType = "transaction.deleted"
	EventScopeRepaired      LedgerEventType = "scope.repaired"
	EventProjectDeleted     LedgerEventType = "project.deleted"
	EventCustomerDeleted    LedgerEventType = "customer.deleted"
)

// LedgerEvent is published after a ledger mutation commits.
type LedgerEvent struct {
	ID            string          `json:"id"`
	Type          LedgerEventType `json:"type"`
	ActorID       int64           `json:"actorId,omitempty"`
	CustomerID    int64           `json:"customerId"`
	ProjectID     int64           `json:"projectId,omitempty"`
	TransactionID int64           `json:"transactionId,omitempty"`
	SerialNumber  int             `json:"serialNumber,omitempty"`
	Renumbered    int             `json:"renumbered,omitempty"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// HasScope reports whether the event refers to one (customer, project) ledger.
func (e LedgerEvent) HasScope() bool {
	return e.CustomerID > 0 && e.ProjectID > 0
}

// ActivityLog is the audit row written for every processed ledger event.
type ActivityLog struct {
	ID            int64           `json:"id"`
	EventID       string          `json:"eventId"`
	EventType     LedgerEventType `json:"eventType"`
	ActorID       int64           `json:"actorId,omitempty"`
	CustomerID    int64           `json:"customerId"`
	ProjectID     int64           `json:"projectId,omitempty"`
	TransactionID int64           `json:"transactionId,omitempty"`
	SerialNumber  int             `json:"serialNumber,omitempty"`
	Details       string          `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type ProjectSummary struct {
	ProjectID        int64           `json:"projectId"`
	ProjectName      string          `json:"projectName"`
	TotalDebit       decimal.Decimal `json:"totalDebit"`
	TotalCredit      decimal.Decimal `json:"totalCredit"`
	Balance          decimal.Decimal `json:"balance"`
	TransactionCount int64           `json:"transactionCount"`
}

// FinancialSummary totals a customer's ledger. Balance is credit minus debit.
type FinancialSummary struct {
	CustomerID       int64             `json:"customerId"`
	TotalDebit       decimal.Decimal   `json:"totalDebit"`
	TotalCredit      decimal.Decimal   `json:"totalCredit"`
	Balance          decimal.Decimal   `json:"balance"`
	TransactionCount int64             `json:"transactionCount"`
	Projects         []*ProjectSummary `json:"projects"`
}

type HealthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
}
