package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusOnHold    ProjectStatus = "on_hold"
	ProjectStatusPlanned   ProjectStatus = "planned"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusActive, ProjectStatusCompleted, ProjectStatusOnHold, ProjectStatusPlanned:
		return true
	}
	return false
}

type AreaUnit string

const (
	AreaUnitAcre    AreaUnit = "acre"
	AreaUnitHectare AreaUnit = "hectare"
	AreaUnitBigha   AreaUnit = "bigha"
)

type Project struct {
	ID          int64           `json:"id"`
	CustomerID  int64           `json:"customerId"`
	Name        string          `json:"name"`
	Location    string          `json:"location"`
	Description string          `json:"description"`
	LandArea    decimal.Decimal `json:"landArea"`
	AreaUnit    AreaUnit        `json:"areaUnit"`
	StartDate   *Date           `json:"startDate,omitempty"`
	Status      ProjectStatus   `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type ProjectCreateRequest struct {
	CustomerID  int64            `json:"customerId"  validate:"required,gt=0"`
	Name        string           `json:"name"        validate:"required,max=120"`
	Location    string           `json:"location"    validate:"max=200"`
	Description string           `json:"description" validate:"max=2000"`
	LandArea    *decimal.Decimal `json:"landArea"`
	AreaUnit    AreaUnit         `json:"areaUnit"    validate:"omitempty,oneof=acre hectare bigha"`
	StartDate   *Date            `json:"startDate"`
	Status      ProjectStatus    `json:"status"      validate:"omitempty,oneof=active completed on_hold planned"`
}

func (r *ProjectCreateRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if err := Validate(r); err != nil {
		return err
	}
	return checkLandArea(r.LandArea)
}

// Project builds the row to insert, applying defaults.
func (r *ProjectCreateRequest) Project() *Project {
	p := &Project{
		CustomerID:  r.CustomerID,
		Name:        r.Name,
		Location:    r.Location,
		Description: r.Description,
		AreaUnit:    r.AreaUnit,
		StartDate:   r.StartDate,
		Status:      r.Status,
	}
	if r.LandArea != nil {
		p.LandArea = r.LandArea.Round(2)
	}
	if p.AreaUnit == "" {
		p.AreaUnit = AreaUnitAcre
	}
	if p.Status == "" {
		p.Status = ProjectStatusActive
	}
	return p
}

type ProjectUpdateRequest struct {
	Name        *string          `json:"name"        validate:"omitempty,min=1,max=120"`
	Location    *string          `json:"location"    validate:"omitempty,max=200"`
	Description *string          `json:"description" validate:"omitempty,max=2000"`
	LandArea    *decimal.Decimal `json:"landArea"`
	AreaUnit    *AreaUnit        `json:"areaUnit"    validate:"omitempty,oneof=acre hectare bigha"`
	StartDate   *Date            `json:"startDate"`
	Status      *ProjectStatus   `json:"status"      validate:"omitempty,oneof=active completed on_hold planned"`
	// a project never moves to another customer
	CustomerID *int64 `json:"customerId"`
}

func (r *ProjectUpdateRequest) Validate() error {
	if r.CustomerID != nil {
		return ValidationError("customerId cannot be changed")
	}
	if r.Name != nil {
		trimmed := strings.TrimSpace(*r.Name)
		if trimmed == "" {
			return ValidationError("name is required")
		}
		r.Name = &trimmed
	}
	if err := Validate(r); err != nil {
		return err
	}
	return checkLandArea(r.LandArea)
}

func (r *ProjectUpdateRequest) Updates() map[string]any {
	u := map[string]any{}
	if r.Name != nil {
		u["name"] = *r.Name
	}
	if r.Location != nil {
		u["location"] = *r.Location
	}
	if r.Description != nil {
		u["description"] = *r.Description
	}
	if r.LandArea != nil {
		u["land_area"] = r.LandArea.Round(2)
	}
	if r.AreaUnit != nil {
		u["area_unit"] = string(*r.AreaUnit)
	}
	if r.StartDate != nil {
		u["start_date"] = *r.StartDate
	}
	if r.Status != nil {
		u["status"] = string(*r.Status)
	}
	return u
}

type ProjectFilter struct {
	CustomerID int64
	Search     string
	Status     ProjectStatus
}

func (f ProjectFilter) Validate() error {
	if f.Status != "" && !f.Status.Valid() {
		return ValidationError("status must be one of [active completed on_hold planned]")
	}
	return nil
}

// land_area is NUMERIC(12,2)
var MaxLandArea = decimal.New(1, 10)

func checkLandArea(a *decimal.Decimal) error {
	if a == nil {
		return nil
	}
	if a.IsNegative() {
		return ValidationError("landArea must not be negative")
	}
	if a.Round(2).GreaterThanOrEqual(MaxLandArea) {
		return ValidationError("landArea must be less than %s", MaxLandArea)
	}
	return nil
}
