package model

import (
	"strings"
	"time"
)

type Customer struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	FatherName string `json:"fatherName"`
	Phone      string `json:"phone"`
	Village    string `json:"village"`
	Address    string `json:"address"`
	Notes      string `json:"notes"`

	// ciphertext and lookup hash never leave the service layer
	NationalIDEncrypted string `json:"-"`
	NationalIDHash      string `json:"-"`
	NationalIDMasked    string `json:"nationalId,omitempty"`
	NationalIDValid     bool   `json:"nationalIdValid"`

	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CustomerCreateRequest struct {
	Name       string `json:"name"       validate:"required,max=120"`
	FatherName string `json:"fatherName" validate:"max=120"`
	Phone      string `json:"phone"      validate:"max=20"`
	Village    string `json:"village"    validate:"max=120"`
	Address    string `json:"address"    validate:"max=500"`
	Notes      string `json:"notes"      validate:"max=2000"`
	NationalID string `json:"nationalId" validate:"max=32"`
}

func (r *CustomerCreateRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	return Validate(r)
}

// CustomerUpdateRequest is a partial update, nil fields are left untouched.
type CustomerUpdateRequest struct {
	Name       *string `json:"name"       validate:"omitempty,min=1,max=120"`
	FatherName *string `json:"fatherName" validate:"omitempty,max=120"`
	Phone      *string `json:"phone"      validate:"omitempty,max=20"`
	Village    *string `json:"village"    validate:"omitempty,max=120"`
	Address    *string `json:"address"    validate:"omitempty,max=500"`
	Notes      *string `json:"notes"      validate:"omitempty,max=2000"`
	NationalID *string `json:"nationalId" validate:"omitempty,max=32"`
	IsActive   *bool   `json:"isActive"`
}

func (r *CustomerUpdateRequest) Validate() error {
	if r.Name != nil {
		trimmed := strings.TrimSpace(*r.Name)
		if trimmed == "" {
			return ValidationError("name is required")
		}
		r.Name = &trimmed
	}
	return Validate(r)
}

// Updates lists the plain columns to write. The national id is handled
// by the service because it needs encryption.
func (r *CustomerUpdateRequest) Updates() map[string]any {
	u := map[string]any{}
	if r.Name != nil {
		u["name"] = *r.Name
	}
	if r.FatherName != nil {
		u["father_name"] = *r.FatherName
	}
	if r.Phone != nil {
		u["phone"] = *r.Phone
	}
	if r.Village != nil {
		u["village"] = *r.Village
	}
	if r.Address != nil {
		u["address"] = *r.Address
	}
	if r.Notes != nil {
		u["notes"] = *r.Notes
	}
	if r.IsActive != nil {
		u["is_active"] = *r.IsActive
	}
	return u
}

type CustomerStatus string

const (
	CustomerStatusActive   CustomerStatus = "active"
	CustomerStatusInactive CustomerStatus = "inactive"
)

// CustomerFilter controls List queries.
type CustomerFilter struct {
	Search string
	Status CustomerStatus // empty means all
}

func (f CustomerFilter) Validate() error {
	switch f.Status {
	case "", CustomerStatusActive, CustomerStatusInactive:
		return nil
	}
	return ValidationError("status must be one of [active inactive]")
}

// CustomerDraft is a pre-filled customer form produced by a document scan.
type CustomerDraft struct {
	Name        string `json:"name"`
	FatherName  string `json:"fatherName,omitempty"`
	Gender      string `json:"gender,omitempty"`
	YearOfBirth string `json:"yearOfBirth,omitempty"`
	NationalID  string `json:"nationalId,omitempty"`
	Village     string `json:"village,omitempty"`
	Address     string `json:"address,omitempty"`
	District    string `json:"district,omitempty"`
	State       string `json:"state,omitempty"`
	Pincode     string `json:"pincode,omitempty"`
	Source      string `json:"source"`
}

type ScanRequest struct {
	Payload string `json:"payload" validate:"required,max=16384"`
}

// NationalIDReveal carries a decrypted national id. Only admins get it.
type NationalIDReveal struct {
	CustomerID int64  `json:"customerId"`
	NationalID string `json:"nationalId"`
	Masked     string `json:"masked"`
	Valid      bool   `json:"valid"`
}
