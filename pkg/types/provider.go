package types

import "time"

// Chemist represents a chemist/pharmacy on the marketplace
type Chemist struct {
	ID            string    `json:"id" db:"id"`
	OwnerName     string    `json:"owner_name" db:"owner_name"`
	ShopName      string    `json:"shop_name" db:"shop_name"`
	Email         string    `json:"email" db:"email"`
	Phone         string    `json:"phone" db:"phone"`
	City          string    `json:"city" db:"city"`
	Address       string    `json:"address" db:"address"`
	LicenseNumber string    `json:"license_number" db:"license_number"`
	GSTNumber     string    `json:"gst_number" db:"gst_number"`
	PasswordHash  string    `json:"-" db:"password_hash"`
	Status        string    `json:"status" db:"status"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Doctor represents a doctor on the marketplace
type Doctor struct {
	ID                 string    `json:"id" db:"id"`
	Name               string    `json:"name" db:"name"`
	Email              string    `json:"email" db:"email"`
	Phone              string    `json:"phone" db:"phone"`
	City               string    `json:"city" db:"city"`
	Specialty          string    `json:"specialty" db:"specialty"`
	RegistrationNumber string    `json:"registration_number" db:"registration_number"`
	YearsExperience    int       `json:"years_experience" db:"years_experience"`
	ConsultationFee    float64   `json:"consultation_fee" db:"consultation_fee"`
	Status             string    `json:"status" db:"status"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// Provider status values
const (
	ProviderStatusActive   = "active"
	ProviderStatusInactive = "inactive"
	ProviderStatusPending  = "pending"
)

// ListFilters represents filters for paginated provider listings
type ListFilters struct {
	Status string `json:"status,omitempty"`
	City   string `json:"city,omitempty"`
	Search string `json:"search,omitempty"`
	Page   int    `json:"page,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// Offset converts the one-based page number into a row offset.
func (f *ListFilters) Offset() int {
	page := f.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * f.PageSize()
}

// PageSize returns the effective page size, defaulting to 20 and capped at 100.
func (f *ListFilters) PageSize() int {
	switch {
	case f.Limit <= 0:
		return 20
	case f.Limit > 100:
		return 100
	default:
		return f.Limit
	}
}

// PageResult wraps one page of a listing together with pagination metadata.
type PageResult struct {
	Items interface{} `json:"items"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}
