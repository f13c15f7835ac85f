package bill

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the review state of a bill
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRefused  Status = "refused"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRefused:
		return true
	}
	return false
}

// Expense categories offered by the new bill form
const (
	TypeTransports  = "Transports"
	TypeRestaurants = "Restaurants et bars"
	TypeHotel       = "Hôtel et logement"
	TypeOnline      = "Services en ligne"
	TypeIT          = "IT et électronique"
	TypeEquipment   = "Equipement et matériel"
	TypeSupplies    = "Fournitures de bureau"
)

// Types lists the expense categories in display order
var Types = []string{
	TypeTransports,
	TypeRestaurants,
	TypeHotel,
	TypeOnline,
	TypeIT,
	TypeEquipment,
	TypeSupplies,
}

// ValidType reports whether t is a known expense category
func ValidType(t string) bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// DateLayout is the layout bills store their date in
const DateLayout = "2006-01-02"

// DefaultPCT is the tax percentage used when none is given
const DefaultPCT = 20

var (
	// ErrNotFound is returned when a bill or file does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidBill is returned when a bill fails validation before being stored
	ErrInvalidBill = errors.New("invalid bill")
)

// Bill is a single expense report entry
type Bill struct {
	ID           string          `json:"id"`
	Email        string          `json:"email"`
	Type         string          `json:"type"`
	Name         string          `json:"name"`
	Amount       decimal.Decimal `json:"amount"`
	Date         string          `json:"date"` // YYYY-MM-DD, kept as text so malformed values survive a round trip
	VAT          string          `json:"vat"`
	PCT          int             `json:"pct"`
	Status       Status          `json:"status"`
	Commentary   string          `json:"commentary,omitempty"`
	CommentAdmin string          `json:"commentAdmin,omitempty"`
	FileURL      string          `json:"fileUrl"`
	FileName     string          `json:"fileName"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Upload is a receipt file selected by the user
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadResult identifies a stored receipt file
type UploadResult struct {
	URL string `json:"fileUrl"`
	Key string `json:"key"`
}
