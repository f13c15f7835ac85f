package scanning

import (
	"context"

	"github.com/shopspring/decimal"
)

// ReceiptData holds the values a scanner read off a receipt. Empty fields were not found.
type ReceiptData struct {
	Name   string          `json:"name"`
	Type   string          `json:"type"`
	Date   string          `json:"date"` // YYYY-MM-DD
	Amount decimal.Decimal `json:"amount"`
	VAT    decimal.Decimal `json:"vat"`
}

// Scanner reads expense details from a receipt image
type Scanner interface {
	// ScanReceipt analyzes a JPEG or PNG receipt
	ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*ReceiptData, error)
	// Close releases the scanner's resources
	Close() error
}
