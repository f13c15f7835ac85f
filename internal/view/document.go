package view

import (
	"github.com/billed-app/billed/internal/bill"
)

// DefaultModalWidth is the width in pixels of the receipt modal
const DefaultModalWidth = 800

// Modal is the receipt preview dialog
type Modal struct {
	ID         string
	Width      int
	ImageURL   string
	ImageWidth int
	Visible    bool
}

// ShowImage puts url in the modal body at half the modal width and opens it
func (m *Modal) ShowImage(url string) {
	m.ImageURL = url
	m.ImageWidth = m.Width / 2
	m.Visible = true
}

// Document is the mutable state of a rendered page that controllers act on
type Document struct {
	Modal     Modal
	FileError string
}

// NewDocument returns a page with a closed receipt modal
func NewDocument() *Document {
	return &Document{
		Modal: Modal{ID: "modaleFile", Width: DefaultModalWidth},
	}
}

// Element is a rendered control carrying data attributes
type Element struct {
	TestID string
	Attrs  map[string]string
}

// Attr returns a data attribute, or "" when absent
func (e Element) Attr(name string) string {
	return e.Attrs[name]
}

// BillURLAttr holds the receipt URL on eye icons
const BillURLAttr = "data-bill-url"

// EyeIcon is the preview control rendered next to a bill
func EyeIcon(row BillRow) Element {
	return Element{
		TestID: "icon-eye",
		Attrs:  map[string]string{BillURLAttr: row.FileURL},
	}
}

// BillRow is a bill with its display text
type BillRow struct {
	bill.Bill
	DisplayDate   string
	DisplayStatus string
}
