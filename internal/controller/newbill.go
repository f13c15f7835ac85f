package controller

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/billed-app/billed/internal/bill"
	"github.com/billed-app/billed/internal/logger"
	"github.com/billed-app/billed/internal/route"
	"github.com/billed-app/billed/internal/scanning"
	"github.com/billed-app/billed/internal/session"
	"github.com/billed-app/billed/internal/view"
)

// AllowedExtensions are the receipt file extensions accepted by the form
var AllowedExtensions = []string{"jpg", "jpeg", "png"}

// UnsupportedFileMessage is shown next to the file input after a rejected file
const UnsupportedFileMessage = "Seuls les fichiers jpg, jpeg et png sont acceptés."

var (
	ErrUnsupportedFile = errors.New("unsupported receipt file")
	ErrNoFile          = errors.New("no file selected")
	ErrNoStore         = errors.New("no bill store configured")
)

// FileInput is the receipt input of the form
type FileInput struct {
	Files []bill.Upload
}

// Clear empties the selection
func (f *FileInput) Clear() {
	f.Files = nil
}

// Phase is where a NewBill controller stands
type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseFileStaged
	PhaseSubmitted
)

// NewBillState is the receipt staged by a NewBill controller
type NewBillState struct {
	FileURL    string                `json:"fileUrl,omitempty"`
	FileName   string                `json:"fileName,omitempty"`
	BillID     string                `json:"billId,omitempty"`
	Suggestion *scanning.ReceiptData `json:"suggestion,omitempty"`
}

// Staged reports whether a receipt is waiting for submission
func (s NewBillState) Staged() bool {
	return s.FileURL != ""
}

// NewBill drives the new bill form
type NewBill struct {
	document  *view.Document
	navigator route.Navigator
	client    BillsClient
	sessions  session.Store
	scanner   scanning.Scanner
	state     NewBillState
	submitted bool
}

// NewNewBill creates the new bill controller
func NewNewBill(document *view.Document, navigator route.Navigator, client BillsClient, sessions session.Store, opts ...Option) *NewBill {
	if document == nil {
		document = view.NewDocument()
	}
	o := buildOptions(opts)
	return &NewBill{
		document:  document,
		navigator: navigator,
		client:    client,
		sessions:  sessions,
		scanner:   o.scanner,
		state:     o.state,
	}
}

// State returns the staged receipt
func (c *NewBill) State() NewBillState {
	return c.state
}

// Phase reports the controller's progress through the form
func (c *NewBill) Phase() Phase {
	switch {
	case c.submitted:
		return PhaseSubmitted
	case c.state.Staged():
		return PhaseFileStaged
	}
	return PhaseEmpty
}

func allowedExtension(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	return slices.Contains(AllowedExtensions, ext)
}

// HandleChangeFile validates the first selected file and uploads it for the employee.
// A rejected file clears both the selection and any previously staged receipt.
func (c *NewBill) HandleChangeFile(ctx context.Context, input *FileInput) error {
	if len(input.Files) == 0 {
		return ErrNoFile
	}
	file := input.Files[0]

	if !allowedExtension(file.Name) {
		c.document.FileError = UnsupportedFileMessage
		c.state = NewBillState{}
		input.Clear()
		return fmt.Errorf("%w: %s", ErrUnsupportedFile, file.Name)
	}
	c.document.FileError = ""

	if c.client == nil {
		return ErrNoStore
	}
	current, err := session.Current(c.sessions)
	if err != nil {
		return fmt.Errorf("reading session: %w", err)
	}

	result, err := c.client.UploadFile(ctx, file, current.Email)
	if err != nil {
		return err
	}
	c.state = NewBillState{
		FileURL:  result.URL,
		FileName: file.Name,
		BillID:   result.Key,
	}

	if c.scanner != nil {
		data, err := c.scanner.ScanReceipt(ctx, file.Data, file.ContentType)
		if err != nil {
			logger.Warn("receipt scan failed", zap.String("file", file.Name), zap.Error(err))
		} else {
			c.state.Suggestion = data
		}
	}
	return nil
}

// HandleSubmit validates the form, creates a pending bill with the staged
// receipt and goes back to the bill list. Nothing changes on failure.
func (c *NewBill) HandleSubmit(ctx context.Context, form NewBillForm) error {
	if c.client == nil {
		return ErrNoStore
	}
	current, err := session.Current(c.sessions)
	if err != nil {
		return fmt.Errorf("reading session: %w", err)
	}

	b, err := form.Validate()
	if err != nil {
		return err
	}
	b.ID = c.state.BillID
	b.Email = current.Email
	b.Status = bill.StatusPending
	b.FileURL = c.state.FileURL
	b.FileName = c.state.FileName

	if _, err := c.client.Create(ctx, b); err != nil {
		return err
	}
	c.submitted = true
	c.navigator.Navigate(route.Bills)
	return nil
}

// Form returns the values to prefill the form with, taken from the scan
// suggestion when there is one
func (c *NewBill) Form() NewBillForm {
	form := NewBillForm{PCT: fmt.Sprint(bill.DefaultPCT)}
	s := c.state.Suggestion
	if s == nil {
		return form
	}
	form.Name = s.Name
	form.Type = s.Type
	form.Date = s.Date
	if !s.Amount.IsZero() {
		form.Amount = s.Amount.String()
	}
	if !s.VAT.IsZero() {
		form.VAT = s.VAT.String()
	}
	return form
}
