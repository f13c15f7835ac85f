package controller

import (
	"context"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/billed-app/billed/internal/bill"
	"github.com/billed-app/billed/internal/locale"
	"github.com/billed-app/billed/internal/logger"
	"github.com/billed-app/billed/internal/route"
	"github.com/billed-app/billed/internal/session"
	"github.com/billed-app/billed/internal/view"
)

// Bills drives the bill list of the logged in employee
type Bills struct {
	document  *view.Document
	navigator route.Navigator
	client    BillsClient
	sessions  session.Store
	formatter locale.Formatter
}

// NewBills creates the bill list controller. client may be nil, in which case no bills are listed.
func NewBills(document *view.Document, navigator route.Navigator, client BillsClient, sessions session.Store, opts ...Option) *Bills {
	if document == nil {
		document = view.NewDocument()
	}
	o := buildOptions(opts)
	return &Bills{
		document:  document,
		navigator: navigator,
		client:    client,
		sessions:  sessions,
		formatter: o.formatter,
	}
}

// HandleClickNewBill opens the new bill form
func (c *Bills) HandleClickNewBill() {
	c.navigator.Navigate(route.NewBill)
}

// HandleClickIconEye shows the receipt referenced by icon in the modal
func (c *Bills) HandleClickIconEye(icon view.Element) {
	c.document.Modal.ShowImage(icon.Attr(view.BillURLAttr))
}

// GetBills lists the employee's bills in the order the store returns them.
// Each bill is formatted as it is consumed; a bill whose date cannot be
// formatted keeps its stored date.
func (c *Bills) GetBills(ctx context.Context) (iter.Seq[view.BillRow], error) {
	if c.client == nil {
		return func(yield func(view.BillRow) bool) {}, nil
	}

	current, err := session.Current(c.sessions)
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	bills, err := c.client.List(ctx, current.Email)
	if err != nil {
		return nil, err
	}

	return func(yield func(view.BillRow) bool) {
		for _, b := range bills {
			if !yield(c.format(b)) {
				return
			}
		}
	}, nil
}

func (c *Bills) format(b bill.Bill) view.BillRow {
	row := view.BillRow{
		Bill:          b,
		DisplayDate:   b.Date,
		DisplayStatus: c.formatter.FormatStatus(b.Status),
	}
	date, err := c.formatter.FormatDate(b.Date)
	if err != nil {
		logger.Warn("keeping unformatted bill date", zap.String("id", b.ID), zap.String("date", b.Date), zap.Error(err))
		return row
	}
	row.DisplayDate = date
	return row
}
