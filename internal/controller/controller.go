// Package controller binds bill data to the rendered pages of an employee.
package controller

import (
	"context"

	"github.com/billed-app/billed/internal/bill"
	"github.com/billed-app/billed/internal/locale"
	"github.com/billed-app/billed/internal/scanning"
)

// BillsClient is the remote bill store as seen by the controllers
type BillsClient interface {
	List(ctx context.Context, email string) ([]bill.Bill, error)
	Create(ctx context.Context, b bill.Bill) (bill.Bill, error)
	Update(ctx context.Context, b bill.Bill) (bill.Bill, error)
	UploadFile(ctx context.Context, file bill.Upload, email string) (bill.UploadResult, error)
}

type options struct {
	formatter locale.Formatter
	scanner   scanning.Scanner
	state     NewBillState
}

// Option configures a controller
type Option func(*options)

// WithFormatter sets how dates and statuses are displayed. French is the default.
func WithFormatter(f locale.Formatter) Option {
	return func(o *options) {
		o.formatter = f
	}
}

// WithScanner enables receipt scanning to prefill the new bill form
func WithScanner(s scanning.Scanner) Option {
	return func(o *options) {
		o.scanner = s
	}
}

// WithState restores the staged receipt of a previous request
func WithState(state NewBillState) Option {
	return func(o *options) {
		o.state = state
	}
}

func buildOptions(opts []Option) options {
	o := options{formatter: locale.French{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
