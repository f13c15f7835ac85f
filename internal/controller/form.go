package controller

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/billed-app/billed/internal/bill"
)

// Form field names of the new bill page
const (
	FieldType       = "expense-type"
	FieldName       = "expense-name"
	FieldAmount     = "amount"
	FieldDate       = "datepicker"
	FieldVAT        = "vat"
	FieldPCT        = "pct"
	FieldCommentary = "commentary"
)

// ErrInvalidForm is returned when the new bill form does not validate
var ErrInvalidForm = errors.New("invalid form")

// FormError lists the invalid fields of a submitted form
type FormError struct {
	Fields map[string]string
}

func (e *FormError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return fmt.Sprintf("%s: %s", ErrInvalidForm, strings.Join(parts, ", "))
}

func (e *FormError) Unwrap() error {
	return ErrInvalidForm
}

// FormValues reads a submitted field by name. url.Values satisfies it.
type FormValues interface {
	Get(name string) string
}

// NewBillForm holds the raw values of the new bill form
type NewBillForm struct {
	Type       string
	Name       string
	Amount     string
	Date       string
	VAT        string
	PCT        string
	Commentary string
}

// ReadNewBillForm picks the new bill fields out of submitted values
func ReadNewBillForm(values FormValues) NewBillForm {
	get := func(name string) string {
		return strings.TrimSpace(values.Get(name))
	}
	return NewBillForm{
		Type:       get(FieldType),
		Name:       get(FieldName),
		Amount:     get(FieldAmount),
		Date:       get(FieldDate),
		VAT:        get(FieldVAT),
		PCT:        get(FieldPCT),
		Commentary: values.Get(FieldCommentary),
	}
}

// Values returns the form keyed by field name, for re-rendering
func (f NewBillForm) Values() map[string]string {
	return map[string]string{
		FieldType:       f.Type,
		FieldName:       f.Name,
		FieldAmount:     f.Amount,
		FieldDate:       f.Date,
		FieldVAT:        f.VAT,
		FieldPCT:        f.PCT,
		FieldCommentary: f.Commentary,
	}
}

// parseNumber accepts both "12.5" and the French "12,5"
func parseNumber(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
}

// Validate checks the form and returns the expense fields of a bill.
// Owner, status and receipt are left for the caller to fill.
func (f NewBillForm) Validate() (bill.Bill, error) {
	errs := map[string]string{}
	out := bill.Bill{
		Type:       f.Type,
		Name:       f.Name,
		Date:       f.Date,
		Commentary: f.Commentary,
		PCT:        bill.DefaultPCT,
	}

	if !bill.ValidType(f.Type) {
		errs[FieldType] = "type de dépense inconnu"
	}

	if f.Amount == "" {
		errs[FieldAmount] = "montant requis"
	} else if amount, err := parseNumber(f.Amount); err != nil {
		errs[FieldAmount] = "montant invalide"
	} else if amount.IsNegative() {
		errs[FieldAmount] = "le montant doit être positif"
	} else {
		out.Amount = amount
	}

	if f.Date == "" {
		errs[FieldDate] = "date requise"
	} else if _, err := time.Parse(bill.DateLayout, f.Date); err != nil {
		errs[FieldDate] = "date invalide"
	}

	if f.VAT != "" {
		if vat, err := parseNumber(f.VAT); err != nil {
			errs[FieldVAT] = "TVA invalide"
		} else {
			out.VAT = vat.String()
		}
	}

	if f.PCT != "" {
		pct, err := strconv.Atoi(f.PCT)
		if err != nil || pct < 0 || pct > 100 {
			errs[FieldPCT] = "pourcentage invalide"
		} else {
			out.PCT = pct
		}
	}

	if len(errs) > 0 {
		return bill.Bill{}, &FormError{Fields: errs}
	}
	return out, nil
}
