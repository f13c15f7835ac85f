// Package view renders the pages of the application.
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/billed-app/billed/internal/bill"
	"github.com/billed-app/billed/internal/route"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/app.css
var AppCSS []byte

var funcs = template.FuncMap{
	"path": func(r route.Route) string { return r.Path() },
	"attr": func(e Element, name string) string { return e.Attr(name) },
	"eye":  EyeIcon,
}

var pages = map[string]*template.Template{}

func init() {
	for _, name := range []string{"login.html", "bills.html", "newbill.html", "dashboard.html"} {
		pages[name] = template.Must(template.New("layout.html").Funcs(funcs).
			ParseFS(templatesFS, "templates/layout.html", "templates/"+name))
	}
}

// Layout is shared by every page
type Layout struct {
	Title  string
	Email  string
	Active route.Route
}

// BillsPage is the input of the bill list. Either Data or Error is shown.
type BillsPage struct {
	Layout
	Data  []BillRow
	Error string
	Modal Modal
}

// NewBillPage is the input of the new bill form
type NewBillPage struct {
	Layout
	Types     []string
	Form      map[string]string
	FieldErrs map[string]string
	FileName  string
	FileURL   string
	FileError string
	Error     string
}

// LoginPage is the input of the login form
type LoginPage struct {
	Layout
	FormEmail string
	Error     string
}

// sortKey is the stored ISO date, or the displayed text when the stored date is malformed
func sortKey(row BillRow) string {
	if _, err := time.Parse(bill.DateLayout, row.Date); err == nil {
		return row.Date
	}
	return row.DisplayDate
}

// SortByDisplayDate orders rows latest first. Rows are compared on their
// stored date, so the order does not depend on the display locale.
func SortByDisplayDate(rows []BillRow) {
	slices.SortStableFunc(rows, func(a, b BillRow) int {
		return strings.Compare(sortKey(b), sortKey(a))
	})
}

func render(w io.Writer, name string, data any) error {
	tmpl, ok := pages[name]
	if !ok {
		return fmt.Errorf("unknown page %s", name)
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("rendering %s: %w", name, err)
	}
	return nil
}

// Bills renders the bill list, sorted by displayed date
func Bills(w io.Writer, page BillsPage) error {
	if page.Title == "" {
		page.Title = "Mes notes de frais"
	}
	page.Active = route.Bills
	rows := slices.Clone(page.Data)
	SortByDisplayDate(rows)
	page.Data = rows
	return render(w, "bills.html", page)
}

// NewBill renders the new bill form
func NewBill(w io.Writer, page NewBillPage) error {
	if page.Title == "" {
		page.Title = "Envoyer une note de frais"
	}
	page.Active = route.NewBill
	if page.Types == nil {
		page.Types = bill.Types
	}
	return render(w, "newbill.html", page)
}

// Login renders the login form
func Login(w io.Writer, page LoginPage) error {
	if page.Title == "" {
		page.Title = "Billed"
	}
	page.Active = route.Login
	return render(w, "login.html", page)
}

// Dashboard renders the administrator placeholder
func Dashboard(w io.Writer, layout Layout) error {
	if layout.Title == "" {
		layout.Title = "Validations"
	}
	layout.Active = route.Dashboard
	return render(w, "dashboard.html", layout)
}
