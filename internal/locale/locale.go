// Package locale turns stored bill values into display text.
package locale

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/billed-app/billed/internal/bill"
)

// Formatter renders bill dates and statuses for one language
type Formatter interface {
	FormatDate(date string) (string, error)
	FormatStatus(status bill.Status) string
}

// ForName returns the formatter registered under name ("fr" or "en")
func ForName(name string) (Formatter, error) {
	switch strings.ToLower(name) {
	case "", "fr":
		return French{}, nil
	case "en":
		return English{}, nil
	}
	return nil, fmt.Errorf("unknown locale %q", name)
}

func parseDate(date string) (time.Time, error) {
	t, err := time.Parse(bill.DateLayout, strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, fmt.Errorf("formatting date %q: %w", date, err)
	}
	return t, nil
}

var frenchMonths = [...]string{
	"janv.", "févr.", "mars", "avr.", "mai", "juin",
	"juil.", "août", "sept.", "oct.", "nov.", "déc.",
}

// French renders "2004-04-04" as "4 Avr. 04"
type French struct{}

func (French) FormatDate(date string) (string, error) {
	t, err := parseDate(date)
	if err != nil {
		return "", err
	}
	// Casers carry state, so each call gets its own.
	month := []rune(cases.Title(language.French).String(frenchMonths[t.Month()-1]))
	if len(month) > 3 {
		month = month[:3]
	}
	return fmt.Sprintf("%d %s. %02d", t.Day(), string(month), t.Year()%100), nil
}

func (French) FormatStatus(status bill.Status) string {
	switch status {
	case bill.StatusPending:
		return "En attente"
	case bill.StatusAccepted:
		return "Accepté"
	case bill.StatusRefused:
		return "Refusé"
	}
	return string(status)
}

// English keeps ISO dates, which sort chronologically as text
type English struct{}

func (English) FormatDate(date string) (string, error) {
	t, err := parseDate(date)
	if err != nil {
		return "", err
	}
	return t.Format(bill.DateLayout), nil
}

func (English) FormatStatus(status bill.Status) string {
	switch status {
	case bill.StatusPending:
		return "Pending"
	case bill.StatusAccepted:
		return "Accepted"
	case bill.StatusRefused:
		return "Refused"
	}
	return string(status)
}
