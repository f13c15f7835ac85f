package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/billed-app/billed/internal/bill"
)

var alternateDateLayouts = []string{
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
}

// parseReceiptJSON extracts the JSON object of a model answer and normalizes its fields
func parseReceiptJSON(text string) (*ReceiptData, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var data ReceiptData
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	data.Date = normalizeDate(data.Date)
	data.Name = strings.TrimSpace(data.Name)
	if !bill.ValidType(data.Type) {
		data.Type = ""
	}
	if data.Amount.IsNegative() {
		data.Amount = data.Amount.Neg()
	}

	return &data, nil
}

// normalizeDate rewrites common receipt date layouts as YYYY-MM-DD, or returns "" when unreadable
func normalizeDate(date string) string {
	date = strings.TrimSpace(date)
	if date == "" {
		return ""
	}
	if d, err := time.Parse(bill.DateLayout, date); err == nil {
		return d.Format(bill.DateLayout)
	}
	for _, layout := range alternateDateLayouts {
		if d, err := time.Parse(layout, date); err == nil {
			return d.Format(bill.DateLayout)
		}
	}
	return ""
}
