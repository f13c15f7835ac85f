package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"
)

// receiptScanPrompt is the shared prompt used by all LLM providers for scanning receipts
const receiptScanPrompt = `You are reading a receipt that an employee attaches to an expense report. Carefully read all text in the image and extract:

1. **Name**: the merchant or a short description of the expense, e.g. "SNCF - Paris Lyon" or "Hôtel Ibis".
2. **Type**: the expense category, exactly one of: "Transports", "Restaurants et bars", "Hôtel et logement", "Services en ligne", "IT et électronique", "Equipement et matériel", "Fournitures de bureau".
3. **Date**: the transaction date in ISO 8601 format (YYYY-MM-DD).
4. **Amount**: the total paid including taxes, as a number (e.g. 42.75).
5. **VAT**: the VAT amount if printed, as a number.

Return ONLY valid JSON in this exact format:
{
  "name": "Merchant - Brief Description",
  "type": "Transports",
  "date": "YYYY-MM-DD",
  "amount": 0.00,
  "vat": 0.00
}

Important:
- Amounts must be numbers, not strings
- If you cannot find a field, use null for that field
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// preparePNG normalizes a JPEG or PNG receipt to PNG bytes
func preparePNG(imageData []byte, contentType string) ([]byte, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "image/png" {
		return imageData, nil
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		if strings.Contains(err.Error(), "unknown format") {
			return nil, fmt.Errorf("unsupported image format, receipts must be JPEG or PNG: %w", err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}
