package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Veraticus/quotesmith/internal/common"
	"github.com/Veraticus/quotesmith/internal/model"
	"github.com/Veraticus/quotesmith/internal/normalize"
	"github.com/shopspring/decimal"
)

// extractionPayload is the JSON object the model is asked to return.
type extractionPayload struct {
	Sizes       map[string]json.Number `json:"sizes"`
	Price       json.RawMessage        `json:"price"`
	Style       string                 `json:"style"`
	Description string                 `json:"description"`
	Color       string                 `json:"color"`
	Explanation string                 `json:"explanation"`
	Confidence  float64                `json:"confidence"`
}

// extractJSON returns the JSON object embedded in a model reply: the text
// between the first '{' and the last '}', or the body of a fenced block.
func extractJSON(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1], true
	}

	for _, fence := range []string{"```json", "```"} {
		i := strings.Index(text, fence)
		if i < 0 {
			continue
		}
		rest := text[i+len(fence):]
		if j := strings.Index(rest, "```"); j >= 0 {
			if body := strings.TrimSpace(rest[:j]); body != "" {
				return body, true
			}
		}
	}
	return "", false
}

// parseExtraction decodes and validates a model reply. Any failure yields an
// Unparseable result carrying the raw text and an error wrapping
// common.ErrMalformedResponse.
func parseExtraction(text string) (model.ExtractionResult, error) {
	fail := func(reason string, err error) (model.ExtractionResult, error) {
		if err != nil {
			reason = fmt.Sprintf("%s: %v", reason, err)
		}
		return model.Unparseable(text, reason), fmt.Errorf("%w: %s", common.ErrMalformedResponse, reason)
	}

	body, ok := extractJSON(text)
	if !ok {
		return fail("no JSON object in response", nil)
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var payload extractionPayload
	if err := dec.Decode(&payload); err != nil {
		return fail("response does not match the line item schema", err)
	}

	price, err := parsePrice(payload.Price)
	if err != nil {
		return fail("invalid price", err)
	}

	sizes, err := parseSizes(payload.Sizes)
	if err != nil {
		return fail("invalid sizes", err)
	}

	confidence := payload.Confidence
	if confidence < 0 || confidence > 1 {
		return fail(fmt.Sprintf("confidence %v out of range", confidence), nil)
	}

	fields := model.ExtractionFields{
		Style:       strings.TrimSpace(payload.Style),
		Description: strings.TrimSpace(payload.Description),
		Color:       strings.TrimSpace(payload.Color),
		UnitPrice:   price,
		Sizes:       sizes,
	}
	return model.Resolved(fields, strings.TrimSpace(payload.Explanation), confidence), nil
}

var errNegative = errors.New("must not be negative")

func parsePrice(raw json.RawMessage) (*decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		price, ok := normalize.ParsePrice(s)
		if !ok {
			return nil, fmt.Errorf("%q is not a price", s)
		}
		return &price, nil
	}

	price, err := decimal.NewFromString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("%s is not a number", raw)
	}
	if price.IsNegative() {
		return nil, errNegative
	}
	return &price, nil
}

func parseSizes(raw map[string]json.Number) (model.SizeQuantities, error) {
	labels := make([]string, 0, len(raw))
	for label := range raw {
		labels = append(labels, label)
	}

	var sizes model.SizeQuantities
	for _, label := range labels {
		size, ok := normalize.CanonicalSize(label)
		if !ok {
			return nil, fmt.Errorf("unknown size %q", label)
		}
		qty, err := raw[label].Int64()
		if err != nil {
			return nil, fmt.Errorf("quantity for %s is not a whole number: %s", label, raw[label])
		}
		if qty < 0 {
			return nil, fmt.Errorf("quantity for %s %w", label, errNegative)
		}
		sizes = sizes.Add(size, int(qty))
	}

	slices.SortStableFunc(sizes, func(a, b model.SizeQuantity) int {
		return normalize.SizeRank(a.Size) - normalize.SizeRank(b.Size)
	})
	return sizes, nil
}
