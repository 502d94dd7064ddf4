package model

import (
	"github.com/shopspring/decimal"
)

// SizeQuantity is the ordered count for a single garment size.
type SizeQuantity struct {
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

// SizeQuantities is an ordered size to quantity mapping.
// Insertion order is preserved so line items keep the sheet's column order.
type SizeQuantities []SizeQuantity

// Get returns the quantity for size, or zero when the size is absent.
func (s SizeQuantities) Get(size string) int {
	for _, sq := range s {
		if sq.Size == size {
			return sq.Quantity
		}
	}
	return 0
}

// Has reports whether size is present in the mapping, even with a zero quantity.
func (s SizeQuantities) Has(size string) bool {
	for _, sq := range s {
		if sq.Size == size {
			return true
		}
	}
	return false
}

// Set replaces the quantity for size or appends it at the end.
func (s SizeQuantities) Set(size string, qty int) SizeQuantities {
	for i := range s {
		if s[i].Size == size {
			s[i].Quantity = qty
			return s
		}
	}
	return append(s, SizeQuantity{Size: size, Quantity: qty})
}

// Add increments the quantity for size, appending it when absent.
func (s SizeQuantities) Add(size string, qty int) SizeQuantities {
	return s.Set(size, s.Get(size)+qty)
}

// Total returns the sum of all quantities.
func (s SizeQuantities) Total() int {
	total := 0
	for _, sq := range s {
		total += sq.Quantity
	}
	return total
}

// NonZero returns a copy without zero-quantity sizes.
func (s SizeQuantities) NonZero() SizeQuantities {
	out := make(SizeQuantities, 0, len(s))
	for _, sq := range s {
		if sq.Quantity != 0 {
			out = append(out, sq)
		}
	}
	return out
}

// Clone returns an independent copy.
func (s SizeQuantities) Clone() SizeQuantities {
	if s == nil {
		return nil
	}
	out := make(SizeQuantities, len(s))
	copy(out, s)
	return out
}

// AmbiguityReason explains why a draft could not be resolved deterministically.
type AmbiguityReason string

// Ambiguity reasons.
const (
	ReasonMissingStyle       AmbiguityReason = "missing style"
	ReasonMissingDescription AmbiguityReason = "missing description"
	ReasonNoQuantities       AmbiguityReason = "all size quantities are zero"
	ReasonUnknownSize        AmbiguityReason = "quantity under an unknown size"
	ReasonBadQuantity        AmbiguityReason = "invalid quantity"
	ReasonBadPrice           AmbiguityReason = "unparseable price"
)

// DraftLineItem is the normalizer's candidate line item for one row.
type DraftLineItem struct {
	UnitPrice *decimal.Decimal
	// UnknownSizes holds quantities found under columns outside the size vocabulary.
	UnknownSizes SizeQuantities
	Sizes        SizeQuantities
	Reasons      []AmbiguityReason
	Style        string
	Description  string
	Color        string
	RowNumber    int
	// Tall marks rows whose size was a tall variant mapped to its base size.
	Tall      bool
	Ambiguous bool
}

// MarkAmbiguous flags the draft and records why, ignoring duplicate reasons.
func (d *DraftLineItem) MarkAmbiguous(reason AmbiguityReason) {
	d.Ambiguous = true
	for _, r := range d.Reasons {
		if r == reason {
			return
		}
	}
	d.Reasons = append(d.Reasons, reason)
}

// ExtractionStatus tags an extraction result.
type ExtractionStatus string

// Extraction statuses.
const (
	ExtractionResolved    ExtractionStatus = "RESOLVED"
	ExtractionUnparseable ExtractionStatus = "UNPARSEABLE"
)

// ExtractionFields are the line item fields a language model can resolve.
type ExtractionFields struct {
	UnitPrice   *decimal.Decimal
	Style       string
	Description string
	Color       string
	Sizes       SizeQuantities
}

// ExtractionResult is the tagged outcome of one AI extraction call.
// Fields are only meaningful when Status is ExtractionResolved; RawText is kept
// for Unparseable results so the report can show what the model said.
type ExtractionResult struct {
	Fields      ExtractionFields
	Status      ExtractionStatus
	Explanation string
	RawText     string
	Confidence  float64
}

// Resolved builds a successful extraction result.
func Resolved(fields ExtractionFields, explanation string, confidence float64) ExtractionResult {
	return ExtractionResult{
		Status:      ExtractionResolved,
		Fields:      fields,
		Explanation: explanation,
		Confidence:  confidence,
	}
}

// Unparseable builds a failed extraction result carrying the model's raw text.
func Unparseable(rawText, explanation string) ExtractionResult {
	return ExtractionResult{
		Status:      ExtractionUnparseable,
		RawText:     rawText,
		Explanation: explanation,
	}
}

// OK reports whether the extraction resolved.
func (r ExtractionResult) OK() bool {
	return r.Status == ExtractionResolved
}

// OrderLineItem is a platform-ready line item.
type OrderLineItem struct {
	Style       string
	Description string
	Color       string
	Sizes       SizeQuantities
	// SourceRows lists the sheet rows merged into this line item.
	SourceRows []int
	UnitPrice  decimal.Decimal
}

// TotalQuantity returns the number of garments on the line.
func (l OrderLineItem) TotalQuantity() int {
	return l.Sizes.Total()
}
