package assembly

import (
	"fmt"
	"strings"

	"github.com/Veraticus/quotesmith/internal/common"
	"github.com/Veraticus/quotesmith/internal/model"
	"github.com/shopspring/decimal"
)

// TallSuffix is appended to the description of tall-size line items.
const TallSuffix = " - Tall"

// Options control how drafts become line items.
type Options struct {
	DefaultPrice decimal.Decimal
	Consolidate  bool
}

// ValidationError reports a line item field that is still missing after
// extraction and defaults were applied.
type ValidationError struct {
	Field string
	Row   int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("row %d: missing %s", e.Row, e.Field)
}

// Unwrap lets callers match common.ErrValidation.
func (e *ValidationError) Unwrap() error {
	return common.ErrValidation
}

// Fill copies extracted fields into the draft's gaps. Values the normalizer
// read from the sheet always win; sizes are filled one at a time, so a size
// the sheet left at zero can take the model's count.
func Fill(draft model.DraftLineItem, fields model.ExtractionFields) model.DraftLineItem {
	out := draft
	out.Sizes = draft.Sizes.Clone()

	if out.Style == "" {
		out.Style = fields.Style
	}
	if out.Description == "" {
		out.Description = fields.Description
	}
	if out.Color == "" {
		out.Color = fields.Color
	}
	if out.UnitPrice == nil && fields.UnitPrice != nil {
		price := *fields.UnitPrice
		out.UnitPrice = &price
	}
	for _, sq := range fields.Sizes {
		if out.Sizes.Get(sq.Size) == 0 && sq.Quantity > 0 {
			out.Sizes = out.Sizes.Set(sq.Size, sq.Quantity)
		}
	}
	return out
}

// Merge combines a draft with an optional extraction, applies defaults, and
// validates the result. extraction is ignored unless it resolved.
func Merge(draft model.DraftLineItem, extraction *model.ExtractionResult, opts Options) (model.OrderLineItem, error) {
	if extraction != nil && extraction.OK() {
		draft = Fill(draft, extraction.Fields)
	}

	price := opts.DefaultPrice
	if draft.UnitPrice != nil {
		price = *draft.UnitPrice
	}

	description := strings.TrimSpace(draft.Description)
	if draft.Tall && description != "" && !strings.HasSuffix(description, TallSuffix) {
		description += TallSuffix
	}

	item := model.OrderLineItem{
		Style:       strings.TrimSpace(draft.Style),
		Description: description,
		Color:       strings.TrimSpace(draft.Color),
		Sizes:       draft.Sizes.NonZero(),
		UnitPrice:   price,
		SourceRows:  []int{draft.RowNumber},
	}

	if err := validateLineItem(item, draft.RowNumber); err != nil {
		return model.OrderLineItem{}, err
	}
	return item, nil
}

func validateLineItem(item model.OrderLineItem, row int) error {
	switch {
	case item.Style == "":
		return &ValidationError{Field: "style", Row: row}
	case item.Description == "":
		return &ValidationError{Field: "description", Row: row}
	case len(item.Sizes) == 0 || item.TotalQuantity() <= 0:
		return &ValidationError{Field: "sizes", Row: row}
	case item.UnitPrice.IsNegative():
		return &ValidationError{Field: "price", Row: row}
	}
	for _, sq := range item.Sizes {
		if sq.Quantity < 0 {
			return &ValidationError{Field: "quantity for " + sq.Size, Row: row}
		}
	}
	return nil
}
