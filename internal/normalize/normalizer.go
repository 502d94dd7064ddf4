// Package normalize turns raw spreadsheet rows into draft line items.
package normalize

import (
	"math"
	"strconv"
	"strings"

	"github.com/Veraticus/quotesmith/internal/model"
	"github.com/shopspring/decimal"
)

// Normalize maps a raw row onto a draft line item. It never fails: anything
// it cannot interpret marks the draft ambiguous with a reason.
//
// Two layouts are recognized. Wide rows carry one column per size. Long rows
// carry a Size column and a Qty column, one size per row.
func Normalize(row model.RawRow) model.DraftLineItem {
	draft := model.DraftLineItem{RowNumber: row.Number}

	var (
		qtyCell, sizeCell *model.Cell
		sizeCols          []model.Cell
		others            []model.Cell
	)

	for i := range row.Cells {
		cell := row.Cells[i]
		switch HeaderRole(cell.Header) {
		case RoleStyle:
			if draft.Style == "" {
				draft.Style = cell.String()
			}
		case RoleDescription:
			if draft.Description == "" {
				draft.Description = cell.String()
			}
		case RoleColor:
			if draft.Color == "" {
				draft.Color = cell.String()
			}
		case RolePrice:
			if draft.UnitPrice == nil {
				applyPrice(&draft, cell)
			}
		case RoleQuantity:
			if qtyCell == nil {
				qtyCell = &row.Cells[i]
			}
		case RoleSize:
			if sizeCell == nil {
				sizeCell = &row.Cells[i]
			}
		case RoleIgnored:
		default:
			if _, _, ok := ParseSize(cell.Header); ok {
				sizeCols = append(sizeCols, cell)
			} else {
				others = append(others, cell)
			}
		}
	}

	switch {
	case len(sizeCols) > 0:
		applyWide(&draft, sizeCols, others)
	case qtyCell != nil:
		applyLong(&draft, qtyCell, sizeCell)
	default:
		applyUnknownColumns(&draft, others)
	}

	if draft.Style == "" {
		draft.MarkAmbiguous(model.ReasonMissingStyle)
	}
	if draft.Description == "" {
		draft.MarkAmbiguous(model.ReasonMissingDescription)
	}
	if draft.Sizes.Total() == 0 {
		draft.MarkAmbiguous(model.ReasonNoQuantities)
	}

	return draft
}

// applyWide reads one quantity per size column. Tall size columns cannot share
// a line item with regular sizes, so they are kept as unknown sizes.
func applyWide(draft *model.DraftLineItem, sizeCols, others []model.Cell) {
	for _, cell := range sizeCols {
		size, tall, _ := ParseSize(cell.Header)
		qty := readQuantity(draft, cell)
		if tall {
			label := cleanSize(cell.Header)
			draft.UnknownSizes = draft.UnknownSizes.Add(label, qty)
			if qty != 0 {
				draft.MarkAmbiguous(model.ReasonUnknownSize)
			}
			continue
		}
		draft.Sizes = draft.Sizes.Add(size, qty)
	}
	applyUnknownColumns(draft, others)
}

// applyLong reads a single size and quantity.
func applyLong(draft *model.DraftLineItem, qtyCell, sizeCell *model.Cell) {
	qty := readQuantity(draft, *qtyCell)

	var text string
	if sizeCell != nil {
		text = sizeCell.String()
	}
	if strings.TrimSpace(text) == "" {
		draft.Sizes = draft.Sizes.Add(SizeOSFA, qty)
		return
	}

	size, tall, ok := ParseSize(text)
	if !ok {
		draft.UnknownSizes = draft.UnknownSizes.Add(cleanSize(text), qty)
		if qty != 0 {
			draft.MarkAmbiguous(model.ReasonUnknownSize)
		}
		return
	}
	if tall {
		draft.Tall = true
	}
	draft.Sizes = draft.Sizes.Add(size, qty)
}

// MaxQuantity is the largest quantity a cell may hold.
const MaxQuantity = math.MaxInt32

// quantityFrom converts a parsed number to a quantity, truncating fractions.
// Negative and out-of-range values are rejected.
func quantityFrom(n float64) (int, bool) {
	if !(n >= 0 && n <= MaxQuantity) {
		return 0, false
	}
	return int(math.Trunc(n)), true
}

// applyUnknownColumns records integer columns outside the vocabulary.
func applyUnknownColumns(draft *model.DraftLineItem, cells []model.Cell) {
	for _, cell := range cells {
		if cell.Kind != model.CellNumber || cell.Number != math.Trunc(cell.Number) {
			continue
		}
		label := strings.TrimSpace(cell.Header)
		qty, ok := quantityFrom(cell.Number)
		if !ok {
			draft.UnknownSizes = draft.UnknownSizes.Add(label, 0)
			draft.MarkAmbiguous(model.ReasonBadQuantity)
			continue
		}
		draft.UnknownSizes = draft.UnknownSizes.Add(label, qty)
		if qty != 0 {
			draft.MarkAmbiguous(model.ReasonUnknownSize)
		}
	}
}

// readQuantity parses a quantity cell. Non-numeric, negative, and
// out-of-range values read as zero and mark the draft ambiguous. Fractions
// are truncated.
func readQuantity(draft *model.DraftLineItem, cell model.Cell) int {
	n := cell.Number
	switch cell.Kind {
	case model.CellEmpty:
		return 0
	case model.CellString:
		text := strings.ReplaceAll(strings.TrimSpace(cell.Text), ",", "")
		parsed, err := strconv.ParseFloat(text, 64)
		if err != nil {
			draft.MarkAmbiguous(model.ReasonBadQuantity)
			return 0
		}
		n = parsed
	}
	qty, ok := quantityFrom(n)
	if !ok {
		draft.MarkAmbiguous(model.ReasonBadQuantity)
	}
	return qty
}

func applyPrice(draft *model.DraftLineItem, cell model.Cell) {
	switch cell.Kind {
	case model.CellEmpty:
		return
	case model.CellNumber:
		if cell.Number < 0 {
			draft.MarkAmbiguous(model.ReasonBadPrice)
			return
		}
		price := decimal.NewFromFloat(cell.Number)
		draft.UnitPrice = &price
	default:
		price, ok := ParsePrice(cell.Text)
		if !ok {
			draft.MarkAmbiguous(model.ReasonBadPrice)
			return
		}
		draft.UnitPrice = &price
	}
}

// ParsePrice reads price text such as "$4.50" or "1,200.00".
func ParsePrice(text string) (decimal.Decimal, bool) {
	clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(text))
	if clean == "" {
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(clean)
	if err != nil || price.IsNegative() {
		return decimal.Zero, false
	}
	return price, true
}

func isNumeric(text string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	return err == nil
}
