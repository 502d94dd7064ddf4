package llm

import (
	"fmt"
	"strings"

	"github.com/Veraticus/quotesmith/internal/model"
	"github.com/Veraticus/quotesmith/internal/normalize"
)

const systemPrompt = "You extract garment order line items from spreadsheet rows. " +
	"Respond with exactly one JSON object and no other text."

// buildPrompt describes the output schema, the size vocabulary, what the
// normalizer already read, and the full row for context.
func buildPrompt(draft model.DraftLineItem, row model.RawRow) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Row %d of a garment order spreadsheet could not be read automatically.\n\n", row.Number)

	b.WriteString("SPREADSHEET ROW (column: value)\n")
	for _, cell := range row.Cells {
		value := cell.String()
		if value == "" {
			value = "(empty)"
		}
		fmt.Fprintf(&b, "- %s: %s\n", cell.Header, value)
	}

	b.WriteString("\nALREADY READ\n")
	fmt.Fprintf(&b, "- style: %s\n", orNone(draft.Style))
	fmt.Fprintf(&b, "- description: %s\n", orNone(draft.Description))
	fmt.Fprintf(&b, "- color: %s\n", orNone(draft.Color))
	if draft.UnitPrice != nil {
		fmt.Fprintf(&b, "- price: %s\n", draft.UnitPrice.StringFixed(2))
	} else {
		b.WriteString("- price: (none)\n")
	}
	fmt.Fprintf(&b, "- sizes: %s\n", formatSizes(draft.Sizes))
	if len(draft.UnknownSizes) > 0 {
		fmt.Fprintf(&b, "- unrecognized size columns: %s\n", formatSizes(draft.UnknownSizes))
	}
	if len(draft.Reasons) > 0 {
		reasons := make([]string, len(draft.Reasons))
		for i, r := range draft.Reasons {
			reasons[i] = string(r)
		}
		fmt.Fprintf(&b, "- problems: %s\n", strings.Join(reasons, "; "))
	}

	b.WriteString("\nSIZE RULES\n")
	fmt.Fprintf(&b, "- Use only these size labels: %s\n", strings.Join(normalize.Vocabulary(), ", "))
	b.WriteString("- Small=S, Medium=M, Large=L, Extra Large=XL, XXL=2XL, XXXL=3XL, Y-S or Youth Small=YS.\n")
	b.WriteString("- One-size items (OS, One Size, One Size Fits All) use OSFA.\n")
	b.WriteString("- Tall sizes (LT, XLT) use the base size and add \" - Tall\" to the description.\n")
	b.WriteString("- Quantities are non-negative whole numbers. Omit sizes with no quantity.\n")

	b.WriteString("\nRESPONSE FORMAT\n")
	b.WriteString(`{
  "style": "G500",
  "description": "Heavy Cotton Tee",
  "color": "Black",
  "price": 4.50,
  "sizes": {"S": 2, "L": 3},
  "explanation": "Style and description were combined in one column.",
  "confidence": 0.9
}
`)
	b.WriteString("Use an empty string for text the row does not contain and null for an unknown price.\n")

	return b.String()
}

func formatSizes(sizes model.SizeQuantities) string {
	if len(sizes) == 0 {
		return "(none)"
	}
	parts := make([]string, len(sizes))
	for i, sq := range sizes {
		parts[i] = fmt.Sprintf("%s=%d", sq.Size, sq.Quantity)
	}
	return strings.Join(parts, ", ")
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
