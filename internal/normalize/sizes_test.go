package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		input string
		size  string
		tall  bool
		ok    bool
	}{
		{input: "M", size: "M", ok: true},
		{input: " xl ", size: "XL", ok: true},
		{input: "XXL", size: "2XL", ok: true},
		{input: "XXXL", size: "3XL", ok: true},
		{input: "Small", size: "S", ok: true},
		{input: "Extra Large", size: "XL", ok: true},
		{input: "2XL ($3.50)", size: "2XL", ok: true},
		{input: "Y-M", size: "YM", ok: true},
		{input: "18M", size: "18M", ok: true},
		{input: "4T", size: "4T", ok: true},
		{input: "LT", size: "L", tall: true, ok: true},
		{input: "XLT", size: "XL", tall: true, ok: true},
		{input: "2XLT", size: "2XL", tall: true, ok: true},
		{input: "OS", size: SizeOSFA, ok: true},
		{input: "One Size", size: SizeOSFA, ok: true},
		{input: "YLT", ok: false},
		{input: "XXS", ok: false},
		{input: "", ok: false},
		{input: "Style", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			size, tall, ok := ParseSize(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.size, size)
			assert.Equal(t, tt.tall, tall)
		})
	}
}

func TestVocabulary(t *testing.T) {
	vocab := Vocabulary()
	assert.Contains(t, vocab, "YXS")
	assert.Contains(t, vocab, "6XL")
	assert.Contains(t, vocab, SizeOSFA)

	vocab[0] = "changed"
	assert.Equal(t, "YXS", Vocabulary()[0])

	assert.Less(t, SizeRank("S"), SizeRank("XL"))
	assert.Equal(t, len(canonicalSizes), SizeRank("XXS"))
}

func TestIsHeaderRow(t *testing.T) {
	tests := []struct {
		name  string
		cells []string
		want  bool
	}{
		{name: "style column", cells: []string{"Style", "Color", "S", "M"}, want: true},
		{name: "item number alias", cells: []string{"Item Number", "Colour"}, want: true},
		{name: "quantity column", cells: []string{"Size", "Qty"}, want: true},
		{name: "size columns only", cells: []string{"Product", "S", "M", "L"}, want: true},
		{name: "title row", cells: []string{"Spring Order Form", ""}, want: false},
		{name: "data row", cells: []string{"G500", "Black", "2", "3"}, want: false},
		{name: "empty", cells: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHeaderRow(tt.cells))
		})
	}
}

func TestHeaderRole(t *testing.T) {
	assert.Equal(t, RoleStyle, HeaderRole("  Style  Number "))
	assert.Equal(t, RoleQuantity, HeaderRole("QTY:"))
	assert.Equal(t, RoleColor, HeaderRole("Colour"))
	assert.Equal(t, RoleIgnored, HeaderRole("Total"))
	assert.Equal(t, RoleNone, HeaderRole("M"))
	assert.Equal(t, "price", RolePrice.String())
}
