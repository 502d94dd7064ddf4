package orders

// Fixture is a predefined order sheet.
type Fixture struct {
	Name    string
	Headers []string
	Rows    [][]any
}

// WideOrder has one column per size. The last row has no quantities, so it
// normalizes as ambiguous.
var WideOrder = Fixture{
	Name:    "wide",
	Headers: []string{"Style", "Description", "Color", "Price", "S", "M", "L"},
	Rows: [][]any{
		{"G500", "Heavy Tee", "Black", 6.5, 2, 4, 1},
		{"PC54", "Core Tee", "Navy", 5.25, 0, 3, 3},
		{"G640", "Softstyle", "White", 7, 0, 0, 0},
	},
}

// LongOrder has one row per size with Size and Qty columns.
var LongOrder = Fixture{
	Name:    "long",
	Headers: []string{"Item Number", "Color", "Size", "Qty"},
	Rows: [][]any{
		{112, "Heather Grey", "L", 4},
		{5000, "Black", "XLT", 2},
		{5000, "Black", "Medium", 6},
	},
}

// WideReadyRows is how many WideOrder rows need no AI extraction.
const WideReadyRows = 2
