package normalize

import (
	"strings"
)

// Role is the meaning of a spreadsheet column.
type Role int

// Column roles.
const (
	RoleNone Role = iota
	RoleStyle
	RoleDescription
	RoleColor
	RolePrice
	RoleQuantity
	RoleSize
	RoleIgnored
)

func (r Role) String() string {
	switch r {
	case RoleStyle:
		return "style"
	case RoleDescription:
		return "description"
	case RoleColor:
		return "color"
	case RolePrice:
		return "price"
	case RoleQuantity:
		return "quantity"
	case RoleSize:
		return "size"
	case RoleIgnored:
		return "ignored"
	default:
		return "none"
	}
}

var roleAliases = map[string]Role{
	"style":            RoleStyle,
	"style number":     RoleStyle,
	"style no":         RoleStyle,
	"style #":          RoleStyle,
	"style#":           RoleStyle,
	"item":             RoleStyle,
	"item num":         RoleStyle,
	"item_num":         RoleStyle,
	"itemnumber":       RoleStyle,
	"item number":      RoleStyle,
	"item #":           RoleStyle,
	"sku":              RoleStyle,
	"description":      RoleDescription,
	"desc":             RoleDescription,
	"item description": RoleDescription,
	"product":          RoleDescription,
	"product name":     RoleDescription,
	"garment":          RoleDescription,
	"name":             RoleDescription,
	"color":            RoleColor,
	"colour":           RoleColor,
	"colors":           RoleColor,
	"color name":       RoleColor,
	"price":            RolePrice,
	"unit price":       RolePrice,
	"price each":       RolePrice,
	"each":             RolePrice,
	"cost":             RolePrice,
	"unit cost":        RolePrice,
	"qty":              RoleQuantity,
	"quantity":         RoleQuantity,
	"count":            RoleQuantity,
	"pcs":              RoleQuantity,
	"pieces":           RoleQuantity,
	"size":             RoleSize,
	"sizes":            RoleSize,
	"total":            RoleIgnored,
	"totals":           RoleIgnored,
	"total qty":        RoleIgnored,
	"total quantity":   RoleIgnored,
	"line total":       RoleIgnored,
	"notes":            RoleIgnored,
	"note":             RoleIgnored,
	"comments":         RoleIgnored,
	"line":             RoleIgnored,
	"#":                RoleIgnored,
	"row":              RoleIgnored,
}

// HeaderRole returns the role a header names. Size headers are not roles;
// see ParseSize.
func HeaderRole(header string) Role {
	return roleAliases[cleanHeader(header)]
}

// IsHeaderRow reports whether cells look like the column header row: a
// style or quantity column, or at least two size columns.
func IsHeaderRow(cells []string) bool {
	sizes := 0
	for _, c := range cells {
		switch HeaderRole(c) {
		case RoleStyle, RoleQuantity:
			return true
		case RoleNone:
			if _, _, ok := ParseSize(c); ok && !isNumeric(c) {
				sizes++
			}
		}
	}
	return sizes >= 2
}

func cleanHeader(header string) string {
	h := strings.ToLower(strings.Join(strings.Fields(header), " "))
	return strings.TrimSuffix(h, ":")
}
