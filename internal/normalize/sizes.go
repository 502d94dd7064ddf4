package normalize

import (
	"slices"
	"strings"
)

// SizeOSFA is the one-size label used when a row has a quantity but no size.
const SizeOSFA = "OSFA"

// canonicalSizes lists every size label in display order.
var canonicalSizes = []string{
	"YXS", "YS", "YM", "YL", "YXL",
	"XS", "S", "M", "L", "XL", "2XL", "3XL", "4XL", "5XL", "6XL",
	"6M", "12M", "18M", "24M",
	"2T", "3T", "4T", "5T",
	SizeOSFA,
}

// sizeAliases maps alternate spellings onto canonical labels.
var sizeAliases = map[string]string{
	"SMALL":       "S",
	"SM":          "S",
	"MEDIUM":      "M",
	"MED":         "M",
	"LARGE":       "L",
	"LG":          "L",
	"EXTRA LARGE": "XL",
	"EXTRALARGE":  "XL",
	"X-LARGE":     "XL",
	"XXL":         "2XL",
	"2X":          "2XL",
	"XXXL":        "3XL",
	"3X":          "3XL",
	"XXXXL":       "4XL",
	"4X":          "4XL",
	"5X":          "5XL",
	"XSM":         "XS",
	"Y-XS":        "YXS",
	"Y-S":         "YS",
	"Y-M":         "YM",
	"Y-L":         "YL",
	"Y-XL":        "YXL",
	"YOUTH XS":    "YXS",
	"YOUTH S":     "YS",
	"YOUTH M":     "YM",
	"YOUTH L":     "YL",
	"YOUTH XL":    "YXL",
	"OS":          SizeOSFA,
	"ONE SIZE":    SizeOSFA,
	"ONESIZE":     SizeOSFA,
	"O/S":         SizeOSFA,
}

var toddlerSizes = map[string]bool{"2T": true, "3T": true, "4T": true, "5T": true}

// Vocabulary returns the canonical size labels in display order.
func Vocabulary() []string {
	return slices.Clone(canonicalSizes)
}

// IsKnownSize reports whether label is a canonical size.
func IsKnownSize(label string) bool {
	return slices.Contains(canonicalSizes, label)
}

// SizeRank orders sizes for display. Unknown labels sort last.
func SizeRank(label string) int {
	if i := slices.Index(canonicalSizes, label); i >= 0 {
		return i
	}
	return len(canonicalSizes)
}

// CanonicalSize maps a size label onto the vocabulary without tall handling.
func CanonicalSize(label string) (string, bool) {
	key := cleanSize(label)
	if IsKnownSize(key) {
		return key, true
	}
	if canonical, ok := sizeAliases[key]; ok {
		return canonical, true
	}
	return "", false
}

// ParseSize reads size text such as "2XL ($3.50)", "Extra Large", or "LT".
// Tall variants return their base size with tall set. Toddler sizes
// (2T-5T) are never tall.
func ParseSize(text string) (size string, tall bool, ok bool) {
	key := cleanSize(text)
	if key == "" {
		return "", false, false
	}

	candidates := []string{key}
	if i := strings.IndexAny(key, "( "); i > 0 {
		candidates = append(candidates, strings.TrimSpace(key[:i]))
	}

	for _, c := range candidates {
		if canonical, found := CanonicalSize(c); found {
			return canonical, false, true
		}
		if base, found := tallBase(c); found {
			return base, true, true
		}
	}
	return "", false, false
}

func tallBase(label string) (string, bool) {
	if len(label) < 2 || toddlerSizes[label] || !strings.HasSuffix(label, "T") {
		return "", false
	}
	base, ok := CanonicalSize(strings.TrimSuffix(label, "T"))
	if !ok || base == SizeOSFA || toddlerSizes[base] || strings.HasPrefix(base, "Y") || strings.HasSuffix(base, "M") && base != "M" {
		return "", false
	}
	return base, true
}

func cleanSize(text string) string {
	fields := strings.Fields(strings.ToUpper(text))
	return strings.Join(fields, " ")
}
