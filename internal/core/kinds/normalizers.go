package kinds

import "strings"

// NormalizeEmail lowercases an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeIdentifier uppercases serials, tax IDs and document numbers and
// drops the spaces, dots and dashes people type into them.
func NormalizeIdentifier(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '.', '-', '\t':
			return -1
		}
		return r
	}, s)
}

// NormalizeLabel lowercases free-form category values ("Laptop" → "laptop").
func NormalizeLabel(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
