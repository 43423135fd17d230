package core

// family.go defines code families and the fixed-width codec used to turn
// ranks into human-readable codes and back.
//
// A code is the family prefix followed by exactly Width symbols from the
// family alphabet, left-padded with the alphabet's zero symbol:
//
//	IT-0A3F21   plate numbers  (prefix "IT-", width 6, base 36)
//	CO007       company codes  (prefix "CO",  width 3, base 36)
//	TK-000042   ticket numbers (prefix "TK-", width 6, base 10)

import (
	"fmt"
	"math"
	"strings"
)

// Alphabets shared by the shipped families.
const (
	AlphabetBase36  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	AlphabetDecimal = "0123456789"
)

// CodeFamily identifies one independent sequence namespace.
type CodeFamily struct {
	Name     string     // Registry key: "plate", "company"
	Kind     EntityKind // Entity whose code column holds this family
	Prefix   string     // Literal prefix: "IT-"
	Width    int        // Number of symbols after the prefix
	Alphabet string     // Symbols in rank order; Alphabet[0] is the zero symbol
	Start    int64      // Rank issued first for an empty family
}

// CodeState classifies a raw cell value against a family.
type CodeState int

const (
	CodeMissing CodeState = iota
	CodeInvalid
	CodeValid
)

// Base returns the radix of the family alphabet.
func (f CodeFamily) Base() int64 {
	return int64(len(f.Alphabet))
}

// Capacity returns base^width, the first rank that no longer fits.
// Families are validated on registration so this never overflows int64.
func (f CodeFamily) Capacity() int64 {
	c := int64(1)
	for i := 0; i < f.Width; i++ {
		c *= f.Base()
	}
	return c
}

// validate reports configuration errors that would make the codec unsafe.
func (f CodeFamily) validate() error {
	if f.Name == "" {
		return fmt.Errorf("code family: name is required")
	}
	if f.Width <= 0 {
		return fmt.Errorf("code family %s: width must be positive", f.Name)
	}
	if len(f.Alphabet) < 2 {
		return fmt.Errorf("code family %s: alphabet needs at least two symbols", f.Name)
	}
	seen := make(map[rune]bool, len(f.Alphabet))
	for _, r := range f.Alphabet {
		if r > 0x7f {
			return fmt.Errorf("code family %s: alphabet must be ASCII", f.Name)
		}
		if seen[r] {
			return fmt.Errorf("code family %s: duplicate alphabet symbol %q", f.Name, r)
		}
		seen[r] = true
	}
	if float64(f.Width)*math.Log2(float64(len(f.Alphabet))) >= 62 {
		return fmt.Errorf("code family %s: width %d too large for base %d", f.Name, f.Width, len(f.Alphabet))
	}
	if f.Start < 0 || f.Start >= f.Capacity() {
		return fmt.Errorf("code family %s: start rank %d out of range", f.Name, f.Start)
	}
	return nil
}

// Encode renders rank as a full code (prefix included).
// Returns ErrSequenceOverflow if rank does not fit in Width symbols.
func (f CodeFamily) Encode(rank int64) (string, error) {
	if rank < 0 {
		return "", fmt.Errorf("encode %s rank %d: negative rank", f.Name, rank)
	}
	if rank >= f.Capacity() {
		return "", fmt.Errorf("encode %s rank %d: %w", f.Name, rank, ErrSequenceOverflow)
	}

	base := f.Base()
	buf := make([]byte, f.Width)
	for i := f.Width - 1; i >= 0; i-- {
		buf[i] = f.Alphabet[rank%base]
		rank /= base
	}
	return f.Prefix + string(buf), nil
}

// Decode returns the rank of code. The second result is false when code
// does not carry the prefix, has the wrong width, or contains symbols
// outside the alphabet.
func (f CodeFamily) Decode(code string) (int64, bool) {
	body, ok := strings.CutPrefix(code, f.Prefix)
	if !ok || len(body) != f.Width {
		return 0, false
	}

	base := f.Base()
	var rank int64
	for i := 0; i < len(body); i++ {
		idx := strings.IndexByte(f.Alphabet, body[i])
		if idx < 0 {
			return 0, false
		}
		rank = rank*base + int64(idx)
	}
	return rank, true
}

// IsValidCode reports whether candidate is a well-formed code of family:
// exact prefix, then exactly Width symbols drawn from the alphabet.
func IsValidCode(family CodeFamily, candidate string) bool {
	_, ok := family.Decode(candidate)
	return ok
}

// Classify tells a missing code (empty cell) apart from a malformed one.
func (f CodeFamily) Classify(value string) CodeState {
	value = strings.TrimSpace(value)
	if value == "" {
		return CodeMissing
	}
	if IsValidCode(f, value) {
		return CodeValid
	}
	return CodeInvalid
}
