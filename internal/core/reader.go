package core

// reader.go provides the lazy row source consumed by the import pipeline.
//
// The input stream is decoded before the CSV parser sees it:
//
//   - utf-8 (default): an optional BOM is stripped and invalid byte
//     sequences are replaced with U+FFFD
//   - windows-1252 / latin1: spreadsheet exports from Windows are decoded
//     to UTF-8
//
// The first record is the header. Every later record is returned by Next
// as an ImportRow, one at a time; the reader is single-pass.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrMalformedInput marks a stream that cannot be parsed as delimited text.
var ErrMalformedInput = errors.New("invalid csv")

// Supported input encodings.
const (
	EncodingUTF8        = "utf-8"
	EncodingWindows1252 = "windows-1252"
	EncodingLatin1      = "latin1"
)

// ReaderOptions configures a RowReader.
type ReaderOptions struct {
	Delimiter rune   // Field delimiter (default ',')
	Encoding  string // Input encoding (default utf-8)
}

// RowReader yields ImportRows from a delimited text stream.
type RowReader struct {
	csv    *csv.Reader
	header []string
	row    int
}

// NewRowReader reads the header from r and returns a reader positioned at
// the first data row. A missing or unreadable header is reported as
// ErrMalformedInput.
func NewRowReader(r io.Reader, opts ReaderOptions) (*RowReader, error) {
	dec, err := decoderFor(opts.Encoding)
	if err != nil {
		return nil, err
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = ','
	}
	if !validDelimiter(delim) {
		return nil, fmt.Errorf("%w: delimiter %q", ErrInvalidOptions, delim)
	}

	cr := csv.NewReader(transform.NewReader(r, dec.NewDecoder()))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrMalformedInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %w", ErrMalformedInput, err)
	}

	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h != "" && seen[h] {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrMalformedInput, h)
		}
		seen[h] = true
		header[i] = h
	}

	return &RowReader{csv: cr, header: header}, nil
}

// Header returns the trimmed header names in input order.
func (r *RowReader) Header() []string {
	return r.header
}

// Next returns the next data row, or io.EOF when the stream is exhausted.
// Parse failures are wrapped in ErrMalformedInput.
func (r *RowReader) Next() (ImportRow, error) {
	record, err := r.csv.Read()
	if err == io.EOF {
		return ImportRow{}, io.EOF
	}
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return ImportRow{}, fmt.Errorf("%w: line %d: %v", ErrMalformedInput, pe.Line, pe.Err)
		}
		return ImportRow{}, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}

	r.row++
	values := make(map[string]string, len(r.header))
	for i, name := range r.header {
		if name == "" || i >= len(record) {
			continue
		}
		values[name] = record[i]
	}

	return ImportRow{OriginalRow: r.row, Values: values}, nil
}

// ParseDelimiter converts a user-supplied delimiter ("," ";" "tab" "\t").
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "":
		return ',', nil
	case "tab", `\t`:
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || !validDelimiter(r) {
		return 0, fmt.Errorf("%w: delimiter %q", ErrInvalidOptions, s)
	}
	return r, nil
}

func validDelimiter(r rune) bool {
	return r != 0 && r != '"' && r != '\r' && r != '\n' && r != utf8.RuneError
}

func decoderFor(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EncodingUTF8, "utf8":
		return unicode.UTF8BOM, nil
	case EncodingWindows1252, "cp1252":
		return charmap.Windows1252, nil
	case EncodingLatin1, "iso-8859-1":
		return charmap.ISO8859_1, nil
	default:
		return nil, fmt.Errorf("%w: unsupported encoding %q", ErrInvalidOptions, name)
	}
}
