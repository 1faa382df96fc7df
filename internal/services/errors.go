package services

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrEmptyFile means the upload had no header row.
	ErrEmptyFile = errors.New("file is empty: a header row is required")

	// ErrSuperseded is returned by a load that finished after a newer one started.
	ErrSuperseded = errors.New("load superseded by a newer upload")

	// ErrNumberRange marks a number too large or too precise to sum safely.
	ErrNumberRange = errors.New("number out of range")

	// ErrQuantityOverflow marks a quantity total that does not fit in int64.
	ErrQuantityOverflow = errors.New("quantity total overflows int64")
)

// position renders "row N (line L)"; line is omitted when unknown.
func position(row, line int) string {
	if line > 0 {
		return fmt.Sprintf("row %d (line %d)", row, line)
	}
	return fmt.Sprintf("row %d", row)
}

// SchemaError reports required columns absent from the header.
type SchemaError struct {
	Missing  []string
	Required []string
}

func (e *SchemaError) Error() string {
	return "CSV must contain: " + strings.Join(e.Required, ", ")
}

// DateParseError reports a date cell that matches none of the accepted
// layouts. Row is the 1-based data row, Line the CSV line it starts on.
type DateParseError struct {
	Row   int
	Line  int
	Value string
}

func (e *DateParseError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("%s: cannot parse date %q (expected YYYY-MM-DD)", position(e.Row, e.Line), e.Value)
	}
	return fmt.Sprintf("cannot parse date %q (expected YYYY-MM-DD)", e.Value)
}

// NumericParseError reports a quantity or revenue cell that is not a usable
// number. Err is ErrNumberRange or ErrQuantityOverflow when the cell parsed
// but was rejected.
type NumericParseError struct {
	Row    int
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *NumericParseError) Error() string {
	at := position(e.Row, e.Line)
	switch {
	case errors.Is(e.Err, ErrQuantityOverflow):
		return fmt.Sprintf("%s: %s total exceeds %d", at, e.Column, int64(math.MaxInt64))
	case errors.Is(e.Err, ErrNumberRange):
		return fmt.Sprintf("%s: %s %q is out of range", at, e.Column, e.Value)
	case e.Value == "":
		return fmt.Sprintf("%s: %s is empty", at, e.Column)
	default:
		return fmt.Sprintf("%s: %s %q is not a number", at, e.Column, e.Value)
	}
}

func (e *NumericParseError) Unwrap() error {
	return e.Err
}

// CSVError reports a malformed CSV line.
type CSVError struct {
	Line int
	Err  error
}

func (e *CSVError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *CSVError) Unwrap() error {
	return e.Err
}

// IsInputError reports whether err was caused by the uploaded file's content
// rather than by the server.
func IsInputError(err error) bool {
	var (
		schemaErr  *SchemaError
		dateErr    *DateParseError
		numericErr *NumericParseError
		csvErr     *CSVError
	)
	return errors.Is(err, ErrEmptyFile) ||
		errors.As(err, &schemaErr) ||
		errors.As(err, &dateErr) ||
		errors.As(err, &numericErr) ||
		errors.As(err, &csvErr)
}
