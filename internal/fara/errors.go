package fara

import (
	"errors"
	"fmt"
)

var (
	// ErrElementNotFound is returned when an expected element or attribute is absent.
	ErrElementNotFound = errors.New("element not found")
	// ErrInvalidDate is returned when a date cell is not a valid MM/DD/YYYY date.
	ErrInvalidDate = errors.New("invalid date")
	// ErrAjaxIdentifierNotFound is returned when the worksheet page does not carry
	// enough ajaxIdentifier markers.
	ErrAjaxIdentifierNotFound = errors.New("ajax identifier not found")
	// ErrInvalidRowCount is returned when the displayed row count is not a number.
	ErrInvalidRowCount = errors.New("invalid row count")
)

// RowError ties a parse failure to the zero-based data row (header excluded) it came from.
type RowError struct {
	Index int
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Index, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

func missing(selector string) error {
	return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
}
