package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrCompanyRequired occurs when a request carries no company scope.
	ErrCompanyRequired = errors.New("company scope required")
)
