package extract

import (
	"errors"
)

// Common extract errors
var (
	// ErrEmptyFile is returned when the extract file is empty
	ErrEmptyFile = errors.New("extract file is empty")

	// ErrInvalidEncoding is returned when the file is neither UTF-8 nor Windows-1252
	ErrInvalidEncoding = errors.New("invalid file encoding")

	// ErrMissingHeader is returned when the extract has no header row or
	// lacks required columns
	ErrMissingHeader = errors.New("extract missing required header")
)
