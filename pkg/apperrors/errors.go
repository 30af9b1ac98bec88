package apperrors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrColumnNotFound    = errors.New("column not found")
	ErrSheetNotFound     = errors.New("sheet not found")
	ErrEmptyDataset      = errors.New("dataset is empty")
	ErrNotTabular        = errors.New("input is not tabular")
	ErrInvalidThreshold  = errors.New("threshold must be between 0 and 100")
	ErrUnsupportedSource = errors.New("unsupported source type")
)
