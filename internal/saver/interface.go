package saver

import (
	"io"
	"strings"

	"metrix/internal/model"
)

// Format is the abstraction for encoding a tabular result to bytes and back.
// The history fetcher and the CLI depend only on this interface; the
// concrete encoding is injected from config.
type Format interface {
	Extension() string
	Save(w io.Writer, bars []model.Bar) error
	Load(data []byte) ([]model.Bar, error)
}

// NewFormat creates implementation by name (parquet, csv, json).
// Returns nil if the name is not supported.
func NewFormat(name string) Format {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "parquet":
		return ParquetFormat{}
	case "csv":
		return CSVFormat{}
	case "json":
		return JSONFormat{}
	default:
		return nil
	}
}
