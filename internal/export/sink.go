// Package export writes the finished dataset.
//
// The JSON and CSV files are the run's required outputs; a failure to
// write either is an ErrExport. Sinks are optional extra destinations.
package export

import (
	"context"
	"errors"

	"github.com/megamp15/Space-Images-Dataset-Generator/internal/model"
)

// ErrExport wraps failures to write the dataset files.
var ErrExport = errors.New("export failed")

// Sink is an optional destination for the final dataset.
type Sink interface {
	Name() string
	Export(ctx context.Context, records []model.Record) error
}
