// Package source holds the adapters for the upstream image APIs.
package source

import (
	"context"
	"errors"

	"github.com/megamp15/Space-Images-Dataset-Generator/internal/model"
)

// ErrSourceUnavailable wraps every failure to obtain a page from an API:
// transport errors, non-2xx statuses and unreadable bodies.
var ErrSourceUnavailable = errors.New("source unavailable")

// Request is one paged call.
type Request struct {
	Page int
	Size int
	Term string // search term, only used by sources that search
}

type Source interface {
	Name() string
	// Fetch performs exactly one HTTP call and returns the raw items of
	// the response.
	Fetch(ctx context.Context, req Request) ([]map[string]any, error)
	// Normalize maps one raw item onto a record. It never fails.
	Normalize(item map[string]any) model.Record
}
