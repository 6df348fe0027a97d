// Package ingest drives the sources and assembles the dataset.
package ingest

import (
	"context"
	"log/slog"

	"github.com/megamp15/Space-Images-Dataset-Generator/internal/config"
	"github.com/megamp15/Space-Images-Dataset-Generator/internal/metrics"
	"github.com/megamp15/Space-Images-Dataset-Generator/internal/model"
	"github.com/megamp15/Space-Images-Dataset-Generator/internal/paginate"
	"github.com/megamp15/Space-Images-Dataset-Generator/internal/postprocess"
	"github.com/megamp15/Space-Images-Dataset-Generator/internal/source"
	"github.com/megamp15/Space-Images-Dataset-Generator/internal/store"
)

// Job asks one source for Amount records. A searching job gets the full
// Amount once per term and makes no calls when Terms is empty.
type Job struct {
	Source source.Source
	Amount int
	Search bool
	Terms  []string
}

// JobsFromConfig builds the jobs in their fixed order: JWST, NASA Image
// and Video Library, APOD.
func JobsFromConfig(c config.Config) []Job {
	return []Job{
		{Source: source.NewJWSTSource(c.Sources.JWST, c.HTTP), Amount: c.Sources.JWST.Amount},
		{Source: source.NewNASAImagesSource(c.Sources.NASAImages, c.HTTP), Amount: c.Sources.NASAImages.Amount, Search: true, Terms: c.Sources.NASAImages.SearchTerms},
		{Source: source.NewAPODSource(c.Sources.APOD, c.HTTP), Amount: c.Sources.APOD.Amount},
	}
}

type Options struct {
	Post    *postprocess.Engine // optional
	Dedup   bool                // drop repeated image URLs
	Metrics *metrics.Run        // optional
}

type Aggregator struct {
	log     *slog.Logger
	post    *postprocess.Engine
	dedup   *store.Dedup
	metrics *metrics.Run
}

func New(log *slog.Logger, opts Options) *Aggregator {
	a := &Aggregator{log: log, post: opts.Post, metrics: opts.Metrics}
	if opts.Dedup {
		a.dedup = store.NewDedup()
	}
	return a
}

// Run fetches every job in order and returns the records that carry an
// image URL, with ids 0..n-1 in fetch order. Failed pages are logged and
// contribute nothing. Cancelling ctx stops fetching and returns what was
// collected so far.
func (a *Aggregator) Run(ctx context.Context, jobs []Job) []model.Record {
	dataset := make([]model.Record, 0)
	nextID := 0

	for _, job := range jobs {
		name := job.Source.Name()
		if job.Amount <= 0 {
			a.log.Info("source disabled", "source", name)
			continue
		}
		terms := []string{""}
		if job.Search {
			terms = job.Terms
			if len(terms) == 0 {
				a.log.Info("no search terms configured", "source", name)
				continue
			}
		}
		for _, term := range terms {
			for _, p := range paginate.Plan(job.Amount) {
				if err := ctx.Err(); err != nil {
					a.log.Warn("fetch interrupted", "source", name, "err", err)
					return dataset
				}
				items, err := job.Source.Fetch(ctx, source.Request{Page: p.Number, Size: p.Size, Term: term})
				if err != nil {
					a.metrics.SourceError(name)
					a.log.Warn("page skipped", "source", name, "term", term, "page", p.Number, "err", err)
					continue
				}
				a.metrics.PageFetched(name)

				added := 0
				for _, item := range items {
					rec := job.Source.Normalize(item)
					if a.post != nil {
						rec = a.post.Apply(rec)
					}
					a.log.Debug("normalized", "source", name, "term", term, "page", p.Number,
						"raw", item, "imageURL", rec.ImageURL, "description", rec.Description,
						"date", rec.Date, "metadata", rec.Metadata)

					if rec.ImageURL == "" {
						a.metrics.RecordDropped(name, metrics.ReasonNoImageURL)
						continue
					}
					if a.dedup != nil && a.dedup.Seen(rec.ImageURL) {
						a.metrics.RecordDropped(name, metrics.ReasonDuplicate)
						continue
					}
					rec.ID = nextID
					nextID++
					dataset = append(dataset, rec)
					a.metrics.RecordAdded(name)
					added++
				}
				a.log.Info("page fetched", "source", name, "term", term, "page", p.Number,
					"requested", p.Size, "items", len(items), "added", added)
			}
		}
	}
	return dataset
}
