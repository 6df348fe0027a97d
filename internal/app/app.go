// Package app wires the components into one batch run.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/megamp15/Space-Images-Dataset-Generator/internal/config"
	"github.com/megamp15/Space-Images-Dataset-Generator/internal/export"
	"github.com/megamp15/Space-Images-Dataset-Generator/internal/imagefetch"
	"github.com/megamp15/Space-Images-Dataset-Generator/internal/ingest"
	"github.com/megamp15/Space-Images-Dataset-Generator/internal/metrics"
	"github.com/megamp15/Space-Images-Dataset-Generator/internal/model"
	"github.com/megamp15/Space-Images-Dataset-Generator/internal/postprocess"
)

// Summary describes a finished run.
type Summary struct {
	Fetched      int   // records after aggregation
	FailedImages []int // ids whose image could not be saved
	Exported     int   // records written to the dataset files
}

type App struct {
	cfg     config.Config
	log     *slog.Logger
	runID   string
	metrics *metrics.Run
}

func New(cfg config.Config, log *slog.Logger, runID string) *App {
	return &App{cfg: cfg, log: log, runID: runID, metrics: metrics.NewRun()}
}

// Run fetches, optionally downloads images, and exports. Source and image
// failures are logged and tolerated; only an invalid configuration or a
// failure to write the JSON/CSV files is returned as an error.
func (a *App) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	post, err := postprocess.New(a.cfg.Post)
	if err != nil {
		return sum, err
	}

	if addr := a.cfg.Metrics.Listen; addr != "" {
		srv, err := a.metrics.Serve(addr)
		if err != nil {
			a.log.Error("metrics endpoint disabled", "err", err)
		} else {
			a.log.Info("serving metrics", "addr", srv.Addr())
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(ctx)
			}()
		}
	}

	a.log.Info("retrieving data from APIs",
		"jwst", a.cfg.Sources.JWST.Amount,
		"nasa_images", a.cfg.Sources.NASAImages.Amount,
		"search_terms", a.cfg.Sources.NASAImages.SearchTerms,
		"apod", a.cfg.Sources.APOD.Amount)
	agg := ingest.New(a.log, ingest.Options{Post: post, Dedup: a.cfg.Dedup.Enable, Metrics: a.metrics})
	dataset := agg.Run(ctx, ingest.JobsFromConfig(a.cfg))
	sum.Fetched = len(dataset)
	a.log.Info("finished retrieving data from APIs", "records", len(dataset))

	if a.cfg.Images.Download {
		dataset, sum.FailedImages = a.downloadImages(ctx, dataset)
	}

	// Whatever was collected is exported even after a cancel.
	ctx = context.WithoutCancel(ctx)

	if err := export.WriteJSON(a.cfg.Output.JSONPath, dataset); err != nil {
		return sum, err
	}
	a.log.Info("dataset exported as JSON", "path", a.cfg.Output.JSONPath)
	n, err := export.JSONToCSV(a.cfg.Output.JSONPath, a.cfg.Output.CSVPath)
	if err != nil {
		return sum, err
	}
	sum.Exported = n
	a.log.Info("dataset converted to CSV", "path", a.cfg.Output.CSVPath, "rows", n)

	for _, s := range a.sinks() {
		if err := s.Export(ctx, dataset); err != nil {
			a.log.Error("sink export failed", "sink", s.Name(), "err", err)
			continue
		}
		a.log.Info("dataset exported", "sink", s.Name(), "records", len(dataset))
	}

	a.metrics.Finish(len(dataset))
	a.publishMetrics(ctx)
	return sum, nil
}

func (a *App) downloadImages(ctx context.Context, dataset []model.Record) ([]model.Record, []int) {
	ic := a.cfg.Images
	f := imagefetch.New(imagefetch.Options{
		Dir:          ic.Dir,
		Clear:        ic.Clear,
		ClearPattern: ic.ClearPattern,
		Workers:      ic.Workers,
		Quality:      ic.Quality,
		Timeout:      ic.Timeout,
		UserAgent:    a.cfg.HTTP.UserAgent,
	}, a.log, a.metrics)
	if err := f.Prepare(); err != nil {
		a.log.Error("image download skipped", "err", err)
		return dataset, nil
	}

	a.log.Info("downloading images", "dir", ic.Dir, "records", len(dataset), "workers", ic.Workers)
	failed := f.Download(ctx, dataset)
	if ctx.Err() != nil {
		a.log.Warn("image download interrupted, keeping all records", "err", ctx.Err(), "failed", len(failed))
		return dataset, failed
	}
	if ic.RemoveFailed && len(failed) > 0 {
		a.log.Info("removing records without a downloadable image", "ids", failed)
		dataset = imagefetch.Prune(dataset, failed)
	}
	a.log.Info("finished downloading images", "dir", ic.Dir, "failed", len(failed), "records", len(dataset))
	return dataset, failed
}

func (a *App) sinks() []export.Sink {
	var sinks []export.Sink
	if p := strings.TrimSpace(a.cfg.Output.SQLitePath); p != "" {
		sinks = append(sinks, export.NewSQLiteSink(p, a.runID))
	}
	if strings.TrimSpace(a.cfg.Loki.URL) != "" {
		sinks = append(sinks, export.NewLoki(a.cfg.Loki, a.runID))
	}
	return sinks
}

func (a *App) publishMetrics(ctx context.Context) {
	a.log.Debug("metrics snapshot", "metrics", a.metrics.Snapshot())
	if p := a.cfg.Metrics.Textfile; p != "" {
		if err := a.metrics.WriteTextfile(p); err != nil {
			a.log.Error("metrics not written", "err", err)
		}
	}
	if u := a.cfg.Metrics.PushURL; u != "" {
		if err := a.metrics.Push(ctx, u, a.cfg.Metrics.Job); err != nil {
			a.log.Error("metrics not pushed", "err", fmt.Errorf("%s: %w", u, err))
		}
	}
}
