// Package imagefetch downloads the dataset images and stores them as JPEG.
package imagefetch

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/megamp15/Space-Images-Dataset-Generator/internal/metrics"
	"github.com/megamp15/Space-Images-Dataset-Generator/internal/model"
	"github.com/megamp15/Space-Images-Dataset-Generator/internal/util"
)

// ErrImageFetch wraps every per-image failure: transport, status, decode,
// encode and write.
var ErrImageFetch = errors.New("image fetch failed")

// maxImage bounds a single download.
const maxImage = 256 << 20

type Options struct {
	Dir          string
	Clear        bool   // delete files matching ClearPattern in Dir before downloading
	ClearPattern string // doublestar glob relative to Dir
	Workers      int    // concurrent downloads, <= 1 means sequential
	Quality      int    // JPEG quality
	Timeout      time.Duration
	UserAgent    string
}

type Fetcher struct {
	opts    Options
	client  *http.Client
	log     *slog.Logger
	metrics *metrics.Run
}

func New(opts Options, log *slog.Logger, m *metrics.Run) *Fetcher {
	if opts.ClearPattern == "" {
		opts.ClearPattern = "*"
	}
	if opts.Quality <= 0 {
		opts.Quality = jpeg.DefaultQuality
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Fetcher{opts: opts, client: util.NewHTTPClient(opts.Timeout), log: log, metrics: m}
}

// Prepare creates the image directory and, when configured, clears it.
// Files that cannot be removed are logged and left in place.
func (f *Fetcher) Prepare() error {
	if err := os.MkdirAll(f.opts.Dir, 0o755); err != nil {
		return fmt.Errorf("create image dir: %w", err)
	}
	if !f.opts.Clear {
		return nil
	}
	matches, err := doublestar.Glob(os.DirFS(f.opts.Dir), f.opts.ClearPattern)
	if err != nil {
		return fmt.Errorf("clear image dir: %w", err)
	}
	removed := 0
	for _, m := range matches {
		p := filepath.Join(f.opts.Dir, filepath.FromSlash(m))
		info, err := os.Lstat(p)
		if err != nil || info.IsDir() {
			continue
		}
		if err := os.Remove(p); err != nil {
			f.log.Warn("could not delete file", "path", p, "err", err)
			continue
		}
		removed++
	}
	f.log.Info("image dir cleared", "dir", f.opts.Dir, "pattern", f.opts.ClearPattern, "removed", removed)
	return nil
}

// Path is where the image of record id is stored.
func (f *Fetcher) Path(id int) string {
	return filepath.Join(f.opts.Dir, fmt.Sprintf("image_%d.jpg", id))
}

// Download saves the image of every record and returns the ids that
// failed, ascending. It never stops early on a failed image. Once ctx is
// cancelled the remaining records are skipped and not reported as failed.
func (f *Fetcher) Download(ctx context.Context, records []model.Record) []int {
	var (
		mu     sync.Mutex
		failed []int
		g      errgroup.Group
	)
	g.SetLimit(max(1, f.opts.Workers))

	for _, rec := range records {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := f.Fetch(ctx, rec); err != nil {
				if ctx.Err() != nil {
					f.log.Debug("image download interrupted", "id", rec.ID)
					return nil
				}
				f.metrics.ImageFailed()
				f.log.Warn("could not download image", "id", rec.ID, "url", rec.ImageURL, "err", err)
				mu.Lock()
				failed = append(failed, rec.ID)
				mu.Unlock()
				return nil
			}
			f.metrics.ImageSaved()
			f.log.Debug("image saved", "id", rec.ID, "path", f.Path(rec.ID))
			return nil
		})
	}
	_ = g.Wait()

	sort.Ints(failed)
	return failed
}

// Fetch downloads, converts and stores the image of one record.
func (f *Fetcher) Fetch(ctx context.Context, rec model.Record) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rec.ImageURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrImageFetch, err)
	}
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrImageFetch, err)
	}
	if !util.IsSuccess(resp) {
		util.BodyHead(resp, 256)
		return fmt.Errorf("%w: http %d", ErrImageFetch, resp.StatusCode)
	}
	defer resp.Body.Close()

	img, format, err := image.Decode(io.LimitReader(resp.Body, maxImage))
	if err != nil {
		return fmt.Errorf("%w: decode: %v", ErrImageFetch, err)
	}
	if err := f.save(f.Path(rec.ID), toRGB(img)); err != nil {
		return fmt.Errorf("%w: %v", ErrImageFetch, err)
	}
	f.log.Debug("image converted", "id", rec.ID, "format", format)
	return nil
}

// toRGB flattens img onto an opaque black canvas so the JPEG encoder sees
// no transparency.
func toRGB(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, image.Black, image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}

// save encodes img into a temporary file next to path and renames it into
// place, so a failed write never leaves a truncated image behind.
func (f *Fetcher) save(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: f.opts.Quality}); err != nil {
		tmp.Close()
		return fmt.Errorf("encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Prune returns the records whose id is not in failed, keeping order.
// Matching is by id, never by position, and ids are not renumbered.
func Prune(records []model.Record, failed []int) []model.Record {
	if len(failed) == 0 {
		return records
	}
	drop := make(map[int]struct{}, len(failed))
	for _, id := range failed {
		drop[id] = struct{}{}
	}
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if _, ok := drop[r.ID]; ok {
			continue
		}
		out = append(out, r)
	}
	return out
}
