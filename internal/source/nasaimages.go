package source

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/megamp15/Space-Images-Dataset-Generator/internal/config"
	"github.com/megamp15/Space-Images-Dataset-Generator/internal/model"
	"github.com/megamp15/Space-Images-Dataset-Generator/internal/normalize"
	"github.com/megamp15/Space-Images-Dataset-Generator/internal/util"
)

// NASA Image and Video Library search, no key required.
// Responses look like {"collection": {"items": [...]}}.
type nasaImagesSource struct {
	cfg    config.NASAImagesConfig
	ua     string
	client *http.Client
}

func NewNASAImagesSource(cfg config.NASAImagesConfig, h config.CommonHTTP) *nasaImagesSource {
	return &nasaImagesSource{cfg: cfg, ua: h.UserAgent, client: util.NewHTTPClient(h.Timeout)}
}

func (s *nasaImagesSource) Name() string { return "nasa_images" }

func (s *nasaImagesSource) Fetch(ctx context.Context, r Request) ([]map[string]any, error) {
	q := url.Values{}
	q.Set("q", r.Term)
	q.Set("page", strconv.Itoa(r.Page))
	q.Set("page_size", strconv.Itoa(r.Size))
	u := strings.TrimRight(s.cfg.BaseURL, "/") + "/search?" + q.Encode()

	return getItems(ctx, s.client, s.Name(), u, setUserAgent(http.Header{}, s.ua), "collection.items")
}

func (s *nasaImagesSource) Normalize(item map[string]any) model.Record {
	return normalize.NASAImages(item)
}
