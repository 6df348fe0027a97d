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

// Astronomy Picture of the Day. With count set the API returns that many
// random entries as a top-level array; it has no page parameter, so every
// planned page is an independent draw.
type apodSource struct {
	cfg    config.APODConfig
	ua     string
	client *http.Client
}

func NewAPODSource(cfg config.APODConfig, h config.CommonHTTP) *apodSource {
	return &apodSource{cfg: cfg, ua: h.UserAgent, client: util.NewHTTPClient(h.Timeout)}
}

func (s *apodSource) Name() string { return "apod" }

func (s *apodSource) Fetch(ctx context.Context, r Request) ([]map[string]any, error) {
	q := url.Values{}
	q.Set("api_key", s.cfg.APIKey)
	q.Set("count", strconv.Itoa(r.Size))
	u := strings.TrimRight(s.cfg.BaseURL, "/") + "/planetary/apod?" + q.Encode()

	return getItems(ctx, s.client, s.Name(), u, setUserAgent(http.Header{}, s.ua), "")
}

func (s *apodSource) Normalize(item map[string]any) model.Record { return normalize.APOD(item) }
