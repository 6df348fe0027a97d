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

// JWST API, https://jwstapi.com. Responses wrap items in {"body": [...]}.
type jwstSource struct {
	cfg    config.JWSTConfig
	ua     string
	client *http.Client
}

func NewJWSTSource(cfg config.JWSTConfig, h config.CommonHTTP) *jwstSource {
	return &jwstSource{cfg: cfg, ua: h.UserAgent, client: util.NewHTTPClient(h.Timeout)}
}

func (s *jwstSource) Name() string { return "jwst" }

func (s *jwstSource) Fetch(ctx context.Context, r Request) ([]map[string]any, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(r.Page))
	q.Set("perPage", strconv.Itoa(r.Size))
	u := strings.TrimRight(s.cfg.BaseURL, "/") + "/all/type/jpg?" + q.Encode()

	h := setUserAgent(http.Header{}, s.ua)
	if k := strings.TrimSpace(s.cfg.APIKey); k != "" {
		h.Set("X-API-KEY", k)
	}
	return getItems(ctx, s.client, s.Name(), u, h, "body")
}

func (s *jwstSource) Normalize(item map[string]any) model.Record { return normalize.JWST(item) }
