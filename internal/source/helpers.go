package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/megamp15/Space-Images-Dataset-Generator/internal/normalize"
	"github.com/megamp15/Space-Images-Dataset-Generator/internal/util"
)

// maxBody bounds how much of a response is decoded.
const maxBody = 32 << 20

// getItems GETs u and returns the objects of the array found at itemsPath
// (dot-notation, empty for a top-level array). Non-object entries are
// skipped.
func getItems(ctx context.Context, client *http.Client, name, u string, header http.Header, itemsPath string) ([]map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: new request: %v", ErrSourceUnavailable, name, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, name, redact(err))
	}
	if !util.IsSuccess(resp) {
		return nil, fmt.Errorf("%w: %s %d: %s", ErrSourceUnavailable, name, resp.StatusCode, util.BodyHead(resp, 512))
	}
	defer resp.Body.Close()

	var raw any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %s: decode: %v", ErrSourceUnavailable, name, err)
	}

	found, ok := normalize.Lookup(raw, itemsPath)
	arr, isArr := found.([]any)
	if !ok || !isArr {
		return nil, fmt.Errorf("%w: %s: no item array at %q", ErrSourceUnavailable, name, itemsPath)
	}
	items := make([]map[string]any, 0, len(arr))
	for _, it := range arr {
		if m, ok := it.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items, nil
}

// redact drops the query string from URL errors so API keys passed as
// query parameters never reach the logs.
func redact(err error) string {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err.Error()
	}
	u, perr := url.Parse(ue.URL)
	if perr != nil {
		return ue.Err.Error()
	}
	u.RawQuery = ""
	clean := *ue
	clean.URL = u.String()
	return clean.Error()
}

func setUserAgent(h http.Header, ua string) http.Header {
	if ua != "" {
		h.Set("User-Agent", ua)
	}
	return h
}
