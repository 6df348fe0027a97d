package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/megamp15/Space-Images-Dataset-Generator/internal/config"
	"github.com/megamp15/Space-Images-Dataset-Generator/internal/model"
	"github.com/megamp15/Space-Images-Dataset-Generator/internal/util"
)

type lokiSink struct {
	cfg    config.LokiConfig
	runID  string
	client *http.Client
	now    func() time.Time
}

// NewLoki pushes each record as one JSON log line to a Loki stream
// labelled {job, run}.
func NewLoki(cfg config.LokiConfig, runID string) Sink {
	to := cfg.Timeout
	if to == 0 {
		to = 10 * time.Second
	}
	return &lokiSink{cfg: cfg, runID: runID, client: util.NewHTTPClient(to), now: time.Now}
}

func (l *lokiSink) Name() string { return "loki" }

func (l *lokiSink) Export(ctx context.Context, records []model.Record) error {
	if len(records) == 0 {
		return nil
	}

	type stream struct {
		Stream map[string]string `json:"stream"`
		Values [][2]string       `json:"values"`
	}
	s := stream{
		Stream: map[string]string{"job": l.cfg.Job, "run": l.runID},
		Values: make([][2]string, 0, len(records)),
	}
	// Loki rejects out-of-order entries within a stream; offset each
	// record by one nanosecond to keep dataset order.
	base := l.now().UnixNano()
	for i, r := range records {
		line, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("loki: encode id %d: %w", r.ID, err)
		}
		s.Values = append(s.Values, [2]string{strconv.FormatInt(base+int64(i), 10), string(line)})
	}
	body, err := json.Marshal(struct {
		Streams []stream `json:"streams"`
	}{Streams: []stream{s}})
	if err != nil {
		return fmt.Errorf("loki: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(l.cfg.URL, "/")+"/loki/api/v1/push", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if l.cfg.TenantID != "" {
		req.Header.Set("X-Scope-OrgID", l.cfg.TenantID)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("loki: push: %w", err)
	}
	if !util.IsSuccess(resp) {
		return fmt.Errorf("loki push failed http %d: %s", resp.StatusCode, util.BodyHead(resp, 512))
	}
	resp.Body.Close()
	return nil
}
