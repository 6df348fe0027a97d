package export

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megamp15/Space-Images-Dataset-Generator/internal/config"
	"github.com/megamp15/Space-Images-Dataset-Generator/internal/model"
)

func sample() []model.Record {
	return []model.Record{
		{ID: 0, ImageURL: "https://jwst/1.jpg", Description: "Carina, \"cliffs\"\nline two", Metadata: map[string]any{
			"id_": "jw1", "program": 2731, "instruments": []any{map[string]any{"instrument": "NIRCAM"}},
		}},
		{ID: 1, ImageURL: "https://nasa/2.jpg?a=1&b=2", Date: "2015-01-05T00:00:00Z", Metadata: map[string]any{
			"title": "<Pillars>",
		}},
		{ID: 2, ImageURL: "https://apod/3.jpg", Metadata: map[string]any{}},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "dataset.json")
	require.NoError(t, WriteJSON(path, sample()))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("[\n  {\n    \"id\": 0,\n    \"imageURL\": ")), string(b[:40]))
	assert.Contains(t, string(b), `"title": "<Pillars>"`, "no HTML escaping")

	var back []map[string]any
	require.NoError(t, json.Unmarshal(b, &back))
	require.Len(t, back, 3)
	assert.ElementsMatch(t, []string{"id", "imageURL", "description", "date", "metadata"}, keys(back[0]))
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestWriteJSON_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.json")
	require.NoError(t, WriteJSON(path, nil))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(b))
}

func TestWriteJSON_Unwritable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	err := WriteJSON(filepath.Join(blocker, "dataset.json"), sample())
	assert.ErrorIs(t, err, ErrExport)
}

func TestJSONToCSV_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	jsonPath, csvPath := filepath.Join(dir, "dataset.json"), filepath.Join(dir, "dataset.csv")
	records := sample()
	require.NoError(t, WriteJSON(jsonPath, records))

	n, err := JSONToCSV(jsonPath, csvPath)
	require.NoError(t, err)
	assert.Equal(t, len(records), n)

	rows := readCSV(t, csvPath)
	require.Len(t, rows, len(records)+1)
	assert.Equal(t, CSVHeader, rows[0])
	for i, r := range records {
		assert.Equal(t, []string{
			[]string{"0", "1", "2"}[i], r.ImageURL, r.Description, r.Date,
		}, rows[i+1][:4])
	}
	assert.Equal(t, `{"id_":"jw1","instruments":[{"instrument":"NIRCAM"}],"program":2731}`, rows[1][4])
	assert.Equal(t, `{"title":"<Pillars>"}`, rows[2][4])
	assert.Equal(t, `{}`, rows[3][4])
}

func TestJSONToCSV_EmptyDataset(t *testing.T) {
	dir := t.TempDir()
	jsonPath, csvPath := filepath.Join(dir, "dataset.json"), filepath.Join(dir, "dataset.csv")
	require.NoError(t, WriteJSON(jsonPath, []model.Record{}))

	n, err := JSONToCSV(jsonPath, csvPath)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, [][]string{CSVHeader}, readCSV(t, csvPath))
}

func TestJSONToCSV_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := JSONToCSV(filepath.Join(dir, "missing.json"), filepath.Join(dir, "out.csv"))
	assert.ErrorIs(t, err, ErrExport)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"not": "an array"}`), 0o644))
	_, err = JSONToCSV(bad, filepath.Join(dir, "out.csv"))
	assert.ErrorIs(t, err, ErrExport)
}

func TestSQLiteSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.sqlite")
	ctx := context.Background()

	require.NoError(t, NewSQLiteSink(path, "run-1").Export(ctx, sample()))
	require.NoError(t, NewSQLiteSink(path, "run-2").Export(ctx, sample()[:1]))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&n))
	assert.Equal(t, 4, n)

	var url, meta string
	require.NoError(t, db.QueryRow(`SELECT image_url, metadata FROM records WHERE run_id = ? AND id = ?`, "run-1", 1).Scan(&url, &meta))
	assert.Equal(t, "https://nasa/2.jpg?a=1&b=2", url)
	assert.JSONEq(t, `{"title": "<Pillars>"}`, meta)

	// same run twice violates the primary key and rolls back
	err = NewSQLiteSink(path, "run-2").Export(ctx, sample())
	assert.Error(t, err)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM records WHERE run_id = 'run-2'`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestLokiSink(t *testing.T) {
	var (
		body   []byte
		tenant string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/loki/api/v1/push", r.URL.Path)
		tenant = r.Header.Get("X-Scope-OrgID")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewLoki(config.LokiConfig{URL: srv.URL + "/", TenantID: "astro", Job: "space-images"}, "run-1")
	s.(*lokiSink).now = func() time.Time { return time.Unix(0, 1000) }
	require.NoError(t, s.Export(context.Background(), sample()))

	var payload struct {
		Streams []struct {
			Stream map[string]string `json:"stream"`
			Values [][2]string       `json:"values"`
		} `json:"streams"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.Len(t, payload.Streams, 1)
	assert.Equal(t, "astro", tenant)
	assert.Equal(t, map[string]string{"job": "space-images", "run": "run-1"}, payload.Streams[0].Stream)
	require.Len(t, payload.Streams[0].Values, 3)
	assert.Equal(t, "1000", payload.Streams[0].Values[0][0])
	assert.Equal(t, "1002", payload.Streams[0].Values[2][0])

	var rec model.Record
	require.NoError(t, json.Unmarshal([]byte(payload.Streams[0].Values[1][1]), &rec))
	assert.Equal(t, 1, rec.ID)
}

func TestLokiSink_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "entry out of order", http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewLoki(config.LokiConfig{URL: srv.URL, Job: "j"}, "r")
	err := s.Export(context.Background(), sample())
	assert.ErrorContains(t, err, "http 400")
	assert.NoError(t, s.Export(context.Background(), nil), "nothing to push")
}
