package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/megamp15/Space-Images-Dataset-Generator/internal/model"
)

// WriteJSON writes records to path as an array indented with two spaces.
// A nil or empty slice produces "[]".
func WriteJSON(path string, records []model.Record) error {
	if records == nil {
		records = []model.Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("%w: encode json: %v", ErrExport, err)
	}
	if err := writeFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrExport, path, err)
	}
	return nil
}

// ReadJSON reads a dataset written by WriteJSON. Numbers inside metadata
// are kept as json.Number so they are written back unchanged.
func ReadJSON(path string) ([]model.Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrExport, path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var records []model.Record
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrExport, path, err)
	}
	return records, nil
}

// writeFile replaces path atomically.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
