package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/megamp15/Space-Images-Dataset-Generator/internal/model"
)

// CSVHeader is the column order of the tabular export. There is no index
// column; id identifies the row.
var CSVHeader = []string{"id", "imageURL", "description", "date", "metadata"}

// JSONToCSV re-reads the JSON dataset at jsonPath and writes it as CSV to
// csvPath. It returns the number of rows written.
func JSONToCSV(jsonPath, csvPath string) (int, error) {
	records, err := ReadJSON(jsonPath)
	if err != nil {
		return 0, err
	}
	data, err := EncodeCSV(records)
	if err != nil {
		return 0, err
	}
	if err := writeFile(csvPath, data); err != nil {
		return 0, fmt.Errorf("%w: write %s: %v", ErrExport, csvPath, err)
	}
	return len(records), nil
}

// EncodeCSV renders records with CSVHeader. Metadata is a compact JSON
// object with sorted keys.
func EncodeCSV(records []model.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(CSVHeader); err != nil {
		return nil, fmt.Errorf("%w: csv header: %v", ErrExport, err)
	}
	for _, r := range records {
		meta, err := marshalMetadata(r.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: metadata of id %d: %v", ErrExport, r.ID, err)
		}
		row := []string{strconv.Itoa(r.ID), r.ImageURL, r.Description, r.Date, meta}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("%w: csv row %d: %v", ErrExport, r.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("%w: csv: %v", ErrExport, err)
	}
	return buf.Bytes(), nil
}

func marshalMetadata(m map[string]any) (string, error) {
	if m == nil {
		m = map[string]any{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
