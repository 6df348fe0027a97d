// Package normalize maps raw source items onto model.Record.
//
// Every source is described by an ordered table of extraction rules. A rule
// copies the value found at a dot-notation path into one canonical slot;
// numeric path segments index into arrays. Missing paths and JSON nulls
// leave the slot at its default, so normalization never fails.
package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/megamp15/Space-Images-Dataset-Generator/internal/model"
)

// Slot names the record field a rule writes to.
type Slot string

const (
	ImageURL    Slot = "imageURL"
	Description Slot = "description"
	Date        Slot = "date"

	metaPrefix = "metadata."
)

// Meta returns the slot for the metadata key k.
func Meta(k string) Slot { return Slot(metaPrefix + k) }

// Rule copies the value at Path into To.
type Rule struct {
	Path string
	To   Slot
}

// Func normalizes one raw item.
type Func func(item map[string]any) model.Record

// JWSTRules maps items of the JWST API "body" array.
//
// The mission key reads details.mission. An older revision of this mapping
// wrote the program value into metadata.mission.
var JWSTRules = []Rule{
	{Path: "location", To: ImageURL},
	{Path: "details.description", To: Description},
	{Path: "id", To: Meta("id_")},
	{Path: "program", To: Meta("program")},
	{Path: "details.mission", To: Meta("mission")},
	{Path: "details.instruments", To: Meta("instruments")},
}

// NASAImagesRules maps items of the NASA Image and Video Library
// collection.items array.
var NASAImagesRules = []Rule{
	{Path: "links.0.href", To: ImageURL},
	{Path: "data.0.title", To: Meta("title")},
	{Path: "data.0.location", To: Meta("location")},
	{Path: "data.0.nasa_id", To: Meta("nasa_id")},
	{Path: "data.0.description", To: Description},
	{Path: "data.0.date_created", To: Date},
	// link to the asset manifest with the other renditions
	{Path: "href", To: Meta("other_links")},
}

// APODRules maps entries of the APOD response array.
var APODRules = []Rule{
	{Path: "url", To: ImageURL},
	{Path: "title", To: Meta("title")},
	{Path: "copyright", To: Meta("copyright")},
	{Path: "explanation", To: Description},
	{Path: "date", To: Date},
}

// JWST normalizes one item of the JWST API.
func JWST(item map[string]any) model.Record { return Apply(item, JWSTRules) }

// NASAImages normalizes one item of the NASA Image and Video Library search.
func NASAImages(item map[string]any) model.Record { return Apply(item, NASAImagesRules) }

// APOD normalizes one Astronomy Picture of the Day entry.
func APOD(item map[string]any) model.Record { return Apply(item, APODRules) }

// Apply runs rules over item in order and returns the resulting record.
func Apply(item map[string]any, rules []Rule) model.Record {
	rec := model.NewRecord()
	for _, r := range rules {
		v, ok := Lookup(item, r.Path)
		if !ok {
			continue
		}
		switch r.To {
		case ImageURL:
			if s, ok := asString(v); ok {
				rec.ImageURL = s
			}
		case Description:
			if s, ok := asString(v); ok {
				rec.Description = s
			}
		case Date:
			if s, ok := asString(v); ok {
				rec.Date = s
			}
		default:
			if k, found := strings.CutPrefix(string(r.To), metaPrefix); found && k != "" {
				rec.Metadata[k] = v
			}
		}
	}
	return rec
}

// Lookup walks a dot-notation path into v. It reports false when any
// segment is missing or the final value is null.
func Lookup(v any, path string) (any, bool) {
	if path == "" {
		return v, v != nil
	}
	current := v
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			current = node[i]
		default:
			return nil, false
		}
	}
	return current, current != nil
}

// asString formats scalars. Objects and arrays have no string form and
// report false.
func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case map[string]any, []any:
		return "", false
	default:
		return fmt.Sprint(s), true
	}
}
