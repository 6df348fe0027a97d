package postprocess

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/megamp15/Space-Images-Dataset-Generator/internal/config"
	"github.com/megamp15/Space-Images-Dataset-Generator/internal/model"
)

// Engine enriches records with metadata derived from keyword, regex and
// mapping rules, and optionally strips markup from descriptions. It never
// changes ImageURL or ID.
type Engine struct {
	strip *bluemonday.Policy
	kw    []keywordRule
	regs  []compiledRegex
	maps  []mapRule
}

type keywordRule struct {
	words    []string
	metadata map[string]string
}

type compiledRegex struct {
	field    string
	re       *regexp.Regexp
	metadata map[string]string
}

type mapRule struct {
	field   string
	outKey  string
	mapping map[string]string
}

// New compiles cfg. Blank rules are skipped; an invalid expression is an
// error.
func New(cfg config.PostProcessConfig) (*Engine, error) {
	eng := &Engine{}
	if cfg.StripHTML {
		eng.strip = bluemonday.StrictPolicy()
	}
	for _, kr := range cfg.Keywords {
		words := make([]string, 0, len(kr.When))
		for _, w := range kr.When {
			if s := strings.TrimSpace(w); s != "" {
				words = append(words, strings.ToLower(s))
			}
		}
		if len(words) == 0 {
			continue
		}
		eng.kw = append(eng.kw, keywordRule{words: words, metadata: kr.Metadata})
	}
	for _, rr := range cfg.Regex {
		if strings.TrimSpace(rr.Field) == "" || strings.TrimSpace(rr.Expr) == "" {
			continue
		}
		re, err := regexp.Compile(rr.Expr)
		if err != nil {
			return nil, fmt.Errorf("postprocess regex %q: %w", rr.Expr, err)
		}
		eng.regs = append(eng.regs, compiledRegex{field: rr.Field, re: re, metadata: rr.Metadata})
	}
	for _, mr := range cfg.Maps {
		if strings.TrimSpace(mr.Field) == "" || len(mr.Mapping) == 0 {
			continue
		}
		out := mr.OutKey
		if out == "" {
			out = strings.TrimPrefix(mr.Field, "metadata.")
		}
		eng.maps = append(eng.maps, mapRule{field: mr.Field, outKey: out, mapping: mr.Mapping})
	}
	return eng, nil
}

// Empty reports whether Apply would leave every record untouched.
func (e *Engine) Empty() bool {
	return e == nil || (e.strip == nil && len(e.kw) == 0 && len(e.regs) == 0 && len(e.maps) == 0)
}

// Apply runs the rules over rec in order: HTML stripping, keywords, regex,
// maps. Later rules see the metadata written by earlier ones.
func (e *Engine) Apply(rec model.Record) model.Record {
	if e.Empty() {
		return rec
	}
	if rec.Metadata == nil {
		rec.Metadata = make(map[string]any, 4)
	}

	if e.strip != nil && rec.Description != "" {
		rec.Description = strings.TrimSpace(html.UnescapeString(e.strip.Sanitize(rec.Description)))
	}

	// keyword rules: all words must appear in title or description
	titleLC := strings.ToLower(field(&rec, "title"))
	descLC := strings.ToLower(rec.Description)
	for _, kr := range e.kw {
		matched := true
		for _, w := range kr.words {
			if !strings.Contains(titleLC, w) && !strings.Contains(descLC, w) {
				matched = false
				break
			}
		}
		if matched {
			setAll(rec.Metadata, kr.metadata)
		}
	}

	for _, rr := range e.regs {
		if val := field(&rec, rr.field); val != "" && rr.re.MatchString(val) {
			setAll(rec.Metadata, rr.metadata)
		}
	}

	for _, mr := range e.maps {
		val := field(&rec, mr.field)
		if val == "" {
			continue
		}
		if mapped, ok := mr.mapping[val]; ok {
			rec.Metadata[mr.outKey] = mapped
		}
	}
	return rec
}

// field resolves a rule field name against rec. Unknown names are looked
// up in metadata, with or without the "metadata." prefix.
func field(rec *model.Record, name string) string {
	switch strings.ToLower(name) {
	case "imageurl", "url":
		return rec.ImageURL
	case "description":
		return rec.Description
	case "date":
		return rec.Date
	}
	v, ok := rec.Metadata[strings.TrimPrefix(name, "metadata.")]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func setAll(dst map[string]any, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}
