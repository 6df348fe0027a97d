package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type CommonHTTP struct {
	Timeout   time.Duration `yaml:"timeout"` // per request, default 30s
	UserAgent string        `yaml:"user_agent"`
}

type JWSTConfig struct {
	BaseURL string `yaml:"base_url"` // https://api.jwstapi.com
	APIKey  string `yaml:"api_key"`  // sent as X-API-KEY
	Amount  int    `yaml:"amount"`   // records to request, 0 disables the source
}

type NASAImagesConfig struct {
	BaseURL     string   `yaml:"base_url"` // https://images-api.nasa.gov
	Amount      int      `yaml:"amount"`   // requested per search term
	SearchTerms []string `yaml:"search_terms"`
}

type APODConfig struct {
	BaseURL string `yaml:"base_url"` // https://api.nasa.gov
	APIKey  string `yaml:"api_key"`  // api.nasa.gov key, DEMO_KEY works with low limits
	Amount  int    `yaml:"amount"`
}

type SourcesConfig struct {
	JWST       JWSTConfig       `yaml:"jwst"`
	NASAImages NASAImagesConfig `yaml:"nasa_images"`
	APOD       APODConfig       `yaml:"apod"`
}

type ImagesConfig struct {
	Download     bool          `yaml:"download"`
	RemoveFailed bool          `yaml:"remove_failed"` // drop records whose image could not be saved
	Clear        bool          `yaml:"clear"`         // empty Dir before downloading
	Dir          string        `yaml:"dir"`
	ClearPattern string        `yaml:"clear_pattern"` // glob relative to Dir, default "*"
	Workers      int           `yaml:"workers"`       // concurrent downloads, default 1
	Quality      int           `yaml:"quality"`       // JPEG quality 1-100, default 75
	Timeout      time.Duration `yaml:"timeout"`
}

type OutputConfig struct {
	JSONPath   string `yaml:"json_path"`
	CSVPath    string `yaml:"csv_path"`
	SQLitePath string `yaml:"sqlite_path"` // optional
}

type LokiConfig struct {
	URL      string        `yaml:"url"`       // http://loki:3100
	TenantID string        `yaml:"tenant_id"` // optional multi-tenancy
	Job      string        `yaml:"job"`       // label value, default: space-images
	Timeout  time.Duration `yaml:"timeout"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // node_exporter textfile collector target
	PushURL  string `yaml:"push_url"` // Pushgateway base URL
	Job      string `yaml:"job"`
	Listen   string `yaml:"listen"` // serve /metrics during the run, e.g. ":9108"
}

type DedupConfig struct {
	Enable bool `yaml:"enable"` // drop repeated image URLs within one run
}

type KeywordRule struct {
	When     []string          `yaml:"when"`     // substrings (case-insensitive) that must all appear in title/description
	Metadata map[string]string `yaml:"metadata"` // metadata to add when matched
}

type RegexRule struct {
	Field    string            `yaml:"field"` // imageURL|description|date|metadata.<key>
	Expr     string            `yaml:"expr"`
	Metadata map[string]string `yaml:"metadata"`
}

type MapRule struct {
	Field   string            `yaml:"field"`   // e.g. metadata.mission
	Mapping map[string]string `yaml:"mapping"` // e.g. "jwst":"JWST"
	OutKey  string            `yaml:"out_key"` // metadata key to write
}

type PostProcessConfig struct {
	StripHTML bool          `yaml:"strip_html"`
	Keywords  []KeywordRule `yaml:"keywords"`
	Regex     []RegexRule   `yaml:"regex"`
	Maps      []MapRule     `yaml:"maps"`
}

type Config struct {
	DevMode bool              `yaml:"dev_mode"`
	HTTP    CommonHTTP        `yaml:"http"`
	Sources SourcesConfig     `yaml:"sources"`
	Images  ImagesConfig      `yaml:"images"`
	Output  OutputConfig      `yaml:"output"`
	Dedup   DedupConfig       `yaml:"dedup"`
	Post    PostProcessConfig `yaml:"postprocess"`
	Loki    LokiConfig        `yaml:"loki"`
	Metrics MetricsConfig     `yaml:"metrics"`
}

// Default returns the configuration used when neither a file nor the
// environment says otherwise.
func Default() Config {
	var c Config
	c.Sources.JWST.Amount = 10
	c.Sources.NASAImages.Amount = 10
	c.Sources.APOD.Amount = 10
	c.Sources.NASAImages.SearchTerms = []string{"images"}
	c.applyDefaults()
	return c
}

// Load reads the YAML file at path on top of Default. An empty path skips
// the file.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	c.applyDefaults()
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = 30 * time.Second
	}
	if c.Sources.JWST.BaseURL == "" {
		c.Sources.JWST.BaseURL = "https://api.jwstapi.com"
	}
	if c.Sources.NASAImages.BaseURL == "" {
		c.Sources.NASAImages.BaseURL = "https://images-api.nasa.gov"
	}
	if c.Sources.APOD.BaseURL == "" {
		c.Sources.APOD.BaseURL = "https://api.nasa.gov"
	}
	if c.Images.Dir == "" {
		c.Images.Dir = "images"
	}
	if c.Images.ClearPattern == "" {
		c.Images.ClearPattern = "*"
	}
	if c.Images.Workers == 0 {
		c.Images.Workers = 1
	}
	if c.Images.Quality == 0 {
		c.Images.Quality = 75
	}
	if c.Images.Timeout == 0 {
		c.Images.Timeout = 60 * time.Second
	}
	if c.Output.JSONPath == "" {
		c.Output.JSONPath = "dataset.json"
	}
	if c.Output.CSVPath == "" {
		c.Output.CSVPath = "dataset.csv"
	}
	if c.Loki.Job == "" {
		c.Loki.Job = "space-images"
	}
	if c.Loki.Timeout == 0 {
		c.Loki.Timeout = 10 * time.Second
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = "space_images"
	}
}

// ApplyEnv overrides c with the recognised environment variables, read
// through lookup (os.LookupEnv in production). Unparseable values keep
// the current setting and are reported together in the returned error.
func ApplyEnv(c *Config, lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = strings.EqualFold(strings.TrimSpace(v), "true")
		}
	}
	integer := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}

	boolean("DEV_MODE", &c.DevMode)
	str("JWST_API_KEY", &c.Sources.JWST.APIKey)
	str("NASA_APIs_KEY", &c.Sources.APOD.APIKey)
	integer("JWST_API_AMOUNT", &c.Sources.JWST.Amount)
	integer("NASA_API_AMOUNT", &c.Sources.NASAImages.Amount)
	integer("APOD_API_AMOUNT", &c.Sources.APOD.Amount)
	if v, ok := lookup("NASA_API_SEARCH_TERMS"); ok && strings.TrimSpace(v) != "" {
		var terms []string
		if err := json.Unmarshal([]byte(v), &terms); err != nil {
			errs = append(errs, fmt.Errorf("NASA_API_SEARCH_TERMS: expected a JSON array of strings: %w", err))
		} else {
			c.Sources.NASAImages.SearchTerms = terms
		}
	}
	boolean("DOWNLOAD_IMAGES", &c.Images.Download)
	boolean("REMOVE_NON_DOWNLOADABLE_IMAGES", &c.Images.RemoveFailed)
	boolean("CLEAR_IMAGES_FOLDER", &c.Images.Clear)

	return errors.Join(errs...)
}

// Validate rejects settings no component can honour.
func (c Config) Validate() error {
	var errs []error
	for name, n := range map[string]int{
		"sources.jwst.amount":        c.Sources.JWST.Amount,
		"sources.nasa_images.amount": c.Sources.NASAImages.Amount,
		"sources.apod.amount":        c.Sources.APOD.Amount,
	} {
		if n < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative (got %d)", name, n))
		}
	}
	if c.Images.Workers < 0 {
		errs = append(errs, fmt.Errorf("images.workers must not be negative (got %d)", c.Images.Workers))
	}
	if c.Images.Quality < 1 || c.Images.Quality > 100 {
		errs = append(errs, fmt.Errorf("images.quality must be within 1-100 (got %d)", c.Images.Quality))
	}
	if c.Output.JSONPath == c.Output.CSVPath {
		errs = append(errs, errors.New("output.json_path and output.csv_path must differ"))
	}
	return errors.Join(errs...)
}
