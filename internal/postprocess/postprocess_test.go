package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megamp15/Space-Images-Dataset-Generator/internal/config"
	"github.com/megamp15/Space-Images-Dataset-Generator/internal/model"
)

func record(desc string, meta map[string]any) model.Record {
	r := model.NewRecord()
	r.ImageURL = "https://x/1.jpg"
	r.Description = desc
	for k, v := range meta {
		r.Metadata[k] = v
	}
	return r
}

func TestEngine_NoRulesIsIdentity(t *testing.T) {
	eng, err := New(config.PostProcessConfig{})
	require.NoError(t, err)
	assert.True(t, eng.Empty())

	in := record("<b>bold</b>", nil)
	assert.Equal(t, in, eng.Apply(in))
}

func TestEngine_StripHTML(t *testing.T) {
	eng, err := New(config.PostProcessConfig{StripHTML: true})
	require.NoError(t, err)

	got := eng.Apply(record(`  Image of <a href="https://nasa.gov">M31</a> &amp; <i>M32</i> `, nil))
	assert.Equal(t, "Image of M31 & M32", got.Description)
	assert.Equal(t, "https://x/1.jpg", got.ImageURL)
}

func TestEngine_Keywords(t *testing.T) {
	eng, err := New(config.PostProcessConfig{Keywords: []config.KeywordRule{
		{When: []string{"Carina", "nebula"}, Metadata: map[string]string{"category": "nebula"}},
		{When: []string{"  "}, Metadata: map[string]string{"never": "set"}},
		{When: []string{"mars"}, Metadata: map[string]string{"planet": "mars"}},
	}})
	require.NoError(t, err)

	got := eng.Apply(record("The Carina region", map[string]any{"title": "Cosmic Cliffs NEBULA"}))
	assert.Equal(t, "nebula", got.Metadata["category"])
	assert.NotContains(t, got.Metadata, "never")
	assert.NotContains(t, got.Metadata, "planet")
}

func TestEngine_RegexAndMaps(t *testing.T) {
	eng, err := New(config.PostProcessConfig{
		Regex: []config.RegexRule{
			{Field: "imageURL", Expr: `\.jpg$`, Metadata: map[string]string{"format": "jpeg"}},
			{Field: "metadata.program", Expr: `^27`, Metadata: map[string]string{"cycle": "1"}},
		},
		Maps: []config.MapRule{
			{Field: "metadata.mission", Mapping: map[string]string{"jwst": "JWST"}, OutKey: "mission_code"},
			{Field: "metadata.format", Mapping: map[string]string{"jpeg": "image/jpeg"}},
		},
	})
	require.NoError(t, err)

	got := eng.Apply(record("", map[string]any{"mission": "jwst", "program": float64(2731)}))
	assert.Equal(t, "1", got.Metadata["cycle"], "numeric metadata is matched as text")
	assert.Equal(t, "JWST", got.Metadata["mission_code"])
	// map without out_key overwrites its own field
	assert.Equal(t, "image/jpeg", got.Metadata["format"])
	assert.Equal(t, "https://x/1.jpg", got.ImageURL)
}

func TestNew_InvalidRegex(t *testing.T) {
	_, err := New(config.PostProcessConfig{Regex: []config.RegexRule{{Field: "description", Expr: "("}}})
	assert.ErrorContains(t, err, "postprocess regex")
}
