package choropleth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHideout_YAML(t *testing.T) {
	data := `
classes: [0, 10, 20, 30, 40, 50, 100]
colorscale: ["#f7fbff", "#c6dbef", "#6baed6", "#3182bd", "#08519c", "#08306b"]
colorProp: salary
style:
  weight: 1
  color: white
`
	h, err := ParseHideout([]byte(data), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 10, 20, 30, 40, 50, 100}, h.Classes)
	assert.Len(t, h.Colorscale, 6)
	assert.Equal(t, "salary", h.ColorProp)
	assert.False(t, h.Categorical)
	assert.Equal(t, 1, h.Style["weight"])
	assert.NoError(t, h.Validate())

	s := Resolve(map[string]any{"salary": 35}, h)
	assert.Equal(t, "#3182bd", s[KeyFillColor])
}

func TestParseHideout_JSONCategorical(t *testing.T) {
	data := `{
		"classes": [0, 1, 2, 3, 4, 5],
		"colorscale": ["#ff6b6b", "#4ecdc4", "#45b7d1", "#96ceb4", "#feca57"],
		"colorProp": "dominant_sector",
		"categorical": true,
		"labels": ["Mining", "Manufacturing", "Agriculture", "Services", "Diversified"]
	}`
	h, err := ParseHideout([]byte(data), FormatJSON)
	require.NoError(t, err)

	assert.True(t, h.Categorical)
	assert.Len(t, h.Labels, 5)
	assert.Equal(t, RegionsStyle, h.Style, "missing style defaults to the regions style")
	assert.NoError(t, h.Validate())

	s := Resolve(map[string]any{"dominant_sector": "Services"}, h)
	assert.Equal(t, "#96ceb4", s[KeyFillColor])
	assert.Equal(t, "darkblue", RegionsStyle[KeyColor], "resolving never touches the shared default")
}

func TestParseHideout_DefaultStyleIsCopy(t *testing.T) {
	h, err := ParseHideout([]byte(`colorProp: none`), FormatYAML)
	require.NoError(t, err)

	h.Style["weight"] = 10
	assert.Equal(t, 2, RegionsStyle["weight"])
}

func TestParseHideout_Errors(t *testing.T) {
	_, err := ParseHideout([]byte(`{"classes": "nope"}`), FormatJSON)
	assert.Error(t, err)

	_, err = ParseHideout([]byte("classes: [a: b"), FormatYAML)
	assert.Error(t, err)

	_, err = ParseHideout([]byte(`{}`), "toml")
	assert.ErrorContains(t, err, "unknown hideout format")
}

func TestLoadHideout(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "population.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("colorProp: population\nclasses: [0, 100]\ncolorscale: [\"#c6e48b\"]\n"), 0o644))

	jsonPath := filepath.Join(dir, "delta.JSON")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"colorProp": "delta", "classes": [-10, 0, 10], "colorscale": ["#ff0000", "#00ff00"]}`), 0o644))

	h, err := LoadHideout(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "population", h.ColorProp)

	h, err = LoadHideout(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, ColorPropDelta, h.ColorProp)
	assert.Equal(t, []float64{-10, 0, 10}, h.Classes)

	_, err = LoadHideout(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestHideoutValidate(t *testing.T) {
	tests := []struct {
		name    string
		hideout Hideout
		wantErr string
	}{
		{
			name:    "valid numeric",
			hideout: Hideout{ColorProp: "gdp", Classes: []float64{0, 1}, Colorscale: []string{"a"}},
		},
		{
			name:    "none needs no colors",
			hideout: Hideout{ColorProp: ColorPropNone},
		},
		{
			name:    "empty colorProp",
			hideout: Hideout{Colorscale: []string{"a"}},
			wantErr: "colorProp is empty",
		},
		{
			name:    "descending classes",
			hideout: Hideout{ColorProp: "gdp", Classes: []float64{0, 10, 5}, Colorscale: []string{"a"}},
			wantErr: "classes not ascending at index 2",
		},
		{
			name:    "categorical without labels",
			hideout: Hideout{ColorProp: "sector", Categorical: true, Colorscale: []string{"a"}},
			wantErr: "categorical without labels",
		},
		{
			name:    "more labels than colors",
			hideout: Hideout{ColorProp: "sector", Categorical: true, Labels: []any{"a", "b"}, Colorscale: []string{"x"}},
			wantErr: "2 labels but only 1 colors",
		},
		{
			name:    "no colorscale",
			hideout: Hideout{ColorProp: "gdp", Classes: []float64{0, 1}},
			wantErr: "colorscale is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.hideout.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
