package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/choropleth/internal/config"
	"github.com/sells-group/choropleth/internal/geostyle"
)

const testRegionsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "North", "population": 15},
     "geometry": {"type": "Point", "coordinates": [1, 1]}},
    {"type": "Feature", "properties": {"name": "South", "population": null},
     "geometry": {"type": "Point", "coordinates": [2, 2]}},
    {"type": "Feature", "properties": {"name": "East", "population": 40},
     "geometry": {"type": "Point", "coordinates": [3, 3]}}
  ]
}`

func writeSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regions.geojson")
	require.NoError(t, os.WriteFile(path, []byte(testRegionsGeoJSON), 0o644))
	return path
}

func TestRunStyle_Stdout(t *testing.T) {
	opts := styleOptions{
		Input:    writeSource(t),
		Hideout:  writeHideout(t, testHideoutYAML),
		Property: "style",
		Workers:  2,
	}

	var out bytes.Buffer
	sum, err := runStyle(context.Background(), opts, &out)
	require.NoError(t, err)
	assert.Equal(t, geostyle.Summary{Features: 3, NoData: 1}, sum)

	fc, err := geostyle.DecodeCollection(&out)
	require.NoError(t, err)
	require.Len(t, fc.Features, 3)

	north := fc.Features[0].Properties["style"].(map[string]any)
	assert.Equal(t, "#7bc96f", north["fillColor"])

	east := fc.Features[2].Properties["style"].(map[string]any)
	assert.Equal(t, "#239a3b", east["fillColor"])

	south := fc.Features[1].Properties["style"].(map[string]any)
	assert.Equal(t, "#d3d3d3", south["fillColor"])
}

func TestRunStyle_OutputFile(t *testing.T) {
	output := filepath.Join(t.TempDir(), "styled.geojson")
	opts := styleOptions{
		Input:    writeSource(t),
		Hideout:  writeHideout(t, testHideoutYAML),
		Output:   output,
		Property: "fill",
		Workers:  1,
	}

	var stdout bytes.Buffer
	_, err := runStyle(context.Background(), opts, &stdout)
	require.NoError(t, err)
	assert.Empty(t, stdout.String())

	f, err := os.Open(output)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	fc, err := geostyle.DecodeCollection(f)
	require.NoError(t, err)
	assert.Contains(t, fc.Features[0].Properties, "fill")
	assert.NotContains(t, fc.Features[0].Properties, "style")
}

func TestRunStyle_Errors(t *testing.T) {
	hideout := writeHideout(t, testHideoutYAML)
	source := writeSource(t)

	t.Run("missing hideout", func(t *testing.T) {
		_, err := runStyle(context.Background(), styleOptions{
			Input: source, Hideout: filepath.Join(t.TempDir(), "nope.yaml"), Property: "style", Workers: 1,
		}, &bytes.Buffer{})
		assert.Error(t, err)
	})

	t.Run("missing input", func(t *testing.T) {
		_, err := runStyle(context.Background(), styleOptions{
			Input: filepath.Join(t.TempDir(), "nope.geojson"), Hideout: hideout, Property: "style", Workers: 1,
		}, &bytes.Buffer{})
		assert.Error(t, err)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := runStyle(ctx, styleOptions{
			Input: source, Hideout: hideout, Property: "style", Workers: 1,
		}, &bytes.Buffer{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func styleTestConfig() *config.Config {
	return &config.Config{Style: config.StyleConfig{Property: "style", Workers: 4}}
}

func TestMergeStyleOptions_FillsFromConfig(t *testing.T) {
	opts, err := mergeStyleOptions(styleTestConfig(), styleOptions{Input: "in.geojson"})
	require.NoError(t, err)
	assert.Equal(t, "style", opts.Property)
	assert.Equal(t, 4, opts.Workers)

	opts, err = mergeStyleOptions(styleTestConfig(), styleOptions{Property: "fill", Workers: 8})
	require.NoError(t, err)
	assert.Equal(t, "fill", opts.Property)
	assert.Equal(t, 8, opts.Workers)
}

func TestMergeStyleOptions_ValidatesFlags(t *testing.T) {
	tests := []struct {
		name string
		opts styleOptions
		want string
	}{
		{name: "too many workers", opts: styleOptions{Workers: 500}, want: "style.workers must be between 1 and 64"},
		{name: "negative workers", opts: styleOptions{Workers: -1}, want: "style.workers must be between 1 and 64"},
		{name: "detail above one", opts: styleOptions{Detail: 1.5}, want: "detail must be between 0 and 1"},
		{name: "delta without compare", opts: styleOptions{DeltaCurrent: "pop2020"}, want: "compare property is empty"},
		{name: "unknown delta mode", opts: styleOptions{DeltaCurrent: "a", DeltaCompare: "b", DeltaMode: "ratio"}, want: "unknown mode ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := styleTestConfig()
			_, err := mergeStyleOptions(c, tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, 4, c.Style.Workers, "config must not change")
		})
	}
}

func TestRunStyle_DeltaAndDetail(t *testing.T) {
	source := filepath.Join(t.TempDir(), "change.geojson")
	require.NoError(t, os.WriteFile(source, []byte(`{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"pop2020": 180, "pop2010": 100},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[2,0],[2,1],[0,0]]]}},
    {"type": "Feature", "properties": {"pop2020": 90, "pop2010": null},
     "geometry": {"type": "Point", "coordinates": [5, 5]}}
  ]
}`), 0o644))
	hideout := writeHideout(t, `
colorProp: delta
classes: [-50, 0, 50]
colorscale: [red, white, green]
`)

	var out bytes.Buffer
	sum, err := runStyle(context.Background(), styleOptions{
		Input:        source,
		Hideout:      hideout,
		Property:     "style",
		Workers:      1,
		Detail:       0.5,
		DeltaCurrent: "pop2020",
		DeltaCompare: "pop2010",
		DeltaMode:    "percent",
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, geostyle.Summary{Features: 2, NoData: 1}, sum)

	fc, err := geostyle.DecodeCollection(&out)
	require.NoError(t, err)
	assert.Equal(t, 80.0, fc.Features[0].Properties["delta"])
	assert.Equal(t, "green", fc.Features[0].Properties["style"].(map[string]any)["fillColor"])
	assert.Nil(t, fc.Features[1].Properties["delta"])
	// Five vertices thinned at step two keep indices 0, 2 and 4.
	assert.Len(t, fc.Features[0].Geometry.FlatCoords(), 6)
}
