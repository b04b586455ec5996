// Package geostyle applies choropleth styles to GeoJSON feature collections
// and serves styled layers over HTTP.
package geostyle

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/choropleth/internal/choropleth"
)

// DefaultProperty is the feature property that receives the resolved style.
const DefaultProperty = "style"

// DecodeCollection reads a GeoJSON FeatureCollection.
func DecodeCollection(r io.Reader) (*geojson.FeatureCollection, error) {
	var fc geojson.FeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, eris.Wrap(err, "geostyle: decode feature collection")
	}
	return &fc, nil
}

// EncodeCollection writes fc as GeoJSON.
func EncodeCollection(w io.Writer, fc *geojson.FeatureCollection) error {
	data, err := json.Marshal(fc)
	if err != nil {
		return eris.Wrap(err, "geostyle: encode feature collection")
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "geostyle: write feature collection")
	}
	return nil
}

// LoadSource reads features from a shapefile (.shp) or a GeoJSON file.
func LoadSource(path string) (*geojson.FeatureCollection, error) {
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		return ReadShapefile(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geostyle: open %s", path)
	}
	defer func() { _ = f.Close() }()

	fc, err := DecodeCollection(f)
	if err != nil {
		return nil, eris.Wrapf(err, "geostyle: read %s", path)
	}
	return fc, nil
}

// Summary counts the outcome of a styling pass.
type Summary struct {
	Features int `json:"features"`
	NoData   int `json:"no_data"`
}

// Styler attaches resolved styles to features.
type Styler struct {
	property string
	workers  int
}

// NewStyler creates a Styler writing styles under property with up to
// workers concurrent goroutines.
func NewStyler(property string, workers int) *Styler {
	if property == "" {
		property = DefaultProperty
	}
	if workers < 1 {
		workers = 1
	}
	return &Styler{property: property, workers: workers}
}

// Property returns the property key styles are written under.
func (s *Styler) Property() string { return s.property }

// Resolve returns the style for a single feature without modifying it.
func (s *Styler) Resolve(f *geojson.Feature, h *choropleth.Hideout) choropleth.Style {
	if f == nil {
		return choropleth.Resolve(nil, h)
	}
	return choropleth.Resolve(f.Properties, h)
}

// Apply resolves every feature in fc and stores the style in its properties.
// Features are modified in place.
func (s *Styler) Apply(ctx context.Context, fc *geojson.FeatureCollection, h *choropleth.Hideout) (Summary, error) {
	if fc == nil || len(fc.Features) == 0 {
		return Summary{}, nil
	}

	chunk := (len(fc.Features) + s.workers - 1) / s.workers

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	var noData atomic.Int64
	for start := 0; start < len(fc.Features); start += chunk {
		part := fc.Features[start:min(start+chunk, len(fc.Features))]
		g.Go(func() error {
			for _, f := range part {
				if err := gctx.Err(); err != nil {
					return err
				}
				if f == nil {
					continue
				}
				style := choropleth.Resolve(f.Properties, h)
				if c, _ := style.FillColor(); c == choropleth.NoDataColor {
					noData.Add(1)
				}
				if f.Properties == nil {
					f.Properties = make(map[string]any, 1)
				}
				f.Properties[s.property] = map[string]any(style)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Summary{}, eris.Wrap(err, "geostyle: apply styles")
	}

	sum := Summary{Features: len(fc.Features), NoData: int(noData.Load())}
	var colorProp string
	if h != nil {
		colorProp = h.ColorProp
	}
	zap.L().Debug("geostyle: styled collection",
		zap.String("color_prop", colorProp),
		zap.Int("features", sum.Features),
		zap.Int("no_data", sum.NoData),
	)
	return sum, nil
}
