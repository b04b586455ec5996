package geostyle

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/choropleth"
)

// ErrUnknownLayer is returned for layer names missing from the registry.
var ErrUnknownLayer = eris.New("geostyle: unknown layer")

// Layer pairs a feature source file with the hideout that styles it.
type Layer struct {
	Source  string `json:"source"`
	Hideout string `json:"hideout"`
	// Detail thins polygon rings before styling; 0 or 1 keeps full detail.
	Detail float64 `json:"detail,omitempty"`
	// Delta, when set, derives the change property before styling.
	Delta *Delta `json:"delta,omitempty"`
}

// Registry renders named layers to styled GeoJSON. Layer names are case
// insensitive.
type Registry struct {
	layers map[string]Layer
	styler *Styler
}

// NewRegistry creates a Registry over the given layers.
func NewRegistry(layers map[string]Layer, styler *Styler) *Registry {
	r := &Registry{layers: make(map[string]Layer, len(layers)), styler: styler}
	for name, l := range layers {
		r.layers[layerKey(name)] = l
	}
	return r
}

// layerKey folds a layer name to its registry key. Config map keys arrive
// lowercased, so URLs are matched the same way.
func layerKey(name string) string { return strings.ToLower(name) }

// Names returns the registered layer names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.layers))
	for name := range r.layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.layers[layerKey(name)]
	return ok
}

// Revision fingerprints the size and modification time of the layer's
// source, its shapefile attribute table and its hideout.
func (r *Registry) Revision(name string) (Revision, error) {
	layer, ok := r.layers[layerKey(name)]
	if !ok {
		return "", ErrUnknownLayer
	}

	paths := []string{layer.Source, layer.Hideout}
	if ext := filepath.Ext(layer.Source); strings.EqualFold(ext, ".shp") {
		paths = append(paths, strings.TrimSuffix(layer.Source, ext)+".dbf")
	}

	var b strings.Builder
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return "", eris.Wrapf(err, "geostyle: stat %s", p)
		}
		fmt.Fprintf(&b, "%d.%d;", fi.Size(), fi.ModTime().UnixNano())
	}
	return Revision(b.String()), nil
}

// Render loads the layer's source and hideout, styles every feature and
// returns the encoded collection.
func (r *Registry) Render(ctx context.Context, name string) ([]byte, Summary, error) {
	layer, ok := r.layers[layerKey(name)]
	if !ok {
		return nil, Summary{}, ErrUnknownLayer
	}

	log := zap.L().With(zap.String("component", "geostyle.registry"), zap.String("layer", name))

	h, err := choropleth.LoadHideout(layer.Hideout)
	if err != nil {
		return nil, Summary{}, eris.Wrapf(err, "geostyle: layer %s", name)
	}
	if err := h.Validate(); err != nil {
		log.Warn("hideout has problems, styling anyway", zap.Error(err))
	}

	fc, err := LoadSource(layer.Source)
	if err != nil {
		return nil, Summary{}, eris.Wrapf(err, "geostyle: layer %s", name)
	}

	if removed := Simplify(fc, layer.Detail); removed > 0 {
		log.Debug("simplified geometry", zap.Float64("detail", layer.Detail), zap.Int("vertices_removed", removed))
	}
	if layer.Delta != nil {
		if err := layer.Delta.Validate(); err != nil {
			return nil, Summary{}, eris.Wrapf(err, "geostyle: layer %s", name)
		}
		missing := layer.Delta.Apply(fc)
		log.Debug("derived delta", zap.String("mode", string(layer.Delta.Mode)), zap.Int("missing", missing))
	}

	sum, err := r.styler.Apply(ctx, fc, h)
	if err != nil {
		return nil, Summary{}, eris.Wrapf(err, "geostyle: layer %s", name)
	}

	var buf bytes.Buffer
	if err := EncodeCollection(&buf, fc); err != nil {
		return nil, Summary{}, eris.Wrapf(err, "geostyle: layer %s", name)
	}

	log.Info("layer rendered",
		zap.Int("features", sum.Features),
		zap.Int("no_data", sum.NoData),
		zap.Int("bytes", buf.Len()),
	)
	return buf.Bytes(), sum, nil
}
