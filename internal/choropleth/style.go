// Package choropleth resolves per-feature fill and border styles for
// choropleth map layers from a classification context.
package choropleth

// Style attribute keys understood by Leaflet path renderers.
const (
	KeyFillColor   = "fillColor"
	KeyFillOpacity = "fillOpacity"
	KeyWeight      = "weight"
	KeyColor       = "color"
	KeyOpacity     = "opacity"
)

// Fixed style values applied by Resolve.
const (
	NoDataColor   = "#d3d3d3"
	NoDataOpacity = 0.3

	ClassifiedOpacity = 0.7

	BorderWeight  = 2
	BorderColor   = "#333"
	BorderOpacity = 1
)

// ColorPropNone disables data coloring for a layer.
const ColorPropNone = "none"

// ColorPropDelta names the year-over-year change attribute, which buckets
// with a default index of 0 and never draws a border override.
const ColorPropDelta = "delta"

// Style is a flat mapping of path style attributes.
type Style map[string]any

// RegionsStyle is the base style used when a hideout carries none.
var RegionsStyle = Style{
	"weight":      2,
	"opacity":     1,
	"color":       "darkblue",
	"dashArray":   "3",
	"fillOpacity": 0.4,
	"fillColor":   "lightblue",
}

// Clone returns a shallow copy of s. The copy is never nil.
func (s Style) Clone() Style {
	out := make(Style, len(s)+5)
	for k, v := range s {
		out[k] = v
	}
	return out
}

// with returns a copy of s with fill attributes overwritten.
func (s Style) with(fillColor string, fillOpacity float64) Style {
	out := s.Clone()
	out[KeyFillColor] = fillColor
	out[KeyFillOpacity] = fillOpacity
	return out
}

// bordered sets the dark outline drawn around classified features.
func (s Style) bordered() Style {
	s[KeyWeight] = BorderWeight
	s[KeyColor] = BorderColor
	s[KeyOpacity] = BorderOpacity
	return s
}

// FillColor returns the resolved fill color, if any.
func (s Style) FillColor() (string, bool) {
	c, ok := s[KeyFillColor].(string)
	return c, ok
}
