package choropleth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Hideout is the styling context a map layer hands to the resolver
// alongside every feature.
type Hideout struct {
	// Classes are ascending bucket thresholds.
	Classes []float64 `json:"classes" yaml:"classes"`
	// Colorscale holds one color per bucket, or per label in categorical mode.
	Colorscale []string `json:"colorscale" yaml:"colorscale"`
	// Style is the base style every result extends.
	Style Style `json:"style" yaml:"style"`
	// ColorProp is the feature property to read, or "none".
	ColorProp   string `json:"colorProp" yaml:"colorProp"`
	Categorical bool   `json:"categorical" yaml:"categorical"`
	// Labels are category values indexed into Colorscale.
	Labels []any `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// Hideout file formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// LoadHideout reads a hideout from a YAML or JSON file, chosen by extension.
func LoadHideout(path string) (*Hideout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "choropleth: read hideout %s", path)
	}

	format := FormatYAML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = FormatJSON
	}

	h, err := ParseHideout(data, format)
	if err != nil {
		return nil, eris.Wrapf(err, "choropleth: parse hideout %s", path)
	}
	return h, nil
}

// ParseHideout decodes a hideout. A hideout without a style gets RegionsStyle.
func ParseHideout(data []byte, format string) (*Hideout, error) {
	var h Hideout
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &h); err != nil {
			return nil, eris.Wrap(err, "choropleth: decode json hideout")
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &h); err != nil {
			return nil, eris.Wrap(err, "choropleth: decode yaml hideout")
		}
	default:
		return nil, eris.Errorf("choropleth: unknown hideout format %q", format)
	}

	if h.Style == nil {
		h.Style = RegionsStyle.Clone()
	}
	return &h, nil
}

// Validate reports settings that make a layer render as mostly no-data.
// Resolve accepts any hideout, so these are warnings rather than hard errors.
func (h *Hideout) Validate() error {
	var problems []string

	if h.ColorProp == "" {
		problems = append(problems, "colorProp is empty")
	}
	for i := 1; i < len(h.Classes); i++ {
		if h.Classes[i] < h.Classes[i-1] {
			problems = append(problems, fmt.Sprintf("classes not ascending at index %d", i))
			break
		}
	}
	if h.Categorical && len(h.Labels) == 0 {
		problems = append(problems, "categorical without labels")
	}
	if h.Categorical && len(h.Labels) > len(h.Colorscale) {
		problems = append(problems, fmt.Sprintf("%d labels but only %d colors", len(h.Labels), len(h.Colorscale)))
	}
	if !h.Categorical && h.ColorProp != ColorPropNone && len(h.Colorscale) == 0 {
		problems = append(problems, "colorscale is empty")
	}

	if len(problems) > 0 {
		return eris.Errorf("choropleth: invalid hideout: %s", strings.Join(problems, "; "))
	}
	return nil
}
