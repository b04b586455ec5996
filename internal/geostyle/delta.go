package geostyle

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/choropleth/internal/choropleth"
)

// DeltaMode selects how a change between two values is expressed.
type DeltaMode string

// Delta modes.
const (
	DeltaAbsolute DeltaMode = "absolute"
	DeltaPercent  DeltaMode = "percent"
)

// Delta derives a change property from two numeric properties of each
// feature, typically the same indicator in two periods.
type Delta struct {
	Current string
	Compare string
	Mode    DeltaMode
	// Target receives the change; empty means "delta", the property the
	// resolver colors on a diverging scale.
	Target string
}

// Validate checks that both source properties and the mode are usable.
func (d Delta) Validate() error {
	var problems []string
	if d.Current == "" {
		problems = append(problems, "current property is empty")
	}
	if d.Compare == "" {
		problems = append(problems, "compare property is empty")
	}
	switch d.Mode {
	case "", DeltaAbsolute, DeltaPercent:
	default:
		problems = append(problems, "unknown mode "+string(d.Mode))
	}
	if len(problems) > 0 {
		return eris.Errorf("geostyle: invalid delta: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Value computes the change for one feature's properties. It returns nil when
// either value is missing, null or not a number. A percent change against a
// zero comparison value is 0.
func (d Delta) Value(props map[string]any) any {
	current, ok := deltaOperand(props, d.Current)
	if !ok {
		return nil
	}
	compare, ok := deltaOperand(props, d.Compare)
	if !ok {
		return nil
	}

	if d.Mode == DeltaPercent {
		if compare == 0 {
			return 0.0
		}
		return (current - compare) / compare * 100
	}
	return current - compare
}

// Apply writes the change into every feature's target property and returns
// how many features got a null delta.
func (d Delta) Apply(fc *geojson.FeatureCollection) int {
	if fc == nil {
		return 0
	}
	target := d.Target
	if target == "" {
		target = choropleth.ColorPropDelta
	}

	missing := 0
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		if f.Properties == nil {
			f.Properties = make(map[string]any, 1)
		}
		v := d.Value(f.Properties)
		if v == nil {
			missing++
		}
		f.Properties[target] = v
	}
	return missing
}

func deltaOperand(props map[string]any, key string) (float64, bool) {
	v, ok := props[key]
	if !ok || v == nil {
		return 0, false
	}
	return choropleth.ToNumber(v)
}
