package choropleth

// Resolve computes the style for a feature with the given properties.
//
// The branches are evaluated in order and the first match wins:
//   - missing or null value: no-data fill, base border
//   - categorical with labels: label color with border, or no-data with border
//   - colorProp "delta": threshold color, base border
//   - colorProp "none": base style unchanged
//   - any other property: threshold color with border, or no-data
//
// Resolve never fails; values it cannot classify get the no-data style.
// The result is always a new Style and neither argument is modified.
func Resolve(props map[string]any, h *Hideout) Style {
	if h == nil {
		h = &Hideout{}
	}
	base := h.Style

	value, ok := props[h.ColorProp]
	if !ok || value == nil {
		return base.with(NoDataColor, NoDataOpacity)
	}

	if h.Categorical && len(h.Labels) > 0 {
		idx := LabelIndex(h.Labels, value)
		if idx >= 0 && idx < len(h.Colorscale) {
			return base.with(h.Colorscale[idx], ClassifiedOpacity).bordered()
		}
		return base.with(NoDataColor, NoDataOpacity).bordered()
	}

	if h.ColorProp == ColorPropDelta {
		n, ok := ToNumber(value)
		if !ok {
			return base.with(NoDataColor, NoDataOpacity)
		}

		idx := bucket(h.Classes, n, 0)
		if last := len(h.Classes) - 1; last >= 0 {
			if n >= h.Classes[last] {
				idx = len(h.Colorscale) - 1
			}
			if n < h.Classes[0] {
				idx = 0
			}
		}

		if idx < 0 || idx >= len(h.Colorscale) {
			// No color for this bucket: the fill is left unset.
			out := base.Clone()
			delete(out, KeyFillColor)
			out[KeyFillOpacity] = ClassifiedOpacity
			return out
		}
		return base.with(h.Colorscale[idx], ClassifiedOpacity)
	}

	if h.ColorProp == ColorPropNone {
		return base.Clone()
	}

	n, ok := ToNumber(value)
	if !ok {
		return base.with(NoDataColor, NoDataOpacity)
	}

	idx := bucket(h.Classes, n, -1)
	if last := len(h.Classes) - 1; last >= 0 {
		if idx == -1 && n >= h.Classes[last] {
			idx = len(h.Colorscale) - 1
		}
		if n < h.Classes[0] {
			idx = 0
		}
	}

	if idx >= 0 && idx < len(h.Colorscale) {
		return base.with(h.Colorscale[idx], ClassifiedOpacity).bordered()
	}
	return base.with(NoDataColor, NoDataOpacity)
}

// bucket returns the first i with classes[i] <= n < classes[i+1], or def.
func bucket(classes []float64, n float64, def int) int {
	for i := 0; i < len(classes)-1; i++ {
		if n >= classes[i] && n < classes[i+1] {
			return i
		}
	}
	return def
}
