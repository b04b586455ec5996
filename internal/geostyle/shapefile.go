package geostyle

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// ReadShapefile reads polygon records and their DBF attributes into a
// FeatureCollection of MultiPolygon features.
func ReadShapefile(shpPath string) (*geojson.FeatureCollection, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "geostyle: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	log := zap.L().With(zap.String("component", "geostyle.shapefile"))

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	fc := &geojson.FeatureCollection{}
	var skipped int

	for reader.Next() {
		n, shape := reader.Shape()

		g := shapeToGeometry(shape)
		if g == nil {
			skipped++
			log.Debug("geostyle: skipping unsupported shape", zap.Int("record", n))
			continue
		}

		props := make(map[string]any, len(fields))
		for i, f := range fields {
			props[names[i]] = attributeValue(f.Fieldtype, reader.Attribute(i))
		}

		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   g,
			Properties: props,
		})
	}

	log.Debug("geostyle: shapefile read",
		zap.String("path", shpPath),
		zap.Int("features", len(fc.Features)),
		zap.Int("skipped", skipped),
	)
	return fc, nil
}

// attributeValue converts a raw DBF cell to a property value. Blank cells
// become nil so they render as no-data.
func attributeValue(fieldType byte, raw string) any {
	val := strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if val == "" {
		return nil
	}

	switch fieldType {
	case 'N', 'F':
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
		return val
	case 'L':
		switch strings.ToUpper(val) {
		case "T", "Y":
			return true
		case "F", "N":
			return false
		default:
			return nil
		}
	default:
		return val
	}
}

// shapeToGeometry converts supported shapes to go-geom geometries.
// Returns nil for null, unsupported or empty shapes.
func shapeToGeometry(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Polygon:
		return polygonToMultiPolygon(s)
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	default:
		return nil
	}
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// Clockwise rings start a new polygon; counter-clockwise rings are holes in
// the polygon before them.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon

	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("geostyle: skipping malformed polygon part", zap.Error(err))
		}
		current = nil
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || end-start < 4 {
			zap.L().Debug("geostyle: skipping degenerate ring", zap.Int32("part", i))
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if current != nil && !clockwise(flat) {
			if err := current.Push(ring); err != nil {
				zap.L().Debug("geostyle: skipping malformed hole", zap.Int32("part", i), zap.Error(err))
			}
			continue
		}

		flush()
		current = geom.NewPolygon(geom.XY)
		if err := current.Push(ring); err != nil {
			zap.L().Debug("geostyle: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			current = nil
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// clockwise reports whether a closed ring of flat XY coordinates winds
// clockwise, using the sign of its shoelace area.
func clockwise(flat []float64) bool {
	var sum float64
	for i := 0; i+3 < len(flat); i += 2 {
		sum += (flat[i+2] - flat[i]) * (flat[i+3] + flat[i+1])
	}
	return sum > 0
}
