package flowline

import (
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
)

// Projections between WGS84 longitude/latitude and spherical Web Mercator
// meters.
var (
	WGS84ToMercator orb.Projection = project.WGS84.ToMercator
	MercatorToWGS84 orb.Projection = project.Mercator.ToWGS84
)

// ColorProperty is the GeoJSON feature property holding a line color.
const ColorProperty = "color"

// ErrNoLines is returned when a data source contains no usable line.
var ErrNoLines = errors.New("flowline: no line geometries found")

// trip is one record of the trip file format.
type trip struct {
	Color ColorValue  `json:"color"`
	Path  [][]float64 `json:"path"`
}

// LoadTrips decodes a JSON array of {"color": ..., "path": [[x, y], ...]}
// records. Coordinates beyond the first two are ignored.
func LoadTrips(r io.Reader) ([]Graphic, error) {
	var trips []trip
	if err := json.NewDecoder(r).Decode(&trips); err != nil {
		return nil, fmt.Errorf("flowline: decode trips: %w", err)
	}
	gs := make([]Graphic, 0, len(trips))
	for i, t := range trips {
		ls := make(orb.LineString, 0, len(t.Path))
		for j, c := range t.Path {
			if len(c) < 2 {
				return nil, fmt.Errorf("flowline: trip %d point %d: need 2 coordinates, got %d", i, j, len(c))
			}
			ls = append(ls, orb.Point{c[0], c[1]})
		}
		gs = append(gs, Graphic{Geometry: ls, Color: t.Color})
	}
	if len(gs) == 0 {
		return nil, ErrNoLines
	}
	return gs, nil
}

// LoadGeoJSON reads LineString and MultiLineString features from a GeoJSON
// FeatureCollection. Each MultiLineString member becomes its own Graphic;
// other geometry types are skipped. The "color" property, when present,
// becomes the graphic color and all properties are kept as attributes.
func LoadGeoJSON(data []byte) ([]Graphic, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("flowline: decode geojson: %w", err)
	}

	var gs []Graphic
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		color := colorFromProperty(f.Properties[ColorProperty])
		attrs := map[string]any(f.Properties.Clone())
		switch g := f.Geometry.(type) {
		case orb.LineString:
			gs = append(gs, Graphic{Geometry: g, Color: color, Attributes: attrs})
		case orb.MultiLineString:
			for _, ls := range g {
				gs = append(gs, Graphic{Geometry: ls, Color: color, Attributes: attrs})
			}
		default:
			Logger().Debug("flowline: skipping non-line feature", "type", f.Geometry.GeoJSONType())
		}
	}
	if len(gs) == 0 {
		return nil, ErrNoLines
	}
	return gs, nil
}

// MarshalGeoJSON writes graphics as a FeatureCollection of LineStrings.
func MarshalGeoJSON(gs []Graphic) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, g := range gs {
		f := geojson.NewFeature(g.Geometry)
		for k, v := range g.Attributes {
			f.Properties[k] = v
		}
		if g.Color.Kind != ColorUnset {
			f.Properties[ColorProperty] = g.Color
		}
		fc.Append(f)
	}
	return fc.MarshalJSON()
}

// ProjectGraphics returns copies of gs with every geometry passed through
// proj. The input geometries are left untouched.
func ProjectGraphics(gs []Graphic, proj orb.Projection) []Graphic {
	out := make([]Graphic, len(gs))
	for i, g := range gs {
		g.Geometry = project.LineString(g.Geometry.Clone(), proj)
		out[i] = g
	}
	return out
}

// MergedGraphics joins graphics that share an endpoint and a resolved
// color into longer lines with CombinePaths. Attributes are dropped from
// merged output. Color groups keep the order of their first graphic.
func MergedGraphics(gs []Graphic, tolerance float64) []Graphic {
	type group struct {
		color ColorValue
		paths []orb.LineString
	}
	var groups []*group
	byColor := make(map[string]*group)
	for _, g := range gs {
		key := "unset"
		if rgb, ok := g.Color.Resolve(); ok {
			key = rgb.Hex()
		}
		grp := byColor[key]
		if grp == nil {
			grp = &group{color: g.Color}
			byColor[key] = grp
			groups = append(groups, grp)
		}
		grp.paths = append(grp.paths, g.Geometry)
	}

	out := make([]Graphic, 0, len(gs))
	for _, grp := range groups {
		for _, p := range CombinePaths(grp.paths, tolerance) {
			out = append(out, Graphic{Geometry: p, Color: grp.color})
		}
	}
	return out
}
