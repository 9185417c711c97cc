// Package geometry validates land-plot polygons and computes their centroids.
//
// Validation is planar and ring-based. An invalid geometry gets exactly one
// bounded repair pass (see Repair) before being rejected. The pass splits
// crossing rings such as bowties into their simple loops, so the centroid
// covers every lobe.
package geometry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/lineintersection"
	"github.com/twpayne/go-geom/xy/lineintersector"
)

// ErrGeometry is wrapped by every parse, validation and centroid failure.
var ErrGeometry = errors.New("geometry error")

// Point is a centroid in long/lat order.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// ValidateAndCenter parses a GeoJSON Polygon or MultiPolygon, repairs it once
// if invalid and returns the area-weighted centroid of the result. Other
// geometry types are rejected with ErrGeometry.
func ValidateAndCenter(raw json.RawMessage) (Point, error) {
	g, err := Parse(raw)
	if err != nil {
		return Point{}, err
	}
	if err := Validate(g); err != nil {
		repaired, rerr := Repair(g)
		if rerr != nil {
			return Point{}, fmt.Errorf("%w: %v (repair failed: %v)", ErrGeometry, err, rerr)
		}
		if verr := Validate(repaired); verr != nil {
			return Point{}, fmt.Errorf("%w: invalid after repair: %v", ErrGeometry, verr)
		}
		g = repaired
	}
	return Centroid(g)
}

// Parse decodes raw GeoJSON and accepts only polygonal geometries.
func Parse(raw json.RawMessage) (geom.T, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: missing geometry", ErrGeometry)
	}
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeometry, err)
	}
	switch g := g.(type) {
	case *geom.Polygon:
		if g.NumLinearRings() == 0 {
			return nil, fmt.Errorf("%w: polygon has no rings", ErrGeometry)
		}
		return g, nil
	case *geom.MultiPolygon:
		if g.NumPolygons() == 0 {
			return nil, fmt.Errorf("%w: multipolygon has no polygons", ErrGeometry)
		}
		return g, nil
	case nil:
		return nil, fmt.Errorf("%w: missing geometry", ErrGeometry)
	default:
		return nil, fmt.Errorf("%w: unsupported geometry type %T", ErrGeometry, g)
	}
}

// Centroid returns the area-weighted centroid of a polygonal geometry.
func Centroid(g geom.T) (Point, error) {
	c, err := xy.Centroid(g)
	if err != nil {
		return Point{}, fmt.Errorf("%w: %v", ErrGeometry, err)
	}
	if len(c) < 2 || !finite(c[0]) || !finite(c[1]) {
		return Point{}, fmt.Errorf("%w: centroid is not finite", ErrGeometry)
	}
	return Point{Lon: c[0], Lat: c[1]}, nil
}

// Validate reports the first problem found in any ring of g.
func Validate(g geom.T) error {
	for i, rings := range polygons(g) {
		if len(rings) == 0 {
			return fmt.Errorf("polygon %d has no rings", i)
		}
		for j, ring := range rings {
			if err := validateRing(ring); err != nil {
				return fmt.Errorf("polygon %d ring %d: %w", i, j, err)
			}
		}
		for j, hole := range rings[1:] {
			if !xy.IsPointInRing(geom.XY, hole[0], flatten(rings[0])) {
				return fmt.Errorf("polygon %d hole %d lies outside the exterior ring", i, j+1)
			}
		}
	}
	return nil
}

func validateRing(ring []geom.Coord) error {
	if len(ring) < 4 {
		return fmt.Errorf("ring has %d positions, need at least 4", len(ring))
	}
	for k, c := range ring {
		if len(c) < 2 || !finite(c[0]) || !finite(c[1]) {
			return fmt.Errorf("position %d is not a finite coordinate", k)
		}
	}
	if !samePosition(ring[0], ring[len(ring)-1]) {
		return errors.New("ring is not closed")
	}
	if xy.SignedArea(geom.XY, flatten(ring)) == 0 {
		return errors.New("ring has zero area")
	}
	if a, b, ok := selfIntersection(ring); ok {
		return fmt.Errorf("segments %d and %d intersect", a, b)
	}
	return nil
}

// selfIntersection looks for two non-adjacent segments of a closed ring
// that touch, and for adjacent segments that overlap.
func selfIntersection(ring []geom.Coord) (int, int, bool) {
	n := len(ring) - 1
	strategy := lineintersector.RobustLineIntersector{}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			res := lineintersector.LineIntersectsLine(strategy, ring[i], ring[i+1], ring[j], ring[j+1])
			if !res.HasIntersection() {
				continue
			}
			adjacent := j == i+1 || (i == 0 && j == n-1)
			if adjacent && res.Type() != lineintersection.CollinearIntersection {
				continue
			}
			return i, j, true
		}
	}
	return 0, 0, false
}

// polygons returns the rings of every polygon in g as 2D coordinates.
func polygons(g geom.T) [][][]geom.Coord {
	switch g := g.(type) {
	case *geom.Polygon:
		return [][][]geom.Coord{xyRings(g.Coords())}
	case *geom.MultiPolygon:
		all := g.Coords()
		out := make([][][]geom.Coord, len(all))
		for i, p := range all {
			out[i] = xyRings(p)
		}
		return out
	}
	return nil
}

// xyRings drops any Z or M ordinates.
func xyRings(rings [][]geom.Coord) [][]geom.Coord {
	out := make([][]geom.Coord, len(rings))
	for i, ring := range rings {
		out[i] = make([]geom.Coord, len(ring))
		for k, c := range ring {
			if len(c) >= 2 {
				out[i][k] = geom.Coord{c[0], c[1]}
			} else {
				out[i][k] = geom.Coord{math.NaN(), math.NaN()}
			}
		}
	}
	return out
}

func flatten(ring []geom.Coord) []float64 {
	flat := make([]float64, 0, 2*len(ring))
	for _, c := range ring {
		flat = append(flat, c[0], c[1])
	}
	return flat
}

func samePosition(a, b geom.Coord) bool {
	return a[0] == b[0] && a[1] == b[1]
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
