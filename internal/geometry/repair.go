package geometry

import (
	"errors"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/lineintersector"
)

// Repair makes one pass over g and returns a cleaned 2D copy. It removes
// repeated consecutive positions, closes open rings, cuts spikes, and splits
// rings that cross themselves at each crossing into simple loops, keeping
// every loop that encloses area. Holes that lie outside every exterior are
// dropped. Exteriors are oriented counter-clockwise and holes clockwise.
//
// A Polygon whose exterior splits into several loops comes back as a
// MultiPolygon.
func Repair(g geom.T) (geom.T, error) {
	var cleaned [][][]geom.Coord
	for _, rings := range polygons(g) {
		cleaned = append(cleaned, repairPolygon(rings)...)
	}
	if len(cleaned) == 0 {
		return nil, errors.New("no polygon survived repair")
	}

	if _, multi := g.(*geom.MultiPolygon); !multi && len(cleaned) == 1 {
		p, err := geom.NewPolygon(geom.XY).SetCoords(cleaned[0])
		if err != nil {
			return nil, fmt.Errorf("rebuilding polygon: %w", err)
		}
		return p, nil
	}
	mp, err := geom.NewMultiPolygon(geom.XY).SetCoords(cleaned)
	if err != nil {
		return nil, fmt.Errorf("rebuilding multipolygon: %w", err)
	}
	return mp, nil
}

// repairPolygon returns one polygon per simple loop of the exterior, with
// each surviving hole loop attached to the first exterior that contains it.
func repairPolygon(rings [][]geom.Coord) [][][]geom.Coord {
	if len(rings) == 0 {
		return nil
	}
	shells := simpleLoops(rings[0])
	out := make([][][]geom.Coord, 0, len(shells))
	for _, s := range shells {
		out = append(out, [][]geom.Coord{orient(s, true)})
	}
	for _, h := range rings[1:] {
		for _, hole := range simpleLoops(h) {
			for i := range out {
				if xy.IsPointInRing(geom.XY, hole[0], flatten(out[i][0])) {
					out[i] = append(out[i], orient(hole, false))
					break
				}
			}
		}
	}
	return out
}

// simpleLoops cleans ring and splits it into loops that enclose area and do
// not cross themselves.
func simpleLoops(ring []geom.Coord) [][]geom.Coord {
	for _, c := range ring {
		if !finite(c[0]) || !finite(c[1]) {
			return nil
		}
	}
	return untangle(normalize(ring))
}

// untangle splits ring at its first self-intersection and recurses on both
// halves. Every step shortens the rings involved, so it terminates.
func untangle(ring []geom.Coord) [][]geom.Coord {
	if len(ring) < 4 {
		return nil
	}
	i, j, ok := selfIntersection(ring)
	if !ok {
		if xy.SignedArea(geom.XY, flatten(ring)) == 0 {
			return nil
		}
		return [][]geom.Coord{ring}
	}

	n := len(ring) - 1
	switch {
	case j == i+1:
		// Adjacent segments folding back over each other: drop the tip.
		return untangle(normalize(concat(ring[:i+1], ring[i+2:])))
	case i == 0 && j == n-1:
		return untangle(normalize(concat(ring[1:n], ring[1:2])))
	}

	p := crossing(ring, i, j)
	outer := concat(ring[:i+1], []geom.Coord{p}, ring[j+1:])
	inner := concat([]geom.Coord{p}, ring[i+1:j+1], []geom.Coord{p})
	return append(untangle(normalize(outer)), untangle(normalize(inner))...)
}

// crossing returns the first point where segments i and j of ring meet.
func crossing(ring []geom.Coord, i, j int) geom.Coord {
	res := lineintersector.LineIntersectsLine(lineintersector.RobustLineIntersector{},
		ring[i], ring[i+1], ring[j], ring[j+1])
	pts := res.Intersection()
	return geom.Coord{pts[0][0], pts[0][1]}
}

// normalize removes repeated consecutive positions and closes the ring.
func normalize(ring []geom.Coord) []geom.Coord {
	out := make([]geom.Coord, 0, len(ring)+1)
	for _, c := range ring {
		if len(out) > 0 && samePosition(out[len(out)-1], c) {
			continue
		}
		out = append(out, c)
	}
	if len(out) > 0 && !samePosition(out[0], out[len(out)-1]) {
		out = append(out, out[0])
	}
	return out
}

func concat(parts ...[]geom.Coord) []geom.Coord {
	var out []geom.Coord
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// orient reverses ring when its winding does not match. go-geom's signed
// area is negative for counter-clockwise rings.
func orient(ring []geom.Coord, ccw bool) []geom.Coord {
	isCCW := xy.SignedArea(geom.XY, flatten(ring)) < 0
	if isCCW == ccw {
		return ring
	}
	rev := make([]geom.Coord, len(ring))
	for i, c := range ring {
		rev[len(ring)-1-i] = c
	}
	return rev
}
