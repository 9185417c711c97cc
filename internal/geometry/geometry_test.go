package geometry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestValidateAndCenter(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Point
		wantErr bool
	}{
		{
			name: "unit square",
			raw:  `{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,2],[0,2],[0,0]]]}`,
			want: Point{Lon: 1, Lat: 1},
		},
		{
			name: "clockwise square",
			raw:  `{"type":"Polygon","coordinates":[[[0,0],[0,2],[2,2],[2,0],[0,0]]]}`,
			want: Point{Lon: 1, Lat: 1},
		},
		{
			name: "open ring is closed by repair",
			raw:  `{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,2],[0,2]]]}`,
			want: Point{Lon: 1, Lat: 1},
		},
		{
			name: "repeated positions are removed by repair",
			raw:  `{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,0],[2,2],[0,2],[0,0]]]}`,
			want: Point{Lon: 1, Lat: 1},
		},
		{
			name: "multipolygon",
			raw: `{"type":"MultiPolygon","coordinates":[
				[[[0,0],[2,0],[2,2],[0,2],[0,0]]],
				[[[4,0],[6,0],[6,2],[4,2],[4,0]]]]}`,
			want: Point{Lon: 3, Lat: 1},
		},
		{
			name: "degenerate member polygon is dropped",
			raw: `{"type":"MultiPolygon","coordinates":[
				[[[0,0],[2,0],[2,2],[0,2],[0,0]]],
				[[[5,5],[6,6],[5,5]]]]}`,
			want: Point{Lon: 1, Lat: 1},
		},
		{
			name: "third dimension is ignored",
			raw:  `{"type":"Polygon","coordinates":[[[0,0,10],[2,0,10],[2,2,10],[0,2,10],[0,0,10]]]}`,
			want: Point{Lon: 1, Lat: 1},
		},
		{
			name:    "fewer than four positions",
			raw:     `{"type":"Polygon","coordinates":[[[0,0],[1,0],[0,0]]]}`,
			wantErr: true,
		},
		{
			name:    "collinear ring has no area",
			raw:     `{"type":"Polygon","coordinates":[[[0,0],[1,0],[2,0],[0,0]]]}`,
			wantErr: true,
		},
		{
			name: "bowtie is split at the crossing",
			raw:  `{"type":"Polygon","coordinates":[[[0,0],[2,2],[2,0],[0,2],[0,0]]]}`,
			want: Point{Lon: 1, Lat: 1},
		},
		{
			name: "figure eight with unequal lobes",
			raw:  `{"type":"Polygon","coordinates":[[[0,0],[4,4],[4,0],[0,2],[0,0]]]}`,
			want: figureEightCentroid,
		},
		{
			name: "spike is cut",
			raw:  `{"type":"Polygon","coordinates":[[[0,0],[2,0],[3,0],[2,0],[2,2],[0,2],[0,0]]]}`,
			want: Point{Lon: 1, Lat: 1},
		},
		{
			name:    "point is not polygonal",
			raw:     `{"type":"Point","coordinates":[27.5,53.9]}`,
			wantErr: true,
		},
		{
			name:    "line is not polygonal",
			raw:     `{"type":"LineString","coordinates":[[0,0],[1,1]]}`,
			wantErr: true,
		},
		{
			name:    "null geometry",
			raw:     `null`,
			wantErr: true,
		},
		{
			name:    "malformed json",
			raw:     `{"type":"Polygon","coordinates":[[[0,0],`,
			wantErr: true,
		},
		{
			name:    "empty polygon",
			raw:     `{"type":"Polygon","coordinates":[]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateAndCenter(json.RawMessage(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrGeometry)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want.Lon, got.Lon, 1e-9)
			assert.InDelta(t, tt.want.Lat, got.Lat, 1e-9)
		})
	}
}

// The ring [0,0] [4,4] [4,0] [0,2] crosses itself at (4/3,4/3), leaving
// the triangles (0,0) (4/3,4/3) (0,2) with area 4/3 and (4/3,4/3) (4,4) (4,0)
// with area 16/3.
var figureEightCentroid = func() Point {
	c := 4.0 / 3
	a1, a2 := 4.0/3, 16.0/3
	x1, y1 := (0+c+0)/3, (0+c+2)/3
	x2, y2 := (c+4+4)/3, (c+4+0)/3
	return Point{Lon: (a1*x1 + a2*x2) / (a1 + a2), Lat: (a1*y1 + a2*y2) / (a1 + a2)}
}()

func TestRepair_SplitsBowtie(t *testing.T) {
	g, err := Parse(json.RawMessage(`{"type":"Polygon","coordinates":[[[0,0],[2,2],[2,0],[0,2],[0,0]]]}`))
	require.NoError(t, err)
	require.Error(t, Validate(g))

	repaired, err := Repair(g)
	require.NoError(t, err)
	require.NoError(t, Validate(repaired))

	mp, ok := repaired.(*geom.MultiPolygon)
	require.True(t, ok, "a split exterior becomes a multipolygon, got %T", repaired)
	require.Equal(t, 2, mp.NumPolygons())
	for i := 0; i < mp.NumPolygons(); i++ {
		shell := flatten(mp.Polygon(i).Coords()[0])
		assert.InDelta(t, -1.0, signedArea(shell), 1e-9, "lobe %d is a counter-clockwise triangle of area 1", i)
	}
}

func TestRepair_SplitsCrossingHole(t *testing.T) {
	g, err := Parse(json.RawMessage(`{"type":"Polygon","coordinates":[
		[[0,0],[10,0],[10,10],[0,10],[0,0]],
		[[2,2],[4,4],[4,2],[2,4],[2,2]]]}`))
	require.NoError(t, err)

	repaired, err := Repair(g)
	require.NoError(t, err)
	require.NoError(t, Validate(repaired))

	p, ok := repaired.(*geom.Polygon)
	require.True(t, ok)
	assert.Equal(t, 3, p.NumLinearRings(), "one exterior and both hole lobes")
}

func TestValidateAndCenter_Empty(t *testing.T) {
	_, err := ValidateAndCenter(nil)
	assert.ErrorIs(t, err, ErrGeometry)
}

func TestValidate_HoleOutsideShell(t *testing.T) {
	g, err := Parse(json.RawMessage(`{"type":"Polygon","coordinates":[
		[[0,0],[4,0],[4,4],[0,4],[0,0]],
		[[10,10],[11,10],[11,11],[10,11],[10,10]]]}`))
	require.NoError(t, err)

	err = Validate(g)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside")

	repaired, err := Repair(g)
	require.NoError(t, err)
	require.NoError(t, Validate(repaired))
	assert.Equal(t, 1, repaired.(*geom.Polygon).NumLinearRings())
}

func TestRepair_Orientation(t *testing.T) {
	g, err := Parse(json.RawMessage(`{"type":"Polygon","coordinates":[
		[[0,0],[0,4],[4,4],[4,0],[0,0]],
		[[1,1],[2,1],[2,2],[1,2],[1,1]]]}`))
	require.NoError(t, err)

	repaired, err := Repair(g)
	require.NoError(t, err)
	p := repaired.(*geom.Polygon)
	require.Equal(t, 2, p.NumLinearRings())

	shell := flatten(p.Coords()[0])
	hole := flatten(p.Coords()[1])
	assert.Less(t, signedArea(shell), 0.0, "exterior should be counter-clockwise")
	assert.Greater(t, signedArea(hole), 0.0, "hole should be clockwise")
}

func TestRepair_Unrepairable(t *testing.T) {
	g, err := Parse(json.RawMessage(`{"type":"Polygon","coordinates":[[[0,0],[1,1],[0,0]]]}`))
	require.NoError(t, err)
	_, err = Repair(g)
	assert.Error(t, err)
}

func TestSelfIntersection(t *testing.T) {
	square := []geom.Coord{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}
	_, _, ok := selfIntersection(square)
	assert.False(t, ok)

	spike := []geom.Coord{{0, 0}, {2, 0}, {1, 0}, {1, 1}, {0, 0}}
	_, _, ok = selfIntersection(spike)
	assert.True(t, ok)
}

func signedArea(flat []float64) float64 {
	sum := 0.0
	for i := 0; i+3 < len(flat); i += 2 {
		sum += flat[i]*flat[i+3] - flat[i+2]*flat[i+1]
	}
	// Shoelace is positive for counter-clockwise; flip to match go-geom.
	return -sum / 2
}
