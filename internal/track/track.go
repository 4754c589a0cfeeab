// Package track models ground-track samples and splits them into polyline
// segments that never jump across the antimeridian.
package track

import (
	"math"

	"github.com/paulmach/orb"
)

// GeoPoint is a sub-satellite point in degrees.
// Lat is in [-90, 90]; Lon is expected in (-180, 180].
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Segment is one continuous polyline with no dateline jump inside it.
// A segment of a single point is valid and must be tolerated by renderers.
type Segment []GeoPoint

// maxLonStep is the largest longitude change allowed between adjacent points
// of a segment.
const maxLonStep = 180.0

// SplitAtDateline breaks points into segments wherever two consecutive points
// differ in longitude by more than 180 degrees. The new segment starts at the
// current point and does not repeat the previous one, leaving a gap at the
// antimeridian. Concatenating the result reproduces points exactly.
//
// Inputs shorter than two points are returned as a single segment, so an
// empty input yields one empty segment. Longitudes are compared as given.
func SplitAtDateline(points []GeoPoint) []Segment {
	if len(points) < 2 {
		return []Segment{Segment(points)}
	}

	var segments []Segment
	current := Segment{points[0]}
	for i := 1; i < len(points); i++ {
		prev, curr := points[i-1], points[i]
		if math.Abs(curr.Lon-prev.Lon) > maxLonStep {
			segments = append(segments, current)
			current = Segment{curr}
			continue
		}
		current = append(current, curr)
	}
	return append(segments, current)
}

// NormalizeLon maps a longitude in degrees into (-180, 180].
func NormalizeLon(lon float64) float64 {
	lon = math.Mod(lon, 360)
	if lon > 180 {
		lon -= 360
	} else if lon <= -180 {
		lon += 360
	}
	return lon
}

// Point returns p as an orb.Point, which is ordered (lon, lat).
func (p GeoPoint) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// LineString returns the segment in GeoJSON coordinate order.
func (s Segment) LineString() orb.LineString {
	ls := make(orb.LineString, len(s))
	for i, p := range s {
		ls[i] = p.Point()
	}
	return ls
}
