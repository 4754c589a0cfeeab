// Package render draws the current satellite position and its ground track
// onto a map surface.
package render

import (
	"fmt"

	"github.com/sudhakar086/nasa-python-sgp4/internal/track"
)

// Layer identifies one of the two track layers on the map.
type Layer string

const (
	LayerPast   Layer = "past"
	LayerFuture Layer = "future"
)

// Style describes how a track polyline is drawn.
type Style struct {
	Color     string  `json:"color"`
	Weight    int     `json:"weight"`
	Opacity   float64 `json:"opacity"`
	DashArray string  `json:"dash_array"`
}

var (
	PastStyle   = Style{Color: "blue", Weight: 2, Opacity: 0.6, DashArray: "3, 3"}
	FutureStyle = Style{Color: "red", Weight: 2, Opacity: 0.6, DashArray: "3, 3"}
)

// FocusZoom is the zoom level the view is set to when following the satellite.
const FocusZoom = 3

// Surface is the minimal map capability the renderer needs. Implementations
// must not block; animation is their concern.
type Surface interface {
	SetMarker(at track.GeoPoint, label string)
	SetView(center track.GeoPoint, zoom int)
	ClearSegments(layer Layer)
	AddSegment(layer Layer, seg track.Segment, style Style)
}

// Position is the satellite's geodetic position. Alt is optional.
type Position struct {
	Lat float64
	Lon float64
	Alt *float64
}

// Point returns the position without altitude.
func (p Position) Point() track.GeoPoint {
	return track.GeoPoint{Lat: p.Lat, Lon: p.Lon}
}

// Label formats the marker label: lat/lon to 4 decimals, altitude to 1.
func (p Position) Label() string {
	label := fmt.Sprintf("Satellite\nLat: %.4f\nLon: %.4f", p.Lat, p.Lon)
	if p.Alt != nil {
		label += fmt.Sprintf("\nAlt: %.1f km", *p.Alt)
	}
	return label
}

// Renderer owns a surface and keeps its marker and track layers in sync with
// the last update.
type Renderer struct {
	surface Surface
}

// NewRenderer creates a renderer drawing on surface.
func NewRenderer(surface Surface) *Renderer {
	return &Renderer{surface: surface}
}

// Update moves the marker, recentres the view and replaces both track layers.
// Previous segments are always removed before anything new is added, even when
// no track is drawn. Tracks are drawn only when both past and future are
// non-empty; the current position is spliced onto the end of past and the
// start of future before splitting at the dateline.
func (r *Renderer) Update(pos Position, past, future []track.GeoPoint) {
	current := pos.Point()

	r.surface.SetMarker(current, pos.Label())
	r.surface.SetView(current, FocusZoom)

	r.surface.ClearSegments(LayerPast)
	r.surface.ClearSegments(LayerFuture)

	if len(past) == 0 || len(future) == 0 {
		return
	}

	pastPoints := make([]track.GeoPoint, 0, len(past)+1)
	pastPoints = append(pastPoints, past...)
	pastPoints = append(pastPoints, current)
	for _, seg := range track.SplitAtDateline(pastPoints) {
		r.surface.AddSegment(LayerPast, seg, PastStyle)
	}

	futurePoints := make([]track.GeoPoint, 0, len(future)+1)
	futurePoints = append(futurePoints, current)
	futurePoints = append(futurePoints, future...)
	for _, seg := range track.SplitAtDateline(futurePoints) {
		r.surface.AddSegment(LayerFuture, seg, FutureStyle)
	}
}
