package render

import (
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/sudhakar086/nasa-python-sgp4/internal/track"
)

// Initial view shows the whole world.
var (
	initialCenter = track.GeoPoint{Lat: 0, Lon: 0}
	initialZoom   = 2
)

// Marker is the current-position marker.
type Marker struct {
	At    track.GeoPoint `json:"at"`
	Label string         `json:"label"`
}

// View is the map viewport.
type View struct {
	Center track.GeoPoint `json:"center"`
	Zoom   int            `json:"zoom"`
}

// Polyline is a rendered segment with its style.
type Polyline struct {
	Segment track.Segment
	Style   Style
}

// Scene is an in-memory Surface. Its state is exported as GeoJSON for the
// browser map, which redraws from every snapshot.
// Safe for concurrent use.
type Scene struct {
	mu     sync.Mutex
	marker *Marker
	view   View
	layers map[Layer][]Polyline
}

// NewScene returns an empty scene showing the whole world.
func NewScene() *Scene {
	return &Scene{
		view:   View{Center: initialCenter, Zoom: initialZoom},
		layers: make(map[Layer][]Polyline),
	}
}

func (s *Scene) SetMarker(at track.GeoPoint, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marker = &Marker{At: at, Label: label}
}

func (s *Scene) SetView(center track.GeoPoint, zoom int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = View{Center: center, Zoom: zoom}
}

func (s *Scene) ClearSegments(layer Layer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.layers, layer)
}

func (s *Scene) AddSegment(layer Layer, seg track.Segment, style Style) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(track.Segment, len(seg))
	copy(cp, seg)
	s.layers[layer] = append(s.layers[layer], Polyline{Segment: cp, Style: style})
}

// Segments returns a copy of the polylines currently drawn on layer.
func (s *Scene) Segments(layer Layer) []Polyline {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Polyline, len(s.layers[layer]))
	copy(out, s.layers[layer])
	return out
}

// Marker returns the current marker, or nil before the first update.
func (s *Scene) Marker() *Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.marker == nil {
		return nil
	}
	m := *s.marker
	return &m
}

// SceneSnapshot is the serialisable state of a scene.
type SceneSnapshot struct {
	Marker *Marker                    `json:"marker,omitempty"`
	View   View                       `json:"view"`
	Tracks *geojson.FeatureCollection `json:"tracks"`
}

// Snapshot exports the scene. Each segment becomes one LineString feature
// carrying its layer and style as properties; past features come first.
// Single-point segments are kept as one-position LineStrings.
func (s *Scene) Snapshot() SceneSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	fc := geojson.NewFeatureCollection()
	for _, layer := range []Layer{LayerPast, LayerFuture} {
		for _, pl := range s.layers[layer] {
			f := geojson.NewFeature(pl.Segment.LineString())
			f.Properties["layer"] = string(layer)
			f.Properties["color"] = pl.Style.Color
			f.Properties["weight"] = pl.Style.Weight
			f.Properties["opacity"] = pl.Style.Opacity
			f.Properties["dash_array"] = pl.Style.DashArray
			fc.Append(f)
		}
	}

	snap := SceneSnapshot{View: s.view, Tracks: fc}
	if s.marker != nil {
		m := *s.marker
		snap.Marker = &m
	}
	return snap
}
