package calc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sudhakar086/nasa-python-sgp4/internal/render"
	"github.com/sudhakar086/nasa-python-sgp4/internal/track"
)

// Vector is a Cartesian triple (km for position, km/s for velocity).
type Vector struct {
	X, Y, Z float64
}

// Result is a successful propagation response. Geodetic fields are optional:
// some services omit them, in which case nothing is plotted.
type Result struct {
	Position  Vector
	Lat       *float64
	Lon       *float64
	Alt       *float64
	Velocity  Vector
	Timestamp string
	// PastPath runs oldest to now, Path now to future; neither holds "now".
	PastPath []track.GeoPoint
	Path     []track.GeoPoint
}

// Geodetic returns the plottable position, or false if lat or lon is missing.
func (r *Result) Geodetic() (render.Position, bool) {
	if r.Lat == nil || r.Lon == nil {
		return render.Position{}, false
	}
	return render.Position{Lat: *r.Lat, Lon: *r.Lon, Alt: r.Alt}, true
}

// optionalNumber decodes a JSON number; any other JSON value leaves it unset.
type optionalNumber struct {
	value float64
	set   bool
}

func (n *optionalNumber) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	f, ok := v.(float64)
	*n = optionalNumber{value: f, set: ok}
	return nil
}

func (n optionalNumber) ptr() *float64 {
	if !n.set {
		return nil
	}
	v := n.value
	return &v
}

// Wire format of the propagation service.

type calculateRequest struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
}

type wireVector struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

type wirePosition struct {
	wireVector
	Lat optionalNumber `json:"lat"`
	Lon optionalNumber `json:"lon"`
	Alt optionalNumber `json:"alt"`
}

type calculateResponse struct {
	Error     string           `json:"error"`
	Position  *wirePosition    `json:"position"`
	Velocity  *wireVector      `json:"velocity"`
	Timestamp string           `json:"timestamp"`
	Path      []track.GeoPoint `json:"path"`
	PastPath  []track.GeoPoint `json:"past_path"`
}

func (v *wireVector) vector(name string) (Vector, error) {
	if v == nil {
		return Vector{}, fmt.Errorf("missing %s", name)
	}
	if v.X == nil || v.Y == nil || v.Z == nil {
		return Vector{}, fmt.Errorf("%s must have numeric x, y and z", name)
	}
	return Vector{X: *v.X, Y: *v.Y, Z: *v.Z}, nil
}

// result validates a success response and converts it.
func (resp *calculateResponse) result() (*Result, error) {
	if resp.Position == nil {
		return nil, errors.New("missing position")
	}
	pos, err := resp.Position.vector("position")
	if err != nil {
		return nil, err
	}
	vel, err := resp.Velocity.vector("velocity")
	if err != nil {
		return nil, err
	}
	if resp.Timestamp == "" {
		return nil, errors.New("missing timestamp")
	}

	return &Result{
		Position:  pos,
		Lat:       resp.Position.Lat.ptr(),
		Lon:       resp.Position.Lon.ptr(),
		Alt:       resp.Position.Alt.ptr(),
		Velocity:  vel,
		Timestamp: resp.Timestamp,
		PastPath:  resp.PastPath,
		Path:      resp.Path,
	}, nil
}
