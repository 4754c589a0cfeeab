package calc

import (
	"fmt"
	"math"
	"time"
)

// VelocityMode selects how velocity is shown in the results panel.
type VelocityMode string

const (
	VelocityAxes  VelocityMode = "axes"
	VelocitySpeed VelocityMode = "speed"
)

// ParseVelocityMode accepts "axes" or "speed".
func ParseVelocityMode(s string) (VelocityMode, error) {
	switch m := VelocityMode(s); m {
	case VelocityAxes, VelocitySpeed:
		return m, nil
	}
	return "", fmt.Errorf("unknown velocity mode %q (want axes or speed)", s)
}

// DefaultLayout is the timestamp display layout.
const DefaultLayout = "2006-01-02 15:04:05 MST"

// Display holds the readout formatting preferences.
type Display struct {
	Location *time.Location
	Layout   string
	Velocity VelocityMode
}

// Readouts are the formatted numbers of the results panel.
type Readouts struct {
	PosX      string `json:"pos_x"`
	PosY      string `json:"pos_y"`
	PosZ      string `json:"pos_z"`
	VelX      string `json:"vel_x,omitempty"`
	VelY      string `json:"vel_y,omitempty"`
	VelZ      string `json:"vel_z,omitempty"`
	Speed     string `json:"speed,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Format renders r: positions to 2 decimals, velocity to 6 either per axis
// or as the speed magnitude, timestamp in the display location.
func (d Display) Format(r *Result) Readouts {
	out := Readouts{
		PosX:      fmt.Sprintf("%.2f", r.Position.X),
		PosY:      fmt.Sprintf("%.2f", r.Position.Y),
		PosZ:      fmt.Sprintf("%.2f", r.Position.Z),
		Timestamp: d.formatTimestamp(r.Timestamp),
	}

	v := r.Velocity
	if d.Velocity == VelocitySpeed {
		out.Speed = fmt.Sprintf("%.6f", math.Sqrt(v.X*v.X+v.Y*v.Y+v.Z*v.Z))
	} else {
		out.VelX = fmt.Sprintf("%.6f", v.X)
		out.VelY = fmt.Sprintf("%.6f", v.Y)
		out.VelZ = fmt.Sprintf("%.6f", v.Z)
	}
	return out
}

func (d Display) formatTimestamp(raw string) string {
	t, err := ParseTimestamp(raw)
	if err != nil {
		return raw
	}
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	layout := d.Layout
	if layout == "" {
		layout = DefaultLayout
	}
	return t.In(loc).Format(layout)
}

// ParseTimestamp reads an ISO-8601 instant. Timestamps without a zone offset
// are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
