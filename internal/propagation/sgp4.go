package propagation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/sudhakar086/nasa-python-sgp4/internal/transform"
)

// go-satellite calls log.Fatal on fields it cannot parse, so element sets are
// checked field by field before they reach it. Propagate takes the Satellite
// by value and does not surface SGP4 error codes; failures are detected from
// the output instead.

// ErrPropagation reports that SGP4 produced no usable state at a time.
var ErrPropagation = errors.New("sgp4 propagation failed")

// ElementsError describes why an element set was rejected.
type ElementsError struct {
	Line   int
	Reason string
}

func (e *ElementsError) Error() string {
	if e.Line == 0 {
		return e.Reason
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Model is an initialised SGP4 model for one element set. It is immutable
// and safe for concurrent use.
type Model struct {
	sat     satellite.Satellite
	catalog string
}

// NewModel validates a two-line element set and initialises SGP4 with it.
// Surrounding whitespace on either line is ignored.
func NewModel(line1, line2 string) (*Model, error) {
	line1, line2 = strings.TrimSpace(line1), strings.TrimSpace(line2)
	if err := ValidateLines(line1, line2); err != nil {
		return nil, err
	}

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	if sat.Error != 0 {
		return nil, &ElementsError{Reason: fmt.Sprintf("sgp4 initialisation failed: code=%d %s", sat.Error, sat.ErrorStr)}
	}
	return &Model{sat: sat, catalog: strings.TrimSpace(line1[2:7])}, nil
}

// Catalog returns the satellite catalogue number from line 1.
func (m *Model) Catalog() string {
	return m.catalog
}

// At propagates to t, truncated to whole seconds UTC. The result is TEME km
// and km/s.
func (m *Model) At(t time.Time) (transform.PositionTEME, error) {
	t = t.UTC()
	pos, vel := satellite.Propagate(m.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	for _, v := range []float64{pos.X, pos.Y, pos.Z, vel.X, vel.Y, vel.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return transform.PositionTEME{}, fmt.Errorf("%w for %s at %s: non-finite state", ErrPropagation, m.catalog, t.Format(time.RFC3339))
		}
	}
	if r := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z); r < 6200.0 || r > 50000.0 {
		return transform.PositionTEME{}, fmt.Errorf("%w for %s at %s: radius %.1f km", ErrPropagation, m.catalog, t.Format(time.RFC3339), r)
	}

	return transform.PositionTEME{X: pos.X, Y: pos.Y, Z: pos.Z, VX: vel.X, VY: vel.Y, VZ: vel.Z}, nil
}

// tleField is a numeric column range of a TLE line, as go-satellite reads it.
type tleField struct {
	name  string
	value func(line string) string
	isInt bool
}

func cols(from, to int) func(string) string {
	return func(l string) string { return strings.Replace(l[from:to], " ", "", 2) }
}

// exponent reads the "assumed decimal point" notation used by nddot and bstar.
func exponent(sign, mantissa, exp int) func(string) string {
	return func(l string) string {
		s := l[sign:sign+1] + "." + l[mantissa:mantissa+5] + "e" + l[exp:exp+2]
		return strings.Replace(s, " ", "", 2)
	}
}

var line1Fields = []tleField{
	{name: "satellite number", value: func(l string) string { return strings.TrimSpace(l[2:7]) }, isInt: true},
	{name: "epoch year", value: func(l string) string { return l[18:20] }, isInt: true},
	{name: "epoch day", value: func(l string) string { return l[20:32] }},
	{name: "mean motion derivative", value: cols(33, 43)},
	{name: "mean motion second derivative", value: exponent(44, 45, 50)},
	{name: "drag term", value: exponent(53, 54, 59)},
}

var line2Fields = []tleField{
	{name: "inclination", value: cols(8, 16)},
	{name: "right ascension", value: cols(17, 25)},
	{name: "eccentricity", value: func(l string) string { return "." + l[26:33] }},
	{name: "argument of perigee", value: cols(34, 42)},
	{name: "mean anomaly", value: cols(43, 51)},
	{name: "mean motion", value: cols(52, 63)},
}

// ValidateLines checks line length, line numbers, checksums, matching
// catalogue numbers and every numeric field SGP4 reads.
func ValidateLines(line1, line2 string) error {
	for i, line := range []string{line1, line2} {
		n := i + 1
		if len(line) != 69 {
			return &ElementsError{Line: n, Reason: fmt.Sprintf("expected 69 characters, got %d", len(line))}
		}
		if line[0] != byte('0'+n) || line[1] != ' ' {
			return &ElementsError{Line: n, Reason: fmt.Sprintf("must start with %q", fmt.Sprintf("%d ", n))}
		}
		if want := checksum(line); line[68] != want {
			return &ElementsError{Line: n, Reason: fmt.Sprintf("bad checksum: expected %c, got %c", want, line[68])}
		}
	}

	if strings.TrimSpace(line1[2:7]) != strings.TrimSpace(line2[2:7]) {
		return &ElementsError{Reason: "satellite numbers differ between lines"}
	}

	if err := checkFields(1, line1, line1Fields); err != nil {
		return err
	}
	return checkFields(2, line2, line2Fields)
}

func checkFields(n int, line string, fields []tleField) error {
	for _, f := range fields {
		s := f.value(line)
		var err error
		if f.isInt {
			_, err = strconv.Atoi(s)
		} else {
			_, err = strconv.ParseFloat(s, 64)
		}
		if err != nil {
			return &ElementsError{Line: n, Reason: fmt.Sprintf("invalid %s %q", f.name, s)}
		}
	}
	return nil
}

// checksum is the modulo-10 sum of the digits of the first 68 characters,
// with each minus sign counting as 1.
func checksum(line string) byte {
	sum := 0
	for _, c := range line[:68] {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return byte('0' + sum%10)
}
