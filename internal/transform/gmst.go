package transform

import (
	"math"
	"time"
)

// j2000 is the Julian Date of the J2000.0 epoch.
const j2000 = 2451545.0

// OmegaEarth is Earth's rotation rate in rad/s.
const OmegaEarth = 7.292115146706979e-5

// JulianDate converts a UTC instant to a Julian Date, including the
// fractional day.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	y := float64(t.Year())
	m := float64(t.Month())
	day := float64(t.Day())
	frac := (float64(t.Hour()) +
		float64(t.Minute())/60.0 +
		(float64(t.Second())+float64(t.Nanosecond())/1e9)/3600.0) / 24.0

	// January and February count as months 13 and 14 of the previous year.
	if m <= 2 {
		y--
		m += 12
	}

	century := math.Floor(y / 100)
	gregorian := 2 - century + math.Floor(century/4)

	return math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + day + gregorian - 1524.5 + frac
}

// GMST returns Greenwich Mean Sidereal Time in radians, in [0, 2π), using the
// IAU-82 expression in seconds of time:
//
//	θ = 67310.54841 + (876600h + 8640184.812866)·T + 0.093104·T² - 6.2e-6·T³
//
// with T in Julian centuries of UT1 from J2000.0.
func GMST(t time.Time) float64 {
	centuries := (JulianDate(t) - j2000) / 36525.0

	sec := 67310.54841 +
		(876600.0*3600.0+8640184.812866)*centuries +
		0.093104*centuries*centuries -
		6.2e-6*centuries*centuries*centuries

	sec = math.Mod(sec, 86400.0)
	if sec < 0 {
		sec += 86400.0
	}
	return sec / 86400.0 * 2.0 * math.Pi
}
