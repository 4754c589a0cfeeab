// Package transform converts SGP4 state vectors into Earth-fixed and geodetic
// coordinates for plotting a ground track.
//
// TEME to ECEF uses a GMST-only rotation (TEME -> PEF, taken as ECEF). Polar
// motion and the equation of the equinoxes are ignored, an error of tens of
// metres that is invisible on a world map.
package transform

import (
	"math"
	"time"
)

// PositionTEME is an SGP4 state vector in km and km/s.
type PositionTEME struct {
	X, Y, Z    float64
	VX, VY, VZ float64
}

// PositionECEF is an Earth-fixed state vector in metres and m/s.
type PositionECEF struct {
	X, Y, Z    float64
	VX, VY, VZ float64
}

// TEMEToECEF rotates a TEME state into the Earth-fixed frame at t.
func TEMEToECEF(teme PositionTEME, t time.Time) PositionECEF {
	return TEMEToECEFWithGMST(teme, GMST(t))
}

// TEMEToECEFWithGMST rotates by a precomputed sidereal angle (radians):
//
//	r_ecef = R3(θ)·r_teme
//	v_ecef = R3(θ)·v_teme - ω × r_ecef
func TEMEToECEFWithGMST(teme PositionTEME, gmst float64) PositionECEF {
	cosG, sinG := math.Cos(gmst), math.Sin(gmst)

	x := teme.X*cosG + teme.Y*sinG
	y := -teme.X*sinG + teme.Y*cosG
	z := teme.Z

	vx := teme.VX*cosG + teme.VY*sinG + OmegaEarth*y
	vy := -teme.VX*sinG + teme.VY*cosG - OmegaEarth*x
	vz := teme.VZ

	return PositionECEF{
		X: x * 1000.0, Y: y * 1000.0, Z: z * 1000.0,
		VX: vx * 1000.0, VY: vy * 1000.0, VZ: vz * 1000.0,
	}
}
