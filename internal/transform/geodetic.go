package transform

import (
	"math"
	"time"

	"github.com/sudhakar086/nasa-python-sgp4/internal/track"
)

// WGS-84 ellipsoid.
const (
	wgs84A  = 6378137.0
	wgs84F  = 1.0 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
)

// Geodetic is a point on or above the WGS-84 ellipsoid. Lon is in (-180, 180].
type Geodetic struct {
	LatDeg, LonDeg float64
	AltKm          float64
}

// ECEFToGeodetic converts Earth-fixed metres to geodetic coordinates by
// Bowring iteration, which settles in two or three rounds for orbital radii.
func ECEFToGeodetic(x, y, z float64) Geodetic {
	p := math.Hypot(x, y)
	lat := math.Atan2(z, p*(1-wgs84E2))
	for i := 0; i < 5; i++ {
		s := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-wgs84E2*s*s)
		lat = math.Atan2(z+wgs84E2*n*s, p)
	}

	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - n
	} else {
		alt = math.Abs(z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return Geodetic{
		LatDeg: lat * 180.0 / math.Pi,
		LonDeg: track.NormalizeLon(math.Atan2(y, x) * 180.0 / math.Pi),
		AltKm:  alt / 1000.0,
	}
}

// GeodeticToECEF is the inverse of ECEFToGeodetic, in metres.
func GeodeticToECEF(g Geodetic) (x, y, z float64) {
	lat := g.LatDeg * math.Pi / 180.0
	lon := g.LonDeg * math.Pi / 180.0
	alt := g.AltKm * 1000.0

	sinLat := math.Sin(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	x = (n + alt) * math.Cos(lat) * math.Cos(lon)
	y = (n + alt) * math.Cos(lat) * math.Sin(lon)
	z = (n*(1-wgs84E2) + alt) * sinLat
	return x, y, z
}

// SubSatellitePoint returns the geodetic point beneath a TEME position at t.
func SubSatellitePoint(teme PositionTEME, t time.Time) Geodetic {
	return SubSatellitePointWithGMST(teme, GMST(t))
}

// SubSatellitePointWithGMST is SubSatellitePoint with a precomputed GMST.
func SubSatellitePointWithGMST(teme PositionTEME, gmst float64) Geodetic {
	ecef := TEMEToECEFWithGMST(teme, gmst)
	return ECEFToGeodetic(ecef.X, ecef.Y, ecef.Z)
}
