package geospatial

import (
	"math"

	"github.com/antigravity-events/otrack/internal/core/domain"
)

// SWEREF 99 TM (EPSG:3006): transverse Mercator on the GRS 80 ellipsoid.
// The conversion uses Krüger's series to fourth order in the third flattening,
// the closed-form variant, so forward/inverse round trips are stable to well
// below 1e-6 degrees anywhere in the projection zone.
const (
	semiMajorAxis     = 6378137.0
	inverseFlattening = 298.257222101
	centralMeridian   = 15.0 // degrees east
	scaleFactor       = 0.9996
	falseEasting      = 500000.0
	falseNorthing     = 0.0
)

// Derived constants, computed once at init.
var (
	flattening = 1.0 / inverseFlattening
	e2         = flattening * (2 - flattening) // first eccentricity squared
	n          = flattening / (2 - flattening) // third flattening
	aRoof      = semiMajorAxis / (1 + n) * (1 + n*n/4 + n*n*n*n/64)

	// Forward series (geodetic -> grid).
	beta1 = n/2 - 2*n*n/3 + 5*n*n*n/16 + 41*n*n*n*n/180
	beta2 = 13*n*n/48 - 3*n*n*n/5 + 557*n*n*n*n/1440
	beta3 = 61*n*n*n/240 - 103*n*n*n*n/140
	beta4 = 49561 * n * n * n * n / 161280

	// Inverse series (grid -> geodetic).
	delta1 = n/2 - 2*n*n/3 + 37*n*n*n/96 - n*n*n*n/360
	delta2 = n*n/48 + n*n*n/15 - 437*n*n*n*n/1440
	delta3 = 17*n*n*n/480 - 37*n*n*n*n/840
	delta4 = 4397 * n * n * n * n / 161280

	// Conformal latitude coefficients (geodetic -> conformal).
	cA = e2
	cB = (5*e2*e2 - e2*e2*e2) / 6
	cC = (104*e2*e2*e2 - 45*e2*e2*e2*e2) / 120
	cD = 1237 * e2 * e2 * e2 * e2 / 1260

	// Conformal -> geodetic latitude coefficients.
	cAs = e2 + e2*e2 + e2*e2*e2 + e2*e2*e2*e2
	cBs = -(7*e2*e2 + 17*e2*e2*e2 + 30*e2*e2*e2*e2) / 6
	cCs = (224*e2*e2*e2 + 889*e2*e2*e2*e2) / 120
	cDs = -4279 * e2 * e2 * e2 * e2 / 1260
)

// WGS84ToProjected converts a WGS 84 coordinate to SWEREF 99 TM easting (x)
// and northing (y) in meters.
func WGS84ToProjected(lat, lng float64) (x, y float64) {
	phi := toRad(lat)
	dLambda := toRad(lng - centralMeridian)

	sinPhi := math.Sin(phi)
	sin2 := sinPhi * sinPhi
	phiStar := phi - sinPhi*math.Cos(phi)*(cA+cB*sin2+cC*sin2*sin2+cD*sin2*sin2*sin2)

	xiPrime := math.Atan2(math.Tan(phiStar), math.Cos(dLambda))
	etaPrime := math.Atanh(math.Cos(phiStar) * math.Sin(dLambda))

	northing := scaleFactor*aRoof*(xiPrime+
		beta1*math.Sin(2*xiPrime)*math.Cosh(2*etaPrime)+
		beta2*math.Sin(4*xiPrime)*math.Cosh(4*etaPrime)+
		beta3*math.Sin(6*xiPrime)*math.Cosh(6*etaPrime)+
		beta4*math.Sin(8*xiPrime)*math.Cosh(8*etaPrime)) + falseNorthing

	easting := scaleFactor*aRoof*(etaPrime+
		beta1*math.Cos(2*xiPrime)*math.Sinh(2*etaPrime)+
		beta2*math.Cos(4*xiPrime)*math.Sinh(4*etaPrime)+
		beta3*math.Cos(6*xiPrime)*math.Sinh(6*etaPrime)+
		beta4*math.Cos(8*xiPrime)*math.Sinh(8*etaPrime)) + falseEasting

	return easting, northing
}

// ProjectedToWGS84 converts SWEREF 99 TM easting (x) and northing (y) in
// meters to a WGS 84 coordinate.
func ProjectedToWGS84(x, y float64) domain.GeoPoint {
	xi := (y - falseNorthing) / (scaleFactor * aRoof)
	eta := (x - falseEasting) / (scaleFactor * aRoof)

	xiPrime := xi -
		delta1*math.Sin(2*xi)*math.Cosh(2*eta) -
		delta2*math.Sin(4*xi)*math.Cosh(4*eta) -
		delta3*math.Sin(6*xi)*math.Cosh(6*eta) -
		delta4*math.Sin(8*xi)*math.Cosh(8*eta)

	etaPrime := eta -
		delta1*math.Cos(2*xi)*math.Sinh(2*eta) -
		delta2*math.Cos(4*xi)*math.Sinh(4*eta) -
		delta3*math.Cos(6*xi)*math.Sinh(6*eta) -
		delta4*math.Cos(8*xi)*math.Sinh(8*eta)

	phiStar := math.Asin(math.Sin(xiPrime) / math.Cosh(etaPrime))
	dLambda := math.Atan2(math.Sinh(etaPrime), math.Cos(xiPrime))

	sinPhi := math.Sin(phiStar)
	sin2 := sinPhi * sinPhi
	phi := phiStar + sinPhi*math.Cos(phiStar)*(cAs+cBs*sin2+cCs*sin2*sin2+cDs*sin2*sin2*sin2)

	return domain.GeoPoint{
		Lat: toDeg(phi),
		Lng: centralMeridian + toDeg(dLambda),
	}
}
