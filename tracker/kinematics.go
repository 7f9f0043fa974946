package tracker

import "math"

const earthRadiusM = 6371000.0

func degToRad(d float64) float64 { return d * math.Pi / 180 }
func radToDeg(r float64) float64 { return r * 180 / math.Pi }

// haversineMeters returns the great-circle distance between two coordinates.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := degToRad(lat1)
	phi2 := degToRad(lat2)
	dPhi := degToRad(lat2 - lat1)
	dLambda := degToRad(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// initialBearing returns the great-circle initial bearing from point 1 to
// point 2 in degrees [0,360), clockwise from true north.
func initialBearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := degToRad(lat1)
	phi2 := degToRad(lat2)
	dLambda := degToRad(lon2 - lon1)

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	theta := math.Atan2(y, x)
	deg := math.Mod(radToDeg(theta)+360, 360)
	return deg
}

// headingFromComponents recomposes a heading in degrees [0,360) from EMA'd
// unit-circle components.
func headingFromComponents(sin, cos float64) float64 {
	deg := math.Mod(radToDeg(math.Atan2(sin, cos))+360, 360)
	// Mod can return 360 for tiny negative inputs rounded up.
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// smoothHeading folds an observed heading into the unit-circle accumulators.
// Linear averaging of raw degrees would misbehave near the 0/360 seam; the
// component form takes the shortest arc implicitly.
func smoothHeading(prevSin, prevCos float64, have bool, observedDeg, alpha float64) (sin, cos float64) {
	rad := degToRad(observedDeg)
	oSin := math.Sin(rad)
	oCos := math.Cos(rad)
	if !have {
		return oSin, oCos
	}
	return alpha*oSin + (1-alpha)*prevSin, alpha*oCos + (1-alpha)*prevCos
}

// smoothSpeed applies a plain EMA; the first observation seeds the average.
func smoothSpeed(prev *float64, observed, alpha float64) float64 {
	if prev == nil {
		return observed
	}
	return alpha*observed + (1-alpha)*(*prev)
}
