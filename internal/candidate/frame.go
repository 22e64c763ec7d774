package candidate

import (
	"math"

	"github.com/fcal-reco/beamcal/internal/geometry"
)

// Both detector axes are tilted toward +x by half the crossing angle:
// (sin a, 0, cos a) on the left and (sin a, 0, -cos a) on the right.

// ToLab rotates a detector-frame vector of side into the lab frame.
func ToLab(v [3]float64, side geometry.Side, halfAngle float64) [3]float64 {
	c, s := math.Cos(halfAngle), math.Sin(halfAngle)
	if side == geometry.Right {
		return [3]float64{c*v[0] - s*v[2], v[1], s*v[0] + c*v[2]}
	}
	return [3]float64{c*v[0] + s*v[2], v[1], -s*v[0] + c*v[2]}
}

// ToDetector is the inverse of ToLab.
func ToDetector(v [3]float64, side geometry.Side, halfAngle float64) [3]float64 {
	c, s := math.Cos(halfAngle), math.Sin(halfAngle)
	if side == geometry.Right {
		return [3]float64{c*v[0] + s*v[2], v[1], -s*v[0] + c*v[2]}
	}
	return [3]float64{c*v[0] - s*v[2], v[1], s*v[0] + c*v[2]}
}

// Direction returns the polar angle (rad) to the detector axis and the
// azimuth (degrees in [0, 360)) of a lab-frame vector, together with the
// side it points to.
func Direction(v [3]float64, halfAngle float64) (theta, phi float64, side geometry.Side) {
	side = geometry.Left
	if v[2] <= 0 {
		side = geometry.Right
	}
	d := ToDetector(v, side, halfAngle)
	theta = math.Atan2(math.Hypot(d[0], d[1]), side.Sign()*d[2])
	phi = geometry.NormalizeDegrees(math.Atan2(d[1], d[0]) * 180 / math.Pi)
	return theta, phi, side
}

// HalfCrossingAngle converts the geometry's full crossing angle in mrad to
// half the angle in rad.
func HalfCrossingAngle(geo geometry.Provider) float64 {
	return geo.CrossingAngle() * 0.5 / 1000
}
