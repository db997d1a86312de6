package hlebios

import "math"

// arcTan and arcTan2 reproduce SWI ArcTan/ArcTan2's fixed-point contract:
// inputs and outputs are 1.14/0.16 fixed-point values scaled against a
// full circle of 0x10000 "BIOS units" rather than radians or degrees.
func arcTan(x int16) int16 {
	rad := math.Atan(float64(x) / 16384.0)
	return angleFromRadians(rad)
}

func arcTan2(x, y int16) int16 {
	rad := math.Atan2(float64(y), float64(x))
	return angleFromRadians(rad)
}

func angleFromRadians(rad float64) int16 {
	units := rad / (2 * math.Pi) * 65536.0
	return int16(int32(units))
}
