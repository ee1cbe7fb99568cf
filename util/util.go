// Package util contains misc internal utilities.
package util

// Clamp restricts x to the closed interval [low, high]
func Clamp(x, low, high float64) float64 {
	if x < low {
		return low
	}
	if x > high {
		return high
	}
	return x
}

// GetBit returns the value of a given bit in an integer
func GetBit(v int, bitIndex uint) bool {
	return (v>>bitIndex)&1 == 1
}

// IntToBool converts C-style integer flags to bools, nonzero == true
func IntToBool(i int) bool {
	return i != 0
}
