package timebase

import "fmt"

// Convert rescales an integer position from one rate's unit into another's.
//
// The result is floor(v * to.Num * from.Den / (from.Num * to.Den)). Floor is
// used in every conversion path so that chained conversions never oscillate;
// converting back does not necessarily restore the original value once the
// target unit is coarser than the source.
func Convert(v int64, from, to Rate) int64 {
	if from == to {
		return v
	}
	return floorDiv(v*to.Num*from.Den, from.Num*to.Den)
}

// SnapToFrame returns the value in valueRate units closest to an exact frame
// boundary of frameRate. Snapping an already aligned value returns it
// unchanged.
func SnapToFrame(v int64, valueRate, frameRate Rate) int64 {
	if valueRate == frameRate {
		return v
	}
	frame := roundDiv(v*frameRate.Num*valueRate.Den, valueRate.Num*frameRate.Den)
	return roundDiv(frame*valueRate.Num*frameRate.Den, frameRate.Num*valueRate.Den)
}

// FormatTimecode renders an integer position as HH:MM:SS:FF using the
// truncated whole-unit rate for the frame field.
func FormatTimecode(v int64, r Rate) string {
	ups := r.UnitsPerSecond()
	if ups <= 0 {
		ups = 1
	}
	totalSeconds := floorDiv(v, ups)
	frames := v - totalSeconds*ups
	seconds := totalSeconds % 60
	minutes := (totalSeconds / 60) % 60
	hours := totalSeconds / 3600
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}

// floorDiv divides truncating toward negative infinity.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// roundDiv divides rounding half away from zero.
func roundDiv(a, b int64) int64 {
	if b < 0 {
		a, b = -a, -b
	}
	if a >= 0 {
		return (a + b/2) / b
	}
	return -((-a + b/2) / b)
}
