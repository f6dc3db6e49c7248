package timebase

import (
	"errors"
	"fmt"
)

// ErrInvalidRate indicates a rate with a non-positive numerator or denominator.
var ErrInvalidRate = errors.New("invalid rate")

// Rate expresses units per second as an integer numerator/denominator pair,
// e.g. 30/1 frames per second or 30000/1001 for NTSC, 48000/1 audio samples.
type Rate struct {
	Num int64 `json:"num"`
	Den int64 `json:"den"`
}

// NewRate validates and constructs a rate. A missing or non-positive rate is
// a construction-time error, never silently defaulted.
func NewRate(num, den int64) (Rate, error) {
	r := Rate{Num: num, Den: den}
	if !r.Valid() {
		return Rate{}, fmt.Errorf("%w: %d/%d", ErrInvalidRate, num, den)
	}
	return r, nil
}

// Valid reports whether both components are positive.
func (r Rate) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

// String renders the rate as "num/den".
func (r Rate) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Seconds returns the whole seconds covered by count units, truncated.
func (r Rate) Seconds(count int64) int64 {
	return floorDiv(count*r.Den, r.Num)
}

// UnitsPerSecond returns the integer unit count covering one second,
// truncated (29 for 30000/1001).
func (r Rate) UnitsPerSecond() int64 {
	return floorDiv(r.Num, r.Den)
}
