package mediatime

import "fmt"

// Range is the span from Start to Start+Duration. Overlaps and Intersect
// treat it as half-open, so ranges that touch do not overlap; Contains
// includes both endpoints so a ramp holds its final value at End.
type Range struct {
	Start    Time `json:"start"`
	Duration Time `json:"duration"`
}

// NewRange builds a range, clamping a negative duration to zero.
func NewRange(start, duration Time) Range {
	if duration.Value < 0 {
		duration = Time{Value: 0, Timescale: duration.scale()}
	}
	return Range{Start: start, Duration: duration}
}

// RangeFromTo builds the range [start, end). end before start yields an
// empty range at start.
func RangeFromTo(start, end Time) Range {
	return NewRange(start, end.Sub(start))
}

// End returns Start + Duration.
func (r Range) End() Time {
	return r.Start.Add(r.Duration)
}

// IsEmpty reports whether the range has no duration.
func (r Range) IsEmpty() bool {
	return r.Duration.Value <= 0
}

// Contains reports whether t lies in the closed interval [Start, End].
func (r Range) Contains(t Time) bool {
	return t.Compare(r.Start) >= 0 && t.Compare(r.End()) <= 0
}

// Overlaps reports whether r and o share any instant. Ranges that only touch
// at an endpoint do not overlap.
func (r Range) Overlaps(o Range) bool {
	return r.Start.Before(o.End()) && o.Start.Before(r.End())
}

// Intersect returns the overlapping part of r and o, or an empty range at the
// later start when they do not overlap.
func (r Range) Intersect(o Range) Range {
	start := Max(r.Start, o.Start)
	end := Min(r.End(), o.End())
	return RangeFromTo(start, end)
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start, r.End())
}
