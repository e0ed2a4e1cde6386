// Package mediatime provides exact rational timestamps for slicing and
// concatenating media without floating-point drift.
//
// A Time is Value/Timescale seconds. Arithmetic between two times is carried
// out on the least common multiple of their timescales; when that would exceed
// MaxTimescale the result is rounded onto DefaultTimescale instead.
package mediatime

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

const (
	// DefaultTimescale is used for seconds conversion and as the fallback
	// timescale for intermediate arithmetic. 600 divides the common video
	// frame rates (24, 25, 30, 60) evenly.
	DefaultTimescale int64 = 600

	// MaxTimescale bounds the common timescale chosen by arithmetic.
	MaxTimescale int64 = 1 << 30
)

// Time is a rational timestamp. The zero value is zero seconds.
type Time struct {
	Value     int64 `json:"value"`
	Timescale int64 `json:"timescale"`
}

// Zero is 0 seconds on the default timescale.
var Zero = Time{Value: 0, Timescale: DefaultTimescale}

// New returns value/timescale seconds. A non-positive timescale is replaced by
// DefaultTimescale so the timescale > 0 invariant always holds.
func New(value, timescale int64) Time {
	if timescale <= 0 {
		timescale = DefaultTimescale
	}
	return Time{Value: value, Timescale: timescale}
}

// FromSeconds converts floating seconds onto DefaultTimescale, rounding to
// the nearest tick.
func FromSeconds(seconds float64) Time {
	return FromSecondsScale(seconds, DefaultTimescale)
}

// FromSecondsScale converts floating seconds onto the given timescale.
func FromSecondsScale(seconds float64, timescale int64) Time {
	if timescale <= 0 {
		timescale = DefaultTimescale
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return Time{Value: 0, Timescale: timescale}
	}
	return Time{Value: int64(math.Round(seconds * float64(timescale))), Timescale: timescale}
}

// Seconds returns the time as floating seconds.
func (t Time) Seconds() float64 {
	return float64(t.Value) / float64(t.scale())
}

func (t Time) scale() int64 {
	if t.Timescale <= 0 {
		return DefaultTimescale
	}
	return t.Timescale
}

// Rescale converts t onto timescale, rounding half away from zero when the
// conversion is not exact. Results beyond the int64 range saturate.
func (t Time) Rescale(timescale int64) Time {
	if timescale <= 0 {
		timescale = DefaultTimescale
	}
	from := t.scale()
	if from == timescale {
		return Time{Value: t.Value, Timescale: timescale}
	}
	mag, neg := abs64(t.Value)
	hi, lo := bits.Mul64(mag, uint64(timescale))
	if hi >= uint64(from) {
		return Time{Value: saturate(neg), Timescale: timescale}
	}
	q, r := bits.Div64(hi, lo, uint64(from))
	if 2*r >= uint64(from) {
		q++
	}
	if q > math.MaxInt64 {
		return Time{Value: saturate(neg), Timescale: timescale}
	}
	v := int64(q)
	if neg {
		v = -v
	}
	return Time{Value: v, Timescale: timescale}
}

func abs64(v int64) (uint64, bool) {
	if v < 0 {
		return uint64(-(v + 1)) + 1, true
	}
	return uint64(v), false
}

func saturate(neg bool) int64 {
	if neg {
		return -math.MaxInt64
	}
	return math.MaxInt64
}

// common returns a and b expressed on a shared timescale.
func common(a, b Time) (int64, int64, int64) {
	as, bs := a.scale(), b.scale()
	if as == bs {
		return a.Value, b.Value, as
	}
	ts := lcm(as, bs)
	if ts <= 0 || ts > MaxTimescale {
		ts = DefaultTimescale
	}
	return a.Rescale(ts).Value, b.Rescale(ts).Value, ts
}

// Add returns t + u.
func (t Time) Add(u Time) Time {
	a, b, ts := common(t, u)
	return Time{Value: a + b, Timescale: ts}
}

// Sub returns t - u.
func (t Time) Sub(u Time) Time {
	a, b, ts := common(t, u)
	return Time{Value: a - b, Timescale: ts}
}

// Compare returns -1, 0 or +1 as t is before, equal to or after u. The
// comparison is exact: it cross-multiplies in 128 bits instead of rescaling.
func (t Time) Compare(u Time) int {
	ts, us := t.scale(), u.scale()
	if ts == us {
		return cmpInt(t.Value, u.Value)
	}
	// Timescales are positive, so the sign of each product is the sign of
	// its value.
	if c := cmpInt(sign(t.Value), sign(u.Value)); c != 0 || t.Value == 0 {
		return c
	}
	lm, neg := abs64(t.Value)
	rm, _ := abs64(u.Value)
	lhi, llo := bits.Mul64(lm, uint64(us))
	rhi, rlo := bits.Mul64(rm, uint64(ts))
	c := cmpUint(lhi, rhi)
	if c == 0 {
		c = cmpUint(llo, rlo)
	}
	if neg {
		return -c
	}
	return c
}

func sign(v int64) int64 {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (t Time) Before(u Time) bool { return t.Compare(u) < 0 }
func (t Time) After(u Time) bool  { return t.Compare(u) > 0 }
func (t Time) Equal(u Time) bool  { return t.Compare(u) == 0 }

// IsZero reports whether t is zero seconds.
func (t Time) IsZero() bool { return t.Value == 0 }

// IsPositive reports whether t is strictly greater than zero.
func (t Time) IsPositive() bool { return t.Value > 0 }

// Min returns the earliest of the given times. Min() with no arguments is Zero.
func Min(ts ...Time) Time {
	if len(ts) == 0 {
		return Zero
	}
	m := ts[0]
	for _, t := range ts[1:] {
		if t.Before(m) {
			m = t
		}
	}
	return m
}

// Max returns the latest of the given times. Max() with no arguments is Zero.
func Max(ts ...Time) Time {
	if len(ts) == 0 {
		return Zero
	}
	m := ts[0]
	for _, t := range ts[1:] {
		if t.After(m) {
			m = t
		}
	}
	return m
}

// String formats t the way FCPXML does: "0s", "30s" or "601/600s".
func (t Time) String() string {
	if t.Value == 0 {
		return "0s"
	}
	ts := t.scale()
	if t.Value%ts == 0 {
		return strconv.FormatInt(t.Value/ts, 10) + "s"
	}
	return fmt.Sprintf("%d/%ds", t.Value, ts)
}

// Parse reads a time in the String format.
func Parse(s string) (Time, error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "s") {
		return Time{}, fmt.Errorf("invalid time %q: missing s suffix", s)
	}
	body := strings.TrimSuffix(s, "s")
	num, den, hasDen := strings.Cut(body, "/")
	value, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return Time{}, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if !hasDen {
		return Time{Value: value, Timescale: 1}, nil
	}
	timescale, err := strconv.ParseInt(den, 10, 64)
	if err != nil {
		return Time{}, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if timescale <= 0 {
		return Time{}, fmt.Errorf("invalid time %q: timescale must be positive", s)
	}
	return Time{Value: value, Timescale: timescale}, nil
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a < 0 {
		return -a
	}
	return a
}

func lcm(a, b int64) int64 {
	g := gcd(a, b)
	if g == 0 {
		return 0
	}
	return a / g * b
}
