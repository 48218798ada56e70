// Package penalty shapes rewards by response length.
package penalty

import "math"

// Overlong is the linear overlong-buffer penalty: responses longer than
// MaxResponseLength-BufferLength lose PenaltyFactor per BufferLength tokens
type Overlong struct {
	Enabled           bool
	BufferLength      int
	PenaltyFactor     float64
	MaxResponseLength int
}

// Adjust returns the non-positive penalty for a response of length tokens
func (o Overlong) Adjust(length int) float64 {
	if !o.Enabled || o.BufferLength <= 0 {
		return 0
	}
	expected := o.MaxResponseLength - o.BufferLength
	exceed := float64(length - expected)
	reward := -exceed / float64(o.BufferLength) * o.PenaltyFactor
	return round4(math.Min(reward, 0))
}

// Curve is the multiplicative length reward: 1.0 up to Soft, a gentle linear
// decline to 0.9 at Hard, then a quadratic decline towards Floor at Max
type Curve struct {
	Soft  int
	Hard  int
	Max   int
	Floor float64
}

// DefaultCurve returns the 4096/8192/24576 curve with a 0.1 floor
func DefaultCurve() Curve {
	return Curve{Soft: 4096, Hard: 8192, Max: 24 * 1024, Floor: 0.1}
}

// Reward returns the length multiplier in [Floor, 1]
func (c Curve) Reward(length int) float64 {
	if length <= c.Soft {
		return 1.0
	}
	if length <= c.Hard {
		ratio := float64(length-c.Soft) / float64(c.Hard-c.Soft)
		return round4(1.0 - 0.1*ratio)
	}
	ratio := float64(length-c.Hard) / float64(c.Max-c.Hard)
	reward := 0.9 - 0.8*ratio*ratio
	return round4(math.Max(reward, c.Floor))
}

func round4(v float64) float64 {
	r := math.Round(v*1e4) / 1e4
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}
