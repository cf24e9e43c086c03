package game

import (
	"math"
	"time"
)

const (
	MIN_CRASH_POINT    = 1.01
	MAX_CRASH_POINT    = 1000.00
	MAX_ROUND_DURATION = 30 * time.Second
)

// Curve is the multiplier growth function m(t) = e^(Rate*t), capped at the
// round's crash point. The shape does not depend on the crash point, so the
// rising multiplier leaks nothing about where the round will end; the crash
// point only decides when the curve stops.
type Curve struct {
	Rate float64 // growth exponent per second
}

// DefaultCurve reaches MAX_CRASH_POINT after MAX_ROUND_DURATION.
func DefaultCurve() Curve {
	return Curve{Rate: math.Log(MAX_CRASH_POINT) / MAX_ROUND_DURATION.Seconds()}
}

// TargetDuration is how long a round with the given crash point stays Active.
func (c Curve) TargetDuration(crashPoint float64) time.Duration {
	if crashPoint <= 1 || c.Rate <= 0 {
		return 0
	}
	return time.Duration(math.Log(crashPoint) / c.Rate * float64(time.Second))
}

// MultiplierAt evaluates the curve. It is a pure function of its inputs and
// may be re-sampled at any frequency.
func (c Curve) MultiplierAt(elapsed time.Duration, crashPoint float64) float64 {
	if elapsed <= 0 {
		return 1.0
	}
	if elapsed >= c.TargetDuration(crashPoint) {
		return crashPoint
	}
	m := math.Exp(c.Rate * elapsed.Seconds())
	if m > crashPoint {
		return crashPoint
	}
	return m
}

// MultiplierAt evaluates the default curve.
func MultiplierAt(elapsed time.Duration, crashPoint float64) float64 {
	return DefaultCurve().MultiplierAt(elapsed, crashPoint)
}

// TargetDuration evaluates the default curve.
func TargetDuration(crashPoint float64) time.Duration {
	return DefaultCurve().TargetDuration(crashPoint)
}

// floor2 truncates to two decimals; the epsilon absorbs binary
// representation error such as 2.3*100 = 229.99999999999997.
func floor2(v float64) float64 {
	return math.Floor(v*100+1e-9) / 100
}
