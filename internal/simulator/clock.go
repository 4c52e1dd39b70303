package simulator

import "time"

// Clock lets tests run long sessions without real elapsed time.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Rand is the random source; *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
