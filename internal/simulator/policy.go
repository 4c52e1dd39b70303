package simulator

import "fmt"

// Decision is what the automatic pump policy asks for.
type Decision int

const (
	NoAction Decision = iota
	Activate
	Deactivate
)

func (d Decision) String() string {
	switch d {
	case Activate:
		return "activate"
	case Deactivate:
		return "deactivate"
	default:
		return "none"
	}
}

// Policy holds the humidity thresholds. Both bounds are exclusive: a reading
// equal to Low or High takes no action.
type Policy struct {
	Low  int
	High int
}

func DefaultPolicy() Policy { return Policy{Low: 30, High: 70} }

func (p Policy) Validate() error {
	if p.Low < 0 || p.High > 100 || p.Low > p.High {
		return fmt.Errorf("invalid humidity thresholds low=%d high=%d", p.Low, p.High)
	}
	return nil
}

// Decide is stateless: it only looks at the last humidity and the current
// belief, so it never debounces across evaluations. The stored humidity may
// be fractional and is compared as is.
func Decide(humidity float64, active bool, p Policy) Decision {
	switch {
	case humidity < float64(p.Low) && !active:
		return Activate
	case humidity > float64(p.High) && active:
		return Deactivate
	default:
		return NoAction
	}
}
