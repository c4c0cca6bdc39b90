package service

import "github.com/Michaelch2406/MascotaLink-sub003/module/tracking/domain"

type Accumulator struct {
	minMovement float64
}

func NewAccumulator(minMovementMeters float64) *Accumulator {
	return &Accumulator{minMovement: minMovementMeters}
}

// Accumulate returns the running total after moving from previous to
// accepted. The first accepted fix of a session contributes nothing.
func (a *Accumulator) Accumulate(accepted domain.PositionFix, previous *domain.PositionFix, total float64) float64 {
	if previous == nil {
		return total
	}
	return a.add(total, distanceMeters(*previous, accepted))
}

// add discards movements of minMovement or less.
func (a *Accumulator) add(total, delta float64) float64 {
	if delta > a.minMovement {
		return total + delta
	}
	return total
}
