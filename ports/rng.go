package ports

import (
	"math/rand/v2"
)

// RNGPort provides seeded random streams so that parallel trials stay
// reproducible regardless of scheduling order.
type RNGPort interface {
	// Stream returns the deterministic source for one named unit of work
	// (an archetype) and its index (a trial).
	Stream(name string, index int) rand.Source
}
