package montecarlo

import (
	"hash/fnv"
	"math/rand/v2"
)

// PCGStreams derives an independent PCG stream per (name, index) from one seed
type PCGStreams struct {
	Seed uint64
}

// Stream returns the source for one archetype and trial
func (p PCGStreams) Stream(name string, index int) rand.Source {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return rand.NewPCG(p.Seed^h.Sum64(), uint64(index))
}
