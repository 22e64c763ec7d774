package background

import "math/rand/v2"

// EventRand returns the random source for one event. The seed depends only
// on the base seed and the event identity, never on processing order, so
// events can be processed in any order or in parallel and still reproduce.
func EventRand(baseSeed uint64, run, event int64) *rand.Rand {
	s1 := splitmix(baseSeed ^ splitmix(uint64(run)))
	s2 := splitmix(s1 ^ uint64(event))
	return rand.New(rand.NewPCG(s1, s2))
}

func splitmix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
