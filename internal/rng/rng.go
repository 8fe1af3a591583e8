// Package rng provides explicitly seeded, splittable random streams. Every
// sampler iteration gets its own sub-stream derived from (run seed,
// iteration index), so iteration i is reproducible regardless of how many
// workers ran, in what order, or what other iterations did.
package rng

import "math/rand/v2"

// Stream is one pseudo-random stream. It is not safe for concurrent use;
// each worker derives its own via Split.
type Stream = rand.Rand

// Split derives the deterministic sub-stream for one iteration of a run.
func Split(seed uint64, index int) *Stream {
	lo := mix(seed + uint64(index)*0x9e3779b97f4a7c15)
	hi := mix(lo ^ seed)
	return rand.New(rand.NewPCG(lo, hi))
}

// mix is the splitmix64 finalizer. It decorrelates consecutive iteration
// indices so adjacent sub-streams share no structure.
func mix(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
