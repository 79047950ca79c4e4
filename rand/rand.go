// rand/rand.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package rand

import (
	"github.com/MichaelTJones/pcg"
)

///////////////////////////////////////////////////////////////////////////
// Random numbers.

// Rand is a small seedable PRNG. Components that need reproducible
// sequences (the simulated position feed, property tests) hold their own
// Rand rather than sharing the package-level one.
type Rand struct {
	r *pcg.PCG32
}

func Make() *Rand {
	return &Rand{r: pcg.NewPCG32()}
}

// MakeSeeded returns a Rand that produces the same sequence for the same
// seed.
func MakeSeeded(s int64) *Rand {
	r := Make()
	r.Seed(s)
	return r
}

func (r *Rand) Seed(s int64) {
	r.r.Seed(uint64(s), 0xda3e39cb94b95bdb)
}

func (r *Rand) Intn(n int) int {
	return int(r.r.Bounded(uint32(n)))
}

// Float32 returns a value in [0,1].
func (r *Rand) Float32() float32 {
	return float32(r.r.Random()) / (1<<32 - 1)
}

// Range returns a value uniformly distributed in [a,b].
func (r *Rand) Range(a, b float32) float32 {
	return a + (b-a)*r.Float32()
}

func (r *Rand) Uint32() uint32 {
	return r.r.Random()
}
