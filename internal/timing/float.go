package timing

import (
	"math"
	"sync/atomic"
)

// Float64 is a float64 that can be read by a timing loop while other
// goroutines write it.
type Float64 struct {
	bits atomic.Uint64
}

func NewFloat64(v float64) *Float64 {
	f := &Float64{}
	f.Store(v)
	return f
}

func (f *Float64) Load() float64 { return math.Float64frombits(f.bits.Load()) }

func (f *Float64) Store(v float64) { f.bits.Store(math.Float64bits(v)) }
