// Package stats counts fault-handler events and can dump them as a
// pprof-format profile for offline inspection with "go tool pprof".
package stats

import (
	"io"
	"sync/atomic"

	"github.com/google/pprof/profile"
)

// Counter_t is an atomically updated statistical counter, the same shape
// as the source's, minus the build-tag-gated no-op path: this core always
// counts, since the numbers feed the profile dump rather than an
// in-kernel printf.
type Counter_t int64

// Inc increments the counter by one.
func (c *Counter_t) Inc() {
	atomic.AddInt64((*int64)(c), 1)
}

// Load reads the current value.
func (c *Counter_t) Load() int64 {
	return atomic.LoadInt64((*int64)(c))
}

// VM aggregates the fault handler's event counts.
type VM struct {
	Faults      Counter_t
	Minor       Counter_t // pte already present (a COW split may still allocate; see CowCopies)
	Major       Counter_t // new pte allocated
	CowFast     Counter_t // cow_copy fast path (ref_count was 1)
	CowCopies   Counter_t // cow_copy allocated a private copy
	OutOfMemory Counter_t
	BadAddress  Counter_t
}

// DumpProfile renders the counters as a single-sample pprof profile, one
// value per counter, so they can be loaded with "go tool pprof -tree" for
// a quick look without a separate metrics pipeline.
func (v *VM) DumpProfile(w io.Writer) error {
	counters := []struct {
		name string
		c    *Counter_t
	}{
		{"faults", &v.Faults},
		{"minor_faults", &v.Minor},
		{"major_faults", &v.Major},
		{"cow_fast_path", &v.CowFast},
		{"cow_copies", &v.CowCopies},
		{"out_of_memory", &v.OutOfMemory},
		{"bad_address", &v.BadAddress},
	}

	p := &profile.Profile{
		SampleType: make([]*profile.ValueType, len(counters)),
		Sample:     make([]*profile.Sample, 1),
	}
	values := make([]int64, len(counters))
	for i, c := range counters {
		p.SampleType[i] = &profile.ValueType{Type: c.name, Unit: "count"}
		values[i] = c.c.Load()
	}
	p.Sample[0] = &profile.Sample{Value: values}

	return p.Write(w)
}
