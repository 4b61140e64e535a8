package stats

import (
	"bytes"
	"testing"
)

func TestCounterInc(t *testing.T) {
	var c Counter_t
	c.Inc()
	c.Inc()
	if c.Load() != 2 {
		t.Fatalf("expected 2, got %d", c.Load())
	}
}

func TestDumpProfileWrites(t *testing.T) {
	v := &VM{}
	v.Faults.Inc()
	v.Major.Inc()

	var buf bytes.Buffer
	if err := v.DumpProfile(&buf); err != nil {
		t.Fatalf("DumpProfile: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected non-empty profile output")
	}
}
