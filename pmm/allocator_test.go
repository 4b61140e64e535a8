package pmm

import "testing"

func TestAllocFreeRoundTrip(t *testing.T) {
	a, err := New(4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	p1, ok := a.Alloc()
	if !ok {
		t.Fatal("expected allocation to succeed")
	}
	p2, ok := a.Alloc()
	if !ok {
		t.Fatal("expected allocation to succeed")
	}
	if p1 == p2 {
		t.Fatalf("frame uniqueness violated: %v == %v", p1, p2)
	}

	pg := a.Page(p1)
	pg[0] = 0xAB
	if a.Page(p1)[0] != 0xAB {
		t.Fatal("write through Page did not persist")
	}

	a.Free(p1)
	p3, ok := a.Alloc()
	if !ok {
		t.Fatal("expected allocation after free to succeed")
	}
	if p3 != p1 {
		t.Fatalf("expected freed frame %v to be reused, got %v", p1, p3)
	}
}

func TestAllocExhaustion(t *testing.T) {
	a, err := New(2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if _, ok := a.Alloc(); !ok {
		t.Fatal("expected first allocation to succeed")
	}
	if _, ok := a.Alloc(); !ok {
		t.Fatal("expected second allocation to succeed")
	}
	if _, ok := a.Alloc(); ok {
		t.Fatal("expected third allocation to fail: budget exhausted")
	}
}

func TestZero(t *testing.T) {
	a, err := New(1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	p, ok := a.Alloc()
	if !ok {
		t.Fatal("expected allocation to succeed")
	}
	pg := a.Page(p)
	for i := range pg {
		pg[i] = 0xFF
	}
	a.Zero(p)
	for i, b := range a.Page(p) {
		if b != 0 {
			t.Fatalf("byte %d not zeroed: %v", i, b)
		}
	}
}
