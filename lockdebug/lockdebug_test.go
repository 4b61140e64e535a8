package lockdebug

import "testing"

func TestInOrderAcquireSucceeds(t *testing.T) {
	exitTable := Enter(Table)
	exitEntry := Enter(Entry)
	exitEntry()
	exitTable()
}

func TestOutOfOrderAcquirePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on out-of-order acquire")
		}
	}()
	exitEntry := Enter(Entry)
	defer exitEntry()
	Enter(Table)
}
