package oom

import "testing"

func TestNotifyNonBlocking(t *testing.T) {
	for i := 0; i < cap(Ch)+5; i++ {
		Notify(1)
	}
	drained := 0
	for {
		select {
		case <-Ch:
			drained++
			continue
		default:
		}
		break
	}
	if drained != cap(Ch) {
		t.Fatalf("expected channel to cap at %d, drained %d", cap(Ch), drained)
	}
}
