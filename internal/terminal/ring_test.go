package terminal

import (
	"bytes"
	"testing"
)

func TestRingKeepsEverythingUnderCapacity(t *testing.T) {
	r := NewRing(16)
	if _, err := r.Write([]byte("hello ")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := r.Write([]byte("world")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if got := r.Drain(); string(got) != "hello world" {
		t.Errorf("Drain = %q, want %q", got, "hello world")
	}
	if r.Len() != 0 {
		t.Errorf("Len after drain = %d, want 0", r.Len())
	}
}

func TestRingDropsOldestWhenFull(t *testing.T) {
	r := NewRing(8)
	if _, err := r.Write([]byte("abcdefgh")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := r.Write([]byte("XY")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if got := r.Drain(); string(got) != "cdefghXY" {
		t.Errorf("Drain = %q, want newest 8 bytes %q", got, "cdefghXY")
	}
}

func TestRingOversizedWriteKeepsTail(t *testing.T) {
	r := NewRing(4)
	n, err := r.Write([]byte("0123456789"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	// Write never reports a short count even when bytes are dropped.
	if n != 10 {
		t.Errorf("Write returned %d, want 10", n)
	}
	if got := r.Drain(); string(got) != "6789" {
		t.Errorf("Drain = %q, want %q", got, "6789")
	}
}

func TestRingNotifiesWaiter(t *testing.T) {
	r := NewRing(16)
	select {
	case <-r.Wait():
		t.Fatal("Wait fired before any write")
	default:
	}

	if _, err := r.Write([]byte("x")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	select {
	case <-r.Wait():
	default:
		t.Error("Wait did not fire after a write")
	}
}

func TestRingDrainEmpty(t *testing.T) {
	r := NewRing(16)
	if got := r.Drain(); got != nil {
		t.Errorf("Drain on empty ring = %v, want nil", got)
	}
}

func TestRingWrapAroundOrder(t *testing.T) {
	r := NewRing(4)
	for _, chunk := range [][]byte{[]byte("ab"), []byte("cd"), []byte("ef")} {
		if _, err := r.Write(chunk); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if got := r.Drain(); !bytes.Equal(got, []byte("cdef")) {
		t.Errorf("Drain = %q, want %q", got, "cdef")
	}
}
