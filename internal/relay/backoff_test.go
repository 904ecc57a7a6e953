package relay

import (
	"testing"
	"time"
)

func TestBackoffDoublesAndCaps(t *testing.T) {
	b := NewBackoff(5*time.Second, 10*time.Second)

	if d := b.Next(); d != 5*time.Second {
		t.Errorf("first Next() = %v, want 5s", d)
	}
	if d := b.Next(); d != 10*time.Second {
		t.Errorf("second Next() = %v, want 10s (5*2)", d)
	}
	if d := b.Next(); d != 10*time.Second {
		t.Errorf("third Next() = %v, want capped at 10s", d)
	}
}

func TestBackoffResetReturnsToMin(t *testing.T) {
	b := NewBackoff(5*time.Second, 10*time.Second)
	b.Next()
	b.Next()
	b.Reset()
	if d := b.Next(); d != 5*time.Second {
		t.Errorf("Next() after Reset() = %v, want 5s", d)
	}
}
