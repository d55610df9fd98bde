package clock

import (
	"testing"
	"time"
)

func TestSystem_IsUTC(t *testing.T) {
	if loc := (System{}).Now().Location(); loc != time.UTC {
		t.Fatalf("expected UTC, got %v", loc)
	}
}

func TestManual_SetAndAdvance(t *testing.T) {
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewManual(t0)

	if !c.Now().Equal(t0) {
		t.Fatalf("Now=%v want %v", c.Now(), t0)
	}

	c.Advance(90 * time.Second)
	if want := t0.Add(90 * time.Second); !c.Now().Equal(want) {
		t.Fatalf("Now=%v want %v", c.Now(), want)
	}

	c.Set(t0)
	if !c.Now().Equal(t0) {
		t.Fatalf("Set did not apply")
	}
}

func TestFunc(t *testing.T) {
	t0 := time.Unix(42, 0)
	var c Clock = Func(func() time.Time { return t0 })
	if !c.Now().Equal(t0) {
		t.Fatalf("Func clock mismatch")
	}
}
