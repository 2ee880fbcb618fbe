package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_NewTicker(t *testing.T) {
	clock := RealClock{}
	ticker := clock.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Error("ticker did not fire")
	}
}

func TestMockClock_SetAndAdvance(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	if !clock.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", clock.Now(), start)
	}
	clock.Advance(90 * time.Second)
	if want := start.Add(90 * time.Second); !clock.Now().Equal(want) {
		t.Errorf("Now() = %v, want %v", clock.Now(), want)
	}
	clock.Set(start)
	if !clock.Now().Equal(start) {
		t.Errorf("Now() after Set = %v, want %v", clock.Now(), start)
	}
}

func TestMockTicker_FiresOnSchedule(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	ticker := clock.NewTicker(time.Minute)

	clock.Advance(30 * time.Second)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired early")
	default:
	}

	clock.Advance(30 * time.Second)
	select {
	case got := <-ticker.C():
		if !got.Equal(time.Unix(60, 0)) {
			t.Errorf("tick at %v, want %v", got, time.Unix(60, 0))
		}
	default:
		t.Fatal("ticker did not fire")
	}

	// next tick is one interval after the last
	clock.Advance(59 * time.Second)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired before its second interval")
	default:
	}
}

func TestMockTicker_StopAndTrigger(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	ticker := clock.NewTicker(time.Second)
	ticker.Stop()

	clock.Advance(time.Hour)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker fired")
	default:
	}

	mt := ticker.(*MockTicker)
	mt.Trigger(time.Unix(5, 0))
	mt.Trigger(time.Unix(6, 0)) // dropped, channel full
	if got := <-ticker.C(); !got.Equal(time.Unix(5, 0)) {
		t.Errorf("Trigger delivered %v", got)
	}
	select {
	case <-ticker.C():
		t.Fatal("second trigger should have been dropped")
	default:
	}
}
