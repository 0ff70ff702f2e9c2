package measure

import "testing"

func TestMinMaxEmpty(t *testing.T) {
	m := NewMinMax(24, true)
	if _, ok := m.Get(); ok {
		t.Error("expected no value before first Add")
	}
}

func TestMinMaxTracksMaximum(t *testing.T) {
	m := NewMinMax(3, true)
	m.Add(10)
	m.Add(25)
	m.Add(15)
	if v, _ := m.Get(); v != 25 {
		t.Errorf("Get() = %v, want 25", v)
	}
}

func TestMinMaxTracksMinimum(t *testing.T) {
	m := NewMinMax(3, false)
	m.Add(10)
	m.Add(-2.5)
	m.Add(15)
	if v, _ := m.Get(); v != -2.5 {
		t.Errorf("Get() = %v, want -2.5", v)
	}
}

func TestMinMaxRollsOff(t *testing.T) {
	m := NewMinMax(3, true)
	m.Add(30) // bucket 0
	m.Tick()
	m.Add(20) // bucket 1
	m.Tick()
	m.Add(10) // bucket 2

	if v, _ := m.Get(); v != 30 {
		t.Errorf("before rollover: Get() = %v, want 30", v)
	}

	m.Tick() // bucket 0 reused, 30 dropped
	if v, _ := m.Get(); v != 20 {
		t.Errorf("after rollover: Get() = %v, want 20", v)
	}

	m.Tick()
	m.Tick()
	m.Tick()
	if _, ok := m.Get(); ok {
		t.Error("expected no value after every bucket rolled off")
	}
}

func TestMinMaxSingleBucket(t *testing.T) {
	m := NewMinMax(0, false)
	m.Add(5)
	m.Tick()
	if _, ok := m.Get(); ok {
		t.Error("single bucket should empty on Tick")
	}
}
