package measure

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/vent-controller/internal/window"
)

type fixedThresholds map[window.Axis][2]float64

func (f fixedThresholds) Thresholds(a window.Axis) (float64, float64) {
	v := f[a]
	return v[0], v[1]
}

func newTestBank() (*Bank, *FakeTemp, *FakeTemp, *FakeTemp, *FakeCurrent, *FakeCurrent) {
	low, high, out := &FakeTemp{Value: 20}, &FakeTemp{Value: 22}, &FakeTemp{Value: 12}
	cl, ch := &FakeCurrent{}, &FakeCurrent{}
	th := fixedThresholds{
		window.AxisLow:  {25, 18},
		window.AxisHigh: {28, 20},
	}
	b := NewBank(th, Sensors{Low: low, High: high, Out: out, CurrentLow: cl, CurrentHigh: ch})
	return b, low, high, out, cl, ch
}

func TestBankRotatesSensors(t *testing.T) {
	b, low, high, out, _, _ := newTestBank()

	for i := 0; i < 6; i++ {
		if err := b.Poll(time.Duration(i) * time.Second); err != nil {
			t.Fatalf("poll %d: %v", i, err)
		}
	}
	if low.Reads != 2 || high.Reads != 2 || out.Reads != 2 {
		t.Errorf("reads low=%d high=%d out=%d, want 2 each", low.Reads, high.Reads, out.Reads)
	}
}

func TestBankLimitsBeforeReading(t *testing.T) {
	b, _, _, _, _, _ := newTestBank()

	if _, _, _, ok := b.Limits(window.AxisLow); ok {
		t.Error("expected ok=false before first reading")
	}

	b.Poll(0) // low only
	now, up, down, ok := b.Limits(window.AxisLow)
	if !ok {
		t.Fatal("expected ok=true after low reading")
	}
	if now != 20 || up != 25 || down != 18 {
		t.Errorf("Limits(low) = %v/%v/%v, want 20/25/18", now, up, down)
	}
	if _, _, _, ok := b.Limits(window.AxisHigh); ok {
		t.Error("high not read yet")
	}
}

func TestBankOutAxisNeverApplies(t *testing.T) {
	b, _, _, _, _, _ := newTestBank()
	for i := 0; i < 3; i++ {
		b.Poll(0)
	}
	if _, _, _, ok := b.Limits(window.AxisOut); ok {
		t.Error("out axis should never report limits")
	}
	if b.Current(window.AxisOut) != 0 {
		t.Error("out axis has no current")
	}
}

func TestBankCurrentsSampledEveryPoll(t *testing.T) {
	b, _, _, _, cl, ch := newTestBank()
	cl.Value, ch.Value = 120, 640

	b.Poll(0)
	if b.Current(window.AxisLow) != 120 || b.Current(window.AxisHigh) != 640 {
		t.Errorf("currents %d/%d, want 120/640", b.Current(window.AxisLow), b.Current(window.AxisHigh))
	}

	ch.Value = 10
	b.Poll(time.Second)
	if b.Current(window.AxisHigh) != 10 {
		t.Errorf("high current %d, want 10", b.Current(window.AxisHigh))
	}
}

func TestBankCurrentReadErrorClearsSample(t *testing.T) {
	b, _, _, _, cl, _ := newTestBank()
	cl.Value = 600 // end-stop stall
	b.Poll(0)

	cl.Err = errors.New("EIO")
	err := b.Poll(time.Second)
	if err == nil || !strings.Contains(err.Error(), "low current") {
		t.Fatalf("expected low current error, got %v", err)
	}
	if got := b.Current(window.AxisLow); got != 0 {
		t.Errorf("current after failed read: got %d, want 0", got)
	}

	cl.Err = nil
	cl.Value = 80
	b.Poll(2 * time.Second)
	if got := b.Current(window.AxisLow); got != 80 {
		t.Errorf("current after recovery: got %d, want 80", got)
	}
}

func TestBankSupplyVoltage(t *testing.T) {
	supply := &FakeSupply{Value: 1250}
	b := NewBank(fixedThresholds{}, Sensors{Supply: supply, SupplyScale: 0.01})

	if s := b.Supply(); !s.Configured || s.Valid {
		t.Errorf("before first poll: %+v", s)
	}

	b.Poll(0)
	s := b.Supply()
	if !s.Valid || s.Raw != 1250 || s.Volts != 12.5 {
		t.Errorf("supply %+v, want 1250 raw / 12.5V", s)
	}

	supply.Err = errors.New("EIO")
	if err := b.Poll(time.Second); err == nil || !strings.Contains(err.Error(), "supply") {
		t.Fatalf("expected supply error, got %v", err)
	}
	s = b.Supply()
	if !s.Valid || s.Volts != 12.5 || s.Failures != 1 {
		t.Errorf("after failed read: %+v, want last good 12.5V and 1 failure", s)
	}

	if NewBank(fixedThresholds{}, Sensors{}).Supply().Configured {
		t.Error("no supply reader should not be configured")
	}
}

func TestBankReadErrorKeepsLastValue(t *testing.T) {
	b, low, _, _, _, _ := newTestBank()
	b.Poll(0)

	low.Value = 99
	low.Err = errors.New("bus timeout")
	b.Poll(time.Second)            // high
	b.Poll(2 * time.Second)        // out
	err := b.Poll(3 * time.Second) // low fails
	if err == nil || !strings.Contains(err.Error(), "low temperature") {
		t.Fatalf("expected low temperature error, got %v", err)
	}

	now, _, _, ok := b.Limits(window.AxisLow)
	if !ok || now != 20 {
		t.Errorf("Limits(low) now=%v ok=%v, want last good 20", now, ok)
	}
	if r := b.Readings()[window.AxisLow]; r.Failures != 1 {
		t.Errorf("Failures = %d, want 1", r.Failures)
	}
}

func TestBankDailyMinMax(t *testing.T) {
	b, low, _, _, _, _ := newTestBank()
	start := 10 * time.Second

	// Hour 0: 20 then 30
	b.Poll(start)
	low.Value = 30
	b.Poll(start + time.Second)
	b.Poll(start + 2*time.Second)
	b.Poll(start + 3*time.Second)

	r := b.Readings()[window.AxisLow]
	if r.Max != 30 || r.Min != 20 {
		t.Errorf("hour 0: min/max %v/%v, want 20/30", r.Min, r.Max)
	}

	// A day later the first hour has rolled off
	low.Value = 15
	later := start + 25*time.Hour
	b.Poll(later)
	b.Poll(later + time.Second)
	b.Poll(later + 2*time.Second)

	r = b.Readings()[window.AxisLow]
	if r.Max != 15 || r.Min != 15 {
		t.Errorf("after a day: min/max %v/%v, want 15/15", r.Min, r.Max)
	}
}

func TestBankReadings(t *testing.T) {
	b, _, _, _, cl, _ := newTestBank()
	cl.Value = 42
	b.Poll(0)
	b.Poll(0)
	b.Poll(0)

	rs := b.Readings()
	if len(rs) != 3 {
		t.Fatalf("got %d readings, want 3", len(rs))
	}
	if rs[0].Axis != window.AxisLow || rs[2].Axis != window.AxisOut {
		t.Errorf("unexpected order: %v, %v", rs[0].Axis, rs[2].Axis)
	}
	if rs[1].Now != 22 || rs[1].Open != 28 || rs[1].Close != 20 {
		t.Errorf("high reading %+v", rs[1])
	}
	if rs[0].Current != 42 {
		t.Errorf("low current %d, want 42", rs[0].Current)
	}
	if !rs[2].Valid || rs[2].Now != 12 {
		t.Errorf("out reading %+v", rs[2])
	}
}

func TestBankNilReaders(t *testing.T) {
	b := NewBank(fixedThresholds{}, Sensors{})
	for i := 0; i < 3; i++ {
		if err := b.Poll(0); err != nil {
			t.Errorf("poll with no readers: %v", err)
		}
	}
	if _, _, _, ok := b.Limits(window.AxisLow); ok {
		t.Error("no reader should never report limits")
	}
}

func TestBankSatisfiesSupervisor(t *testing.T) {
	b, _, _, _, _, _ := newTestBank()
	var _ window.LimitSource = b
	var _ window.CurrentSource = b
}

func TestW1ReaderTemperatureFile(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "temperature"), []byte("23125\n"), 0o644)

	v, err := W1Reader{Dir: dir}.ReadTemp()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 23.125 {
		t.Errorf("ReadTemp() = %v, want 23.125", v)
	}
}

func TestW1ReaderFallsBackToSlave(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "w1_slave"), []byte(
		"72 01 4b 46 7f ff 0e 10 57 : crc=57 YES\n72 01 4b 46 7f ff 0e 10 57 t=-1500\n"), 0o644)

	v, err := W1Reader{Dir: dir}.ReadTemp()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != -1.5 {
		t.Errorf("ReadTemp() = %v, want -1.5", v)
	}
}

func TestW1ReaderMissingDevice(t *testing.T) {
	if _, err := (W1Reader{Dir: filepath.Join(t.TempDir(), "28-gone")}).ReadTemp(); err == nil {
		t.Error("expected error for missing device")
	}
}

func TestParseW1Slave(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    float64
		wantErr bool
	}{
		{"ok", "aa : crc=57 YES\naa t=18062", 18.062, false},
		{"crc fail", "aa : crc=57 NO\naa t=18062", 0, true},
		{"short", "aa : crc=57 YES", 0, true},
		{"no t", "aa : crc=57 YES\naa", 0, true},
		{"power on", "aa : crc=57 YES\naa t=85000", 0, true},
		{"garbage", "aa : crc=57 YES\naa t=hot", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseW1Slave(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIIOReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in_voltage0_raw")
	os.WriteFile(path, []byte("517\n"), 0o644)

	v, err := IIOReader{Path: path}.ReadCurrent()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 517 {
		t.Errorf("ReadCurrent() = %d, want 517", v)
	}

	if v, err := (IIOReader{Path: path}).ReadSupply(); err != nil || v != 517 {
		t.Errorf("ReadSupply() = %d, %v, want 517", v, err)
	}

	os.WriteFile(path, []byte("n/a"), 0o644)
	if _, err := (IIOReader{Path: path}).ReadCurrent(); err == nil {
		t.Error("expected parse error")
	}
}
