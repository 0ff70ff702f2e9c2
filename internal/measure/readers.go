package measure

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// TempReader reads one temperature sensor in degrees Celsius.
type TempReader interface {
	ReadTemp() (float64, error)
}

// CurrentReader reads one raw motor current sample.
type CurrentReader interface {
	ReadCurrent() (int, error)
}

// SupplyReader reads one raw supply voltage sample.
type SupplyReader interface {
	ReadSupply() (int, error)
}

// powerOnReset is the DS18B20 scratchpad value before the first conversion.
const powerOnReset = 85000

// W1Reader reads a DS18B20 through the w1_therm sysfs interface.
// Dir is the device directory, e.g. /sys/bus/w1/devices/28-0000071c1a2b.
type W1Reader struct {
	Dir string
}

// ReadTemp implements TempReader. It prefers the "temperature" attribute
// and falls back to parsing w1_slave on older kernels.
func (r W1Reader) ReadTemp() (float64, error) {
	data, err := os.ReadFile(filepath.Join(r.Dir, "temperature"))
	if errors.Is(err, os.ErrNotExist) {
		return r.readSlave()
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", r.Dir, err)
	}
	return parseMilli(strings.TrimSpace(string(data)))
}

func (r W1Reader) readSlave() (float64, error) {
	data, err := os.ReadFile(filepath.Join(r.Dir, "w1_slave"))
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", r.Dir, err)
	}
	return ParseW1Slave(string(data))
}

// ParseW1Slave parses the two-line w1_slave format:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func ParseW1Slave(s string) (float64, error) {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) < 2 {
		return 0, errors.New("w1_slave: short read")
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return 0, errors.New("w1_slave: crc check failed")
	}
	i := strings.LastIndex(lines[1], "t=")
	if i < 0 {
		return 0, errors.New("w1_slave: no temperature field")
	}
	return parseMilli(strings.TrimSpace(lines[1][i+2:]))
}

func parseMilli(s string) (float64, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse temperature %q: %w", s, err)
	}
	if v == powerOnReset {
		return 0, errors.New("sensor not converted yet (power-on value)")
	}
	return float64(v) / 1000, nil
}

// IIOReader reads a raw ADC channel through the industrial I/O sysfs
// interface, e.g. /sys/bus/iio/devices/iio:device0/in_voltage0_raw.
type IIOReader struct {
	Path string
}

// ReadCurrent implements CurrentReader.
func (r IIOReader) ReadCurrent() (int, error) {
	return r.read()
}

// ReadSupply implements SupplyReader.
func (r IIOReader) ReadSupply() (int, error) {
	return r.read()
}

func (r IIOReader) read() (int, error) {
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", r.Path, err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", r.Path, err)
	}
	return v, nil
}

// FakeTemp is a test double returning a settable temperature.
type FakeTemp struct {
	Value float64
	Err   error
	Reads int
}

// ReadTemp implements TempReader.
func (f *FakeTemp) ReadTemp() (float64, error) {
	f.Reads++
	return f.Value, f.Err
}

// FakeCurrent is a test double returning a settable current.
type FakeCurrent struct {
	Value int
	Err   error
}

// ReadCurrent implements CurrentReader.
func (f *FakeCurrent) ReadCurrent() (int, error) {
	return f.Value, f.Err
}

// FakeSupply is a test double returning a settable supply sample.
type FakeSupply struct {
	Value int
	Err   error
}

// ReadSupply implements SupplyReader.
func (f *FakeSupply) ReadSupply() (int, error) {
	return f.Value, f.Err
}
