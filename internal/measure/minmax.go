package measure

// MinMax tracks the extreme of a value over a rolling set of buckets.
// With 24 buckets ticked hourly it gives the last day's maximum or minimum.
type MinMax struct {
	buckets []float64
	valid   []bool
	cur     int
	max     bool
}

// NewMinMax creates a tracker with n buckets. max selects a maximum
// tracker; otherwise it tracks the minimum.
func NewMinMax(n int, max bool) *MinMax {
	if n < 1 {
		n = 1
	}
	return &MinMax{
		buckets: make([]float64, n),
		valid:   make([]bool, n),
		max:     max,
	}
}

// Add folds v into the current bucket.
func (m *MinMax) Add(v float64) {
	if !m.valid[m.cur] || m.better(v, m.buckets[m.cur]) {
		m.buckets[m.cur] = v
		m.valid[m.cur] = true
	}
}

// Tick starts a new bucket, dropping the oldest.
func (m *MinMax) Tick() {
	m.cur = (m.cur + 1) % len(m.buckets)
	m.valid[m.cur] = false
}

// Get returns the extreme over all buckets. ok is false before the first Add.
func (m *MinMax) Get() (v float64, ok bool) {
	for i, b := range m.buckets {
		if !m.valid[i] {
			continue
		}
		if !ok || m.better(b, v) {
			v = b
			ok = true
		}
	}
	return v, ok
}

func (m *MinMax) better(a, b float64) bool {
	if m.max {
		return a > b
	}
	return a < b
}
