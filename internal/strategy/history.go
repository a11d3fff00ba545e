package strategy

// Ring is a fixed-capacity price buffer. Once full, pushes overwrite the
// oldest sample.
type Ring struct {
	buf  []float64
	head int
	size int
}

// NewRing allocates a ring with the given capacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{buf: make([]float64, capacity)}
}

// Push appends a sample, evicting the oldest when full.
func (r *Ring) Push(v float64) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// Len returns the number of stored samples.
func (r *Ring) Len() int {
	return r.size
}

// Last returns the most recent sample.
func (r *Ring) Last() float64 {
	if r.size == 0 {
		return 0
	}
	return r.buf[(r.head-1+len(r.buf))%len(r.buf)]
}

// Values copies the samples out in chronological order.
func (r *Ring) Values() []float64 {
	out := make([]float64, r.size)
	start := (r.head - r.size + len(r.buf)) % len(r.buf)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

// HistoryArena owns one ring per symbol, all with the same capacity. Each
// strategy creates its own arena; rings are never shared across
// strategies.
type HistoryArena struct {
	capacity int
	rings    map[string]*Ring
}

// NewHistoryArena creates an arena whose rings hold capacity samples.
func NewHistoryArena(capacity int) *HistoryArena {
	return &HistoryArena{capacity: capacity, rings: make(map[string]*Ring)}
}

// Push records a sample for a symbol, creating its ring on first use.
func (a *HistoryArena) Push(symbol string, v float64) *Ring {
	ring, ok := a.rings[symbol]
	if !ok {
		ring = NewRing(a.capacity)
		a.rings[symbol] = ring
	}
	ring.Push(v)
	return ring
}

// Ring returns the ring for a symbol, or nil if none exists yet.
func (a *HistoryArena) Ring(symbol string) *Ring {
	return a.rings[symbol]
}
