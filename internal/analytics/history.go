package analytics

// History is a fixed-capacity ring buffer of metric snapshots. The oldest
// entry is evicted when a new one is appended to a full buffer.
// Not safe for concurrent use.
type History struct {
	entries []Metrics
	start   int
	size    int
}

// NewHistory creates a history holding at most capacity entries.
// A capacity below one is raised to one.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{entries: make([]Metrics, capacity)}
}

// Append stores m as the newest entry.
func (h *History) Append(m Metrics) {
	capacity := len(h.entries)
	if h.size < capacity {
		h.entries[(h.start+h.size)%capacity] = m
		h.size++
		return
	}
	h.entries[h.start] = m
	h.start = (h.start + 1) % capacity
}

// Len returns the number of stored entries.
func (h *History) Len() int { return h.size }

// Cap returns the buffer capacity.
func (h *History) Cap() int { return len(h.entries) }

// Last returns up to k of the newest entries ordered oldest to newest.
func (h *History) Last(k int) []Metrics {
	if k <= 0 || h.size == 0 {
		return nil
	}
	if k > h.size {
		k = h.size
	}
	out := make([]Metrics, 0, k)
	capacity := len(h.entries)
	for i := h.size - k; i < h.size; i++ {
		out = append(out, h.entries[(h.start+i)%capacity].Clone())
	}
	return out
}
