package state

import "github.com/Rohianon/folio/pkg/models"

const DefaultHistoryCapacity = 20

// History is a fixed-capacity ring buffer of portfolio value samples.
// When full, Push evicts the oldest point.
type History struct {
	points []models.HistoryPoint
	head   int // index of the oldest point
	size   int
}

// NewHistory creates a buffer holding at most capacity points. A capacity
// below 1 is treated as 1.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{points: make([]models.HistoryPoint, capacity)}
}

func (h *History) Push(p models.HistoryPoint) {
	if h.size < len(h.points) {
		h.points[(h.head+h.size)%len(h.points)] = p
		h.size++
		return
	}
	h.points[h.head] = p
	h.head = (h.head + 1) % len(h.points)
}

// Points returns a copy of the buffered points, oldest first.
func (h *History) Points() []models.HistoryPoint {
	out := make([]models.HistoryPoint, h.size)
	for i := range out {
		out[i] = h.points[(h.head+i)%len(h.points)]
	}
	return out
}

func (h *History) Len() int { return h.size }

func (h *History) Cap() int { return len(h.points) }

func (h *History) Reset() {
	clear(h.points)
	h.head = 0
	h.size = 0
}
