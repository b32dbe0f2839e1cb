package fanout

import "quiz-recommender/internal/models"

// Accumulator merges businesses keyed by id; the first record seen for an id is kept.
type Accumulator struct {
	order []string
	byID  map[string]models.Business
}

func NewAccumulator() *Accumulator {
	return &Accumulator{byID: make(map[string]models.Business)}
}

// Add reports whether b was new. Records without an id are ignored.
func (a *Accumulator) Add(b models.Business) bool {
	if b.ID == "" {
		return false
	}
	if _, ok := a.byID[b.ID]; ok {
		return false
	}
	a.byID[b.ID] = b
	a.order = append(a.order, b.ID)
	return true
}

// Merge adds each record in order and returns how many were new.
func (a *Accumulator) Merge(bs []models.Business) int {
	added := 0
	for _, b := range bs {
		if a.Add(b) {
			added++
		}
	}
	return added
}

func (a *Accumulator) Len() int { return len(a.order) }

// Businesses returns the merged records in first-seen order.
func (a *Accumulator) Businesses() []models.Business {
	out := make([]models.Business, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.byID[id])
	}
	return out
}
