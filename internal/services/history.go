package services

import (
	"sync"

	"db-schema-sync/internal/models"
)

const defaultHistorySize = 20

// History keeps the most recent outcomes in memory, newest last.
type History struct {
	mutex sync.RWMutex
	size  int
	runs  []*models.SyncOutcome
}

func NewHistory(size int) *History {
	if size <= 0 {
		size = defaultHistorySize
	}
	return &History{size: size}
}

func (h *History) Record(outcome *models.SyncOutcome) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.runs = append(h.runs, outcome)
	if len(h.runs) > h.size {
		h.runs = append([]*models.SyncOutcome(nil), h.runs[len(h.runs)-h.size:]...)
	}
}

// List returns recorded outcomes, newest first.
func (h *History) List() []models.SyncOutcome {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	out := make([]models.SyncOutcome, 0, len(h.runs))
	for i := len(h.runs) - 1; i >= 0; i-- {
		out = append(out, *h.runs[i])
	}
	return out
}

func (h *History) Get(runID string) (models.SyncOutcome, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for _, run := range h.runs {
		if run.RunID == runID {
			return *run, true
		}
	}
	return models.SyncOutcome{}, false
}

func (h *History) Last() *models.SyncOutcome {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if len(h.runs) == 0 {
		return nil
	}
	last := *h.runs[len(h.runs)-1]
	return &last
}
