package client

import (
	"sync"

	"crisisrelay/internal/domain"
)

// ReportList is the client-side report collection, id-keyed internally and
// presented as an ordered list. Keying by id makes the merge O(1) and rules
// out the duplicate-entry bug class: two citizens reporting the same incident
// type and place within the same minute stay distinct, while a score update
// for an existing id replaces the record it belongs to.
type ReportList struct {
	mu      sync.Mutex
	order   []string
	reports map[string]domain.IncidentReport
}

func NewReportList() *ReportList {
	return &ReportList{
		reports: make(map[string]domain.IncidentReport),
	}
}

// Merge applies the merge-by-id rule: an existing id is replaced in place,
// preserving list position; an unknown id is prepended. Returns true only in
// the prepend case, which is the caller's cue to surface a new-report
// notification.
func (l *ReportList) Merge(r domain.IncidentReport) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.reports[r.ID]; ok {
		l.reports[r.ID] = r
		return false
	}
	l.reports[r.ID] = r
	l.order = append([]string{r.ID}, l.order...)
	return true
}

func (l *ReportList) Get(id string) (domain.IncidentReport, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.reports[id]
	return r, ok
}

// Snapshot returns the reports in display order, newest first.
func (l *ReportList) Snapshot() []domain.IncidentReport {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.IncidentReport, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.reports[id])
	}
	return out
}

func (l *ReportList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

// QueuedLocally lists reports that never reached the server, oldest first.
func (l *ReportList) QueuedLocally() []domain.IncidentReport {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.IncidentReport, 0)
	for i := len(l.order) - 1; i >= 0; i-- {
		if r := l.reports[l.order[i]]; r.Status == domain.ReportQueuedLocally {
			out = append(out, r)
		}
	}
	return out
}
