package telemetry

import (
	"strings"
	"sync"
)

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityWarning
	SeverityBroken
	SeverityCount
)

// Report is a single call recorded by MemoryAPI.
type Report struct {
	Severity Severity
	ID       string
	Params   []any
	Count    int64
}

// MemoryAPI records every report in memory, it is safe for concurrent use.
type MemoryAPI struct {
	mutex   sync.Mutex
	reports []Report
}

func NewMemoryAPI() *MemoryAPI {
	return &MemoryAPI{}
}

func (m *MemoryAPI) record(r Report) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.reports = append(m.reports, r)
}

func (m *MemoryAPI) ReportBroken(id string, params ...any) {
	m.record(Report{Severity: SeverityBroken, ID: id, Params: params})
}

func (m *MemoryAPI) ReportWarning(id string, params ...any) {
	m.record(Report{Severity: SeverityWarning, ID: id, Params: params})
}

func (m *MemoryAPI) ReportDebug(msg string, params ...any) {
	m.record(Report{Severity: SeverityDebug, ID: msg, Params: params})
}

func (m *MemoryAPI) ReportCount(id string, count int64) {
	m.record(Report{Severity: SeverityCount, ID: id, Count: count})
}

// Reports returns a copy of all recorded reports.
func (m *MemoryAPI) Reports() []Report {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	out := make([]Report, len(m.reports))
	copy(out, m.reports)
	return out
}

// Find returns the reports of a given severity whose id ends with suffix.
func (m *MemoryAPI) Find(severity Severity, suffix string) []Report {
	var out []Report
	for _, r := range m.Reports() {
		if r.Severity == severity && strings.HasSuffix(r.ID, suffix) {
			out = append(out, r)
		}
	}
	return out
}

// Count returns the latest value reported for an id ending with suffix.
func (m *MemoryAPI) Count(suffix string) (int64, bool) {
	found := m.Find(SeverityCount, suffix)
	if len(found) == 0 {
		return 0, false
	}
	return found[len(found)-1].Count, true
}
