package workflow

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running       bool   `json:"running"`
	QueueDepth    int    `json:"queueDepth"`
	QueueCapacity int    `json:"queueCapacity"`
	LastError     string `json:"lastError,omitempty"`
	LastJobID     string `json:"lastJobId,omitempty"`
}

// Status returns the latest workflow information.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	summary := StatusSummary{
		Running:       m.running,
		QueueDepth:    len(m.tasks),
		QueueCapacity: cap(m.tasks),
		LastJobID:     m.lastJobID,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJobID(id string) {
	m.mu.Lock()
	m.lastJobID = id
	m.mu.Unlock()
}
