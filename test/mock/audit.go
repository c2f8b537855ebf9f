// test/mock/audit.go
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/veildata/veil/audit"
)

// MockAuditService records access logs in memory. Logged signals once per
// LogAccess call so tests can wait for the async emit.
type MockAuditService struct {
	mu     sync.Mutex
	logs   []audit.AccessLog
	Err    error
	Logged chan struct{}
}

func NewMockAuditService() *MockAuditService {
	return &MockAuditService{Logged: make(chan struct{}, 16)}
}

func (m *MockAuditService) LogAccess(_ context.Context, log audit.AccessLog) error {
	m.mu.Lock()
	m.logs = append(m.logs, log)
	m.mu.Unlock()
	select {
	case m.Logged <- struct{}{}:
	default:
	}
	return m.Err
}

func (m *MockAuditService) QueryLogs(_ context.Context, from, to time.Time, subject, category string) ([]audit.AccessLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]audit.AccessLog, len(m.logs))
	copy(out, m.logs)
	return out, m.Err
}

// Logs returns a copy of everything logged so far.
func (m *MockAuditService) Logs() []audit.AccessLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]audit.AccessLog, len(m.logs))
	copy(out, m.logs)
	return out
}
