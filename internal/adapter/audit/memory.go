package audit

import (
	"context"
	"sync"

	"github.com/nvoronina/market-sim/internal/domain"
	"github.com/nvoronina/market-sim/internal/port"
)

var _ port.TradeSink = (*Memory)(nil)

// Memory keeps the most recent transactions in a bounded ring. It backs the
// monitor API's transaction listing.
type Memory struct {
	mu    sync.Mutex
	buf   []*domain.Transaction
	next  int
	count int
}

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Memory{buf: make([]*domain.Transaction, capacity)}
}

func (m *Memory) RecordTransaction(_ context.Context, t *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buf[m.next] = t
	m.next = (m.next + 1) % len(m.buf)
	if m.count < len(m.buf) {
		m.count++
	}
	return nil
}

// Recent returns up to limit transactions, newest first.
func (m *Memory) Recent(limit int) []*domain.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > m.count {
		limit = m.count
	}
	out := make([]*domain.Transaction, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + len(m.buf)) % len(m.buf)
		out = append(out, m.buf[idx])
	}
	return out
}

// Len reports how many transactions are retained.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}
