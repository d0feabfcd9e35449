package report

import (
	"context"
	"sync"
)

// Latest keeps the most recent report in memory for the HTTP and bot
// endpoints.
type Latest struct {
	mu sync.RWMutex
	r  *Report
}

func (l *Latest) Name() string { return "latest" }

func (l *Latest) Publish(_ context.Context, r *Report) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r = r
	return nil
}

// Get returns the last published report, or nil before the first run.
func (l *Latest) Get() *Report {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.r
}
