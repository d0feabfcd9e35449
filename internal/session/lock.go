package session

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// Lock guards the process-wide session so that only one pipeline run uses it
// at a time.
type Lock struct {
	sem *semaphore.Weighted
}

func NewLock() *Lock {
	return &Lock{sem: semaphore.NewWeighted(1)}
}

// TryAcquire claims the session without waiting. The returned release func
// is idempotent.
func (l *Lock) TryAcquire() (release func(), err error) {
	if !l.sem.TryAcquire(1) {
		return nil, ErrSessionBusy
	}
	var once sync.Once
	return func() { once.Do(func() { l.sem.Release(1) }) }, nil
}
