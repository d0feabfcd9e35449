package session

import (
	"errors"
	"testing"
)

func TestLock_Exclusive(t *testing.T) {
	l := NewLock()

	release, err := l.TryAcquire()
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	if _, err := l.TryAcquire(); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy, got %v", err)
	}

	release()
	release()

	release2, err := l.TryAcquire()
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	release2()
}
