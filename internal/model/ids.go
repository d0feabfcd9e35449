package model

import "github.com/google/uuid"

// RunID identifies one pipeline invocation in logs and sinks.
type RunID string

func NewRunID() RunID {
	return RunID(uuid.New().String())
}
