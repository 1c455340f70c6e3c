// Package events provides a lightweight event system for worker pool lifecycle notifications.
package events

import (
	"fmt"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	// EventPoolStarted is emitted once all workers of a pool are running
	EventPoolStarted EventType = "pool_started"
	// EventPoolStopped is emitted when a pool has finished tearing down
	EventPoolStopped EventType = "pool_stopped"
	// EventWorkerExited is emitted when a worker goroutine terminates
	EventWorkerExited EventType = "worker_exited"
	// EventJobPanicked is emitted when a job panics and takes its worker down
	EventJobPanicked EventType = "job_panicked"
	// EventBatchCompleted is emitted when a digest batch has finished
	EventBatchCompleted EventType = "batch_completed"
)

// Event represents a pool or batch event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Pool      string    `json:"pool"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	Worker  *int   `json:"worker,omitempty"`
	Workers int    `json:"workers,omitempty"`
	Jobs    int    `json:"jobs,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewPoolStartedEvent creates a pool started event
func NewPoolStartedEvent(pool string, workers int) Event {
	return Event{
		Type:      EventPoolStarted,
		Timestamp: time.Now(),
		Pool:      pool,
		Data: EventData{
			Workers: workers,
		},
	}
}

// NewPoolStoppedEvent creates a pool stopped event
func NewPoolStoppedEvent(pool string) Event {
	return Event{
		Type:      EventPoolStopped,
		Timestamp: time.Now(),
		Pool:      pool,
	}
}

// NewWorkerExitedEvent creates a worker exited event
func NewWorkerExitedEvent(pool string, worker int, reason string) Event {
	return Event{
		Type:      EventWorkerExited,
		Timestamp: time.Now(),
		Pool:      pool,
		Data: EventData{
			Worker: &worker,
			Reason: reason,
		},
	}
}

// NewJobPanickedEvent creates a job panicked event from a recovered value
func NewJobPanickedEvent(pool string, worker int, recovered any) Event {
	return Event{
		Type:      EventJobPanicked,
		Timestamp: time.Now(),
		Pool:      pool,
		Data: EventData{
			Worker: &worker,
			Error:  fmt.Sprint(recovered),
		},
	}
}

// NewBatchCompletedEvent creates a batch completed event
func NewBatchCompletedEvent(pool, traceID string, jobs int, err error) Event {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	return Event{
		Type:      EventBatchCompleted,
		Timestamp: time.Now(),
		Pool:      pool,
		Data: EventData{
			Jobs:    jobs,
			TraceID: traceID,
			Error:   errMsg,
		},
	}
}
