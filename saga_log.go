package saga

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// SagaNodeEvent represents an entry in the saga log.
type SagaNodeEvent struct {
	SagaID    SagaID
	Index     int
	Name      ActionName
	EventType SagaNodeEventType
	Attempts  int
	Err       error
	At        time.Time
}

// String implements the fmt.Stringer interface for SagaNodeEvent.
func (e *SagaNodeEvent) String() string {
	if e.Err != nil {
		return fmt.Sprintf("N%03d %s %s: %v", e.Index, e.Name, e.EventType, e.Err)
	}
	return fmt.Sprintf("N%03d %s %s", e.Index, e.Name, e.EventType)
}

// SagaNodeEventType defines the types of events that can occur for an operation.
type SagaNodeEventType int

const (
	EventStarted SagaNodeEventType = iota
	EventSucceeded
	EventFailed
	EventUndoStarted
	EventUndoFinished
	EventUndoFailed
)

// String returns the string representation of the SagaNodeEventType.
func (s SagaNodeEventType) String() string {
	switch s {
	case EventStarted:
		return "started"
	case EventSucceeded:
		return "succeeded"
	case EventFailed:
		return "failed"
	case EventUndoStarted:
		return "undo_started"
	case EventUndoFinished:
		return "undo_finished"
	case EventUndoFailed:
		return "undo_failed"
	default:
		return fmt.Sprintf("Unknown SagaNodeEventType: %d", s)
	}
}

// OperationStatus is the status of one operation within a run.
type OperationStatus int

const (
	StatusNeverStarted OperationStatus = iota
	StatusStarted
	StatusSucceeded
	StatusFailed
	StatusUndoStarted
	StatusUndoFinished
	StatusUndoFailed
)

// nextStatus returns the new status for an operation after recording the
// given event. The transitions encode the compensation invariant: only a
// succeeded operation can start undoing.
func (s OperationStatus) nextStatus(eventType SagaNodeEventType) (OperationStatus, error) {
	switch s {
	case StatusNeverStarted:
		if eventType == EventStarted {
			return StatusStarted, nil
		}
	case StatusStarted:
		switch eventType {
		case EventSucceeded:
			return StatusSucceeded, nil
		case EventFailed:
			return StatusFailed, nil
		}
	case StatusSucceeded:
		if eventType == EventUndoStarted {
			return StatusUndoStarted, nil
		}
	case StatusUndoStarted:
		switch eventType {
		case EventUndoFinished:
			return StatusUndoFinished, nil
		case EventUndoFailed:
			return StatusUndoFailed, nil
		}
	}

	return StatusNeverStarted, fmt.Errorf(
		"illegal event type %s for current status %v",
		eventType, s,
	)
}

// String returns the string representation of the OperationStatus.
func (s OperationStatus) String() string {
	switch s {
	case StatusNeverStarted:
		return "NeverStarted"
	case StatusStarted:
		return "Started"
	case StatusSucceeded:
		return "Succeeded"
	case StatusFailed:
		return "Failed"
	case StatusUndoStarted:
		return "UndoStarted"
	case StatusUndoFinished:
		return "UndoFinished"
	case StatusUndoFailed:
		return "UndoFailed"
	default:
		return fmt.Sprintf("Unknown OperationStatus: %d", s)
	}
}

// MarshalJSON implements the json.Marshaler interface for OperationStatus.
func (s OperationStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// SagaLog is the in-memory event log of a single run. Workers of the
// choreography engine record into it concurrently.
type SagaLog struct {
	mu         sync.Mutex
	sagaID     SagaID
	unwinding  bool
	events     []*SagaNodeEvent
	nodeStatus map[int]OperationStatus
}

// NewEmptySagaLog creates a new, empty SagaLog.
func NewEmptySagaLog(sagaID SagaID) *SagaLog {
	return &SagaLog{
		sagaID:     sagaID,
		events:     make([]*SagaNodeEvent, 0),
		nodeStatus: make(map[int]OperationStatus),
	}
}

// Record adds an event to the SagaLog.
func (l *SagaLog) Record(event *SagaNodeEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.SagaID != l.sagaID {
		return fmt.Errorf("event for saga %s recorded in log of saga %s", event.SagaID, l.sagaID)
	}

	nextStatus, err := l.statusLocked(event.Index).nextStatus(event.EventType)
	if err != nil {
		return fmt.Errorf("operation %d: %w", event.Index, err)
	}

	switch nextStatus {
	case StatusFailed, StatusUndoStarted, StatusUndoFinished, StatusUndoFailed:
		l.unwinding = true
	}

	l.nodeStatus[event.Index] = nextStatus
	l.events = append(l.events, event)
	return nil
}

// Unwinding returns true once any operation has failed or started undoing.
func (l *SagaLog) Unwinding() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.unwinding
}

// Status returns the current status of the operation at index.
func (l *SagaLog) Status(index int) OperationStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.statusLocked(index)
}

func (l *SagaLog) statusLocked(index int) OperationStatus {
	status, exists := l.nodeStatus[index]
	if !exists {
		return StatusNeverStarted
	}
	return status
}

// Indices returns, in ascending order, the operations currently in status.
func (l *SagaLog) Indices(status OperationStatus) []int {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []int
	for index, s := range l.nodeStatus {
		if s == status {
			out = append(out, index)
		}
	}
	sort.Ints(out)
	return out
}

// Events returns a copy of the events recorded so far, in recording order.
func (l *SagaLog) Events() []*SagaNodeEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]*SagaNodeEvent(nil), l.events...)
}

// String implements the fmt.Stringer interface for SagaLog.
func (l *SagaLog) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("SAGA LOG:\n")
	fmt.Fprintf(&sb, "saga id:   %s\n", l.sagaID)
	direction := "forward"
	if l.unwinding {
		direction = "unwinding"
	}
	fmt.Fprintf(&sb, "direction: %s\n", direction)
	fmt.Fprintf(&sb, "events (%d total):\n", len(l.events))
	sb.WriteString("\n")
	for i, event := range l.events {
		fmt.Fprintf(&sb, "%03d %s\n", i+1, event.String())
	}
	return sb.String()
}
