package controller

import (
	"fmt"
	"time"
)

// EventKind identifies a status event.
type EventKind int

const (
	// EventStateChanged reports a state transition; State holds the new state.
	EventStateChanged EventKind = iota
	// EventConnected reports a handshake reply; Baud holds the control baud.
	EventConnected
	// EventUploadStarted reports an acknowledged whmi-wri command.
	EventUploadStarted
	// EventChunkSent reports an acknowledged chunk.
	EventChunkSent
	// EventUploadCompleted reports the completion marker.
	EventUploadCompleted
	// EventPageRequested reports a "page 7" request; Budget holds the retries left.
	EventPageRequested
	// EventUpdateComplete reports that the display shows the ready page and was
	// told about the update. It is sent once per polling run.
	EventUpdateComplete
	// EventDefaultBaudSet reports that the display was switched back to 115200 baud.
	EventDefaultBaudSet
	// EventError reports a failure; Err holds the error.
	EventError
	// EventStopped reports that a stop request ended the run.
	EventStopped
)

func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state-changed"
	case EventConnected:
		return "connected"
	case EventUploadStarted:
		return "upload-started"
	case EventChunkSent:
		return "chunk-sent"
	case EventUploadCompleted:
		return "upload-completed"
	case EventPageRequested:
		return "page-requested"
	case EventUpdateComplete:
		return "update-complete"
	case EventDefaultBaudSet:
		return "default-baud-set"
	case EventError:
		return "error"
	case EventStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Event is a status event of the upload worker.
type Event struct {
	Kind      EventKind
	Time      time.Time
	State     State
	Port      string
	SessionID string
	Message   string

	Baud      int
	Chunk     int // zero based index of the acknowledged chunk
	Chunks    int
	BytesSent int
	Total     int
	Budget    int

	Err error
}

// Percent returns the upload progress of a chunk event, in [0, 100].
func (e Event) Percent() float64 {
	if e.Total == 0 {
		return 0
	}

	return float64(e.BytesSent) * 100 / float64(e.Total)
}

func (e Event) String() string {
	if e.Port == "" {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}

	return fmt.Sprintf("%s [%s] %s", e.Port, e.Kind, e.Message)
}
