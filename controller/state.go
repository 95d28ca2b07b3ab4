package controller

import "sync/atomic"

// State is the state of the upload worker.
type State uint32

const (
	IdleState State = iota
	HandshakingState
	UploadingState
	PostUpdatePollingState
	StoppedState
)

func (s State) String() string {
	switch s {
	case IdleState:
		return "Idle"
	case HandshakingState:
		return "Handshaking"
	case UploadingState:
		return "Uploading"
	case PostUpdatePollingState:
		return "PostUpdatePolling"
	case StoppedState:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// AtomicState holds a State that is written by the worker and read by callers.
type AtomicState struct {
	state atomic.Uint32
}

func (st *AtomicState) String() string {
	return st.Get().String()
}

// Get returns the current state.
func (st *AtomicState) Get() State {
	return State(st.state.Load())
}

// Set stores state and returns the previous one.
func (st *AtomicState) Set(state State) State {
	return State(st.state.Swap(uint32(state)))
}

func (st *AtomicState) IsIdle() bool {
	return st.Get() == IdleState
}

func (st *AtomicState) IsStopped() bool {
	return st.Get() == StoppedState
}

// IsActive reports whether the worker is talking to a display.
func (st *AtomicState) IsActive() bool {
	switch st.Get() {
	case HandshakingState, UploadingState, PostUpdatePollingState:
		return true
	default:
		return false
	}
}
