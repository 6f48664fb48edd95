package vm

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Service events
// ---------------------------------------------------------------------------

// cborEncMode uses canonical mode for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ServiceEventKind identifies the event type on the service channel.
type ServiceEventKind string

const (
	// EventIsolateReload is published once per reload: with an empty Error
	// on success, with the error message when the first error is reported
	// (the rollback follows).
	EventIsolateReload ServiceEventKind = "IsolateReload"
)

// ServiceEvent is one message on the isolate's service event channel.
// Tooling that forwards events off-process marshals them to canonical
// CBOR wire frames.
type ServiceEvent struct {
	ID        string           `cbor:"id"`
	Kind      ServiceEventKind `cbor:"kind"`
	IsolateID string           `cbor:"isolate"`
	ReloadID  string           `cbor:"reload,omitempty"`
	Error     string           `cbor:"error,omitempty"`
	ErrorKind string           `cbor:"errorKind,omitempty"`
	Timestamp time.Time        `cbor:"timestamp"`
}

func newReloadSuccessEvent(ctx *ReloadContext) *ServiceEvent {
	return &ServiceEvent{
		ID:        uuid.NewString(),
		Kind:      EventIsolateReload,
		IsolateID: ctx.iso.ID,
		ReloadID:  ctx.id,
		Timestamp: time.Now(),
	}
}

func newReloadErrorEvent(ctx *ReloadContext, err *ReloadError) *ServiceEvent {
	return &ServiceEvent{
		ID:        uuid.NewString(),
		Kind:      EventIsolateReload,
		IsolateID: ctx.iso.ID,
		ReloadID:  ctx.id,
		Error:     err.Message,
		ErrorKind: err.Kind.String(),
		Timestamp: time.Now(),
	}
}

// publishEvent delivers an event without blocking the reload: when no
// consumer is draining the channel the oldest event is dropped.
func (iso *Isolate) publishEvent(ev *ServiceEvent) {
	for {
		select {
		case iso.events <- ev:
			return
		default:
		}
		select {
		case <-iso.events:
		default:
		}
	}
}

// Events returns the isolate's service event channel.
func (iso *Isolate) Events() <-chan *ServiceEvent { return iso.events }

// MarshalServiceEvent serializes an event to CBOR bytes.
func MarshalServiceEvent(ev *ServiceEvent) ([]byte, error) {
	return cborEncMode.Marshal(ev)
}

// UnmarshalServiceEvent deserializes an event from CBOR bytes.
func UnmarshalServiceEvent(data []byte) (*ServiceEvent, error) {
	var ev ServiceEvent
	if err := cbor.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("vm: unmarshal service event: %w", err)
	}
	return &ev, nil
}
