package resource

// Token is an opaque reference-counted ownership token for a process-side
// value shared with managed code. Token 0 is reserved and always invalid.
type Token uint32

// Event types for token lifecycle notifications.
type EventType uint8

const (
	EventAcquired EventType = iota
	EventRetained
	EventReleased
	EventDropped
)

func (t EventType) String() string {
	switch t {
	case EventAcquired:
		return "acquired"
	case EventRetained:
		return "retained"
	case EventReleased:
		return "released"
	case EventDropped:
		return "dropped"
	}
	return "unknown"
}

// Event represents a token lifecycle event. Refs is the reference count
// after the operation.
type Event struct {
	Value  any
	Token  Token
	TypeID uint32
	Refs   int32
	Type   EventType
}

// Observer receives notifications about token lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }

// Dropper is optionally implemented by shared values that need cleanup
// once managed code holds no more references.
type Dropper interface {
	Drop()
}
