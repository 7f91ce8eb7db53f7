package core

// Event data. Only the fields a code documents are meaningful.
type EventContext struct {
	Data struct {
		U16 [4]uint16
		U32 [4]uint32
		C   string
	}
}

type EventCode uint16

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT EventCode = 0x01

	// Keyboard key pressed. u16[0] = key code.
	EVENT_CODE_KEY_PRESSED EventCode = 0x02

	// Keyboard key released. u16[0] = key code.
	EVENT_CODE_KEY_RELEASED EventCode = 0x03

	// Framebuffer resized. u32[0] = width, u32[1] = height.
	EVENT_CODE_RESIZED EventCode = 0x08

	// A file under the active scene changed on disk. c = path.
	EVENT_CODE_SCENE_CHANGED EventCode = 0x09

	MAX_EVENT_CODE EventCode = 0xFF
)

// FnOnEvent returns true when the event is handled and must not reach the
// remaining listeners.
type FnOnEvent func(code EventCode, sender interface{}, listener interface{}, data EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventBus dispatches events synchronously on the caller's goroutine.
type EventBus struct {
	registered [MAX_EVENT_CODE + 1][]registeredEvent
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

// Register returns false if the listener is already registered for code.
func (b *EventBus) Register(code EventCode, listener interface{}, onEvent FnOnEvent) bool {
	for _, e := range b.registered[code] {
		if e.listener == listener {
			LogWarn("listener already registered for event code %d", code)
			return false
		}
	}
	b.registered[code] = append(b.registered[code], registeredEvent{listener: listener, callback: onEvent})
	return true
}

func (b *EventBus) Unregister(code EventCode, listener interface{}) bool {
	events := b.registered[code]
	for i, e := range events {
		if e.listener == listener {
			b.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// Fire returns true if a listener handled the event.
func (b *EventBus) Fire(code EventCode, sender interface{}, context EventContext) bool {
	for _, e := range b.registered[code] {
		if e.callback(code, sender, e.listener, context) {
			return true
		}
	}
	return false
}
