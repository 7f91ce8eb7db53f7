package core

// Key code definitions
type KeyCode uint16

const (
	KEY_ENTER  KeyCode = 0x0D
	KEY_TAB    KeyCode = 0x09
	KEY_SHIFT  KeyCode = 0x10
	KEY_ESCAPE KeyCode = 0x1B
	KEY_SPACE  KeyCode = 0x20
	KEY_LEFT   KeyCode = 0x25
	KEY_UP     KeyCode = 0x26
	KEY_RIGHT  KeyCode = 0x27
	KEY_DOWN   KeyCode = 0x28
	KEY_A      KeyCode = 0x41
	KEY_D      KeyCode = 0x44
	KEY_E      KeyCode = 0x45
	KEY_Q      KeyCode = 0x51
	KEY_R      KeyCode = 0x52
	KEY_S      KeyCode = 0x53
	KEY_W      KeyCode = 0x57
	KEY_F1     KeyCode = 0x70

	KEYS_MAX_KEYS KeyCode = 0xFF
)

// Action is a named camera control with a held state.
type Action uint8

const (
	ActionMoveForward Action = iota
	ActionMoveBackward
	ActionYawLeft
	ActionYawRight
	ActionPitchUp
	ActionPitchDown
	ActionMax
)

var actionNames = [ActionMax]string{
	"move-forward",
	"move-backward",
	"yaw-left",
	"yaw-right",
	"pitch-up",
	"pitch-down",
}

func (a Action) String() string {
	if a < ActionMax {
		return actionNames[a]
	}
	return "unknown"
}

// DefaultBindings maps W/S to movement and the arrow keys to rotation.
func DefaultBindings() map[KeyCode]Action {
	return map[KeyCode]Action{
		KEY_W:     ActionMoveForward,
		KEY_S:     ActionMoveBackward,
		KEY_LEFT:  ActionYawLeft,
		KEY_RIGHT: ActionYawRight,
		KEY_UP:    ActionPitchUp,
		KEY_DOWN:  ActionPitchDown,
	}
}

type KeyboardState struct {
	Keys [KEYS_MAX_KEYS + 1]bool
}

// Input holds the keyboard state and resolves it into actions.
type Input struct {
	current  KeyboardState
	previous KeyboardState
	bindings map[KeyCode]Action
	events   *EventBus
}

// NewInput creates the input state. events may be nil.
func NewInput(bindings map[KeyCode]Action, events *EventBus) *Input {
	if bindings == nil {
		bindings = DefaultBindings()
	}
	return &Input{bindings: bindings, events: events}
}

// Update copies the current state into the previous one. Call once per
// frame after the actions were consumed.
func (i *Input) Update() {
	i.previous = i.current
}

func (i *Input) ProcessKey(key KeyCode, pressed bool) {
	if i.current.Keys[key] == pressed {
		return
	}
	i.current.Keys[key] = pressed
	if i.events == nil {
		return
	}
	code := EVENT_CODE_KEY_RELEASED
	if pressed {
		code = EVENT_CODE_KEY_PRESSED
	}
	var ctx EventContext
	ctx.Data.U16[0] = uint16(key)
	i.events.Fire(code, i, ctx)
}

func (i *Input) IsKeyDown(key KeyCode) bool {
	return i.current.Keys[key]
}

func (i *Input) WasKeyDown(key KeyCode) bool {
	return i.previous.Keys[key]
}

// Held reports whether any key bound to the action is down.
func (i *Input) Held(action Action) bool {
	for key, a := range i.bindings {
		if a == action && i.current.Keys[key] {
			return true
		}
	}
	return false
}
