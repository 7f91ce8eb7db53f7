package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInputActionsFollowBindings(t *testing.T) {
	in := NewInput(nil, nil)
	assert.False(t, in.Held(ActionMoveForward))

	in.ProcessKey(KEY_W, true)
	in.ProcessKey(KEY_LEFT, true)
	assert.True(t, in.Held(ActionMoveForward))
	assert.True(t, in.Held(ActionYawLeft))
	assert.False(t, in.Held(ActionMoveBackward))

	in.Update()
	in.ProcessKey(KEY_W, false)
	assert.False(t, in.Held(ActionMoveForward))
	assert.True(t, in.WasKeyDown(KEY_W))
}

func TestInputFiresKeyEvents(t *testing.T) {
	bus := NewEventBus()
	var pressed, released []uint16
	bus.Register(EVENT_CODE_KEY_PRESSED, "test", func(code EventCode, sender, listener interface{}, data EventContext) bool {
		pressed = append(pressed, data.Data.U16[0])
		return true
	})
	bus.Register(EVENT_CODE_KEY_RELEASED, "test", func(code EventCode, sender, listener interface{}, data EventContext) bool {
		released = append(released, data.Data.U16[0])
		return true
	})

	in := NewInput(nil, bus)
	in.ProcessKey(KEY_ESCAPE, true)
	// Repeated state does not fire again.
	in.ProcessKey(KEY_ESCAPE, true)
	in.ProcessKey(KEY_ESCAPE, false)

	assert.Equal(t, []uint16{uint16(KEY_ESCAPE)}, pressed)
	assert.Equal(t, []uint16{uint16(KEY_ESCAPE)}, released)
}

func TestEventBusRegistration(t *testing.T) {
	bus := NewEventBus()
	calls := 0
	cb := func(code EventCode, sender, listener interface{}, data EventContext) bool {
		calls++
		return false
	}
	assert.True(t, bus.Register(EVENT_CODE_APPLICATION_QUIT, "a", cb))
	assert.False(t, bus.Register(EVENT_CODE_APPLICATION_QUIT, "a", cb))
	assert.True(t, bus.Register(EVENT_CODE_APPLICATION_QUIT, "b", cb))

	assert.False(t, bus.Fire(EVENT_CODE_APPLICATION_QUIT, nil, EventContext{}))
	assert.Equal(t, 2, calls)

	assert.True(t, bus.Unregister(EVENT_CODE_APPLICATION_QUIT, "a"))
	assert.False(t, bus.Unregister(EVENT_CODE_APPLICATION_QUIT, "a"))
	bus.Fire(EVENT_CODE_APPLICATION_QUIT, nil, EventContext{})
	assert.Equal(t, 3, calls)
}

func TestMetricsAverages(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < AVG_COUNT; i++ {
		m.Update(10)
	}
	assert.InDelta(t, 10.0, m.FrameTime(), 1e-9)

	m = NewMetrics()
	for i := 0; i < 100; i++ {
		m.Update(10)
	}
	assert.InDelta(t, 100.0, m.FPS(), 1e-9)
}
