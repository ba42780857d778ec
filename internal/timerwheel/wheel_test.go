package timerwheel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/logcorrelate/internal/timerwheel"
)

func TestWheel_FiresAtDeadline(t *testing.T) {
	w := timerwheel.New(0)
	var fired []string
	w.Add(10, func(now int64, data any) {
		fired = append(fired, data.(string))
	}, "a", nil)

	w.SetTime(9)
	assert.Empty(t, fired, "must not fire before its deadline")

	w.SetTime(10)
	assert.Equal(t, []string{"a"}, fired)
}

func TestWheel_TiesFireInInsertionOrder(t *testing.T) {
	w := timerwheel.New(0)
	var order []string
	cb := func(name string) timerwheel.Callback {
		return func(now int64, data any) { order = append(order, name) }
	}
	w.Add(5, cb("first"), nil, nil)
	w.Add(5, cb("second"), nil, nil)
	w.Add(5, cb("third"), nil, nil)

	w.SetTime(5)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestWheel_ModSlidesDeadlineWithoutExtraDestroy(t *testing.T) {
	w := timerwheel.New(0)
	destroyCount := 0
	h := w.Add(5, func(now int64, data any) {}, nil, func(data any) { destroyCount++ })

	require.True(t, w.Mod(h, 20))
	w.SetTime(5)
	assert.Equal(t, 0, destroyCount, "sliding the deadline must not fire destroy early")

	w.SetTime(20)
	assert.Equal(t, 1, destroyCount, "destroy must fire exactly once at the new deadline")
}

func TestWheel_RemoveFiresDestroyOnce(t *testing.T) {
	w := timerwheel.New(0)
	fired := false
	destroyCount := 0
	h := w.Add(5, func(now int64, data any) { fired = true }, nil, func(data any) { destroyCount++ })

	require.True(t, w.Remove(h))
	w.SetTime(10)

	assert.False(t, fired, "removed entry must not fire")
	assert.Equal(t, 1, destroyCount)
	assert.False(t, w.Remove(h), "double remove must report the handle is already gone")
}

func TestWheel_Pending(t *testing.T) {
	w := timerwheel.New(0)
	assert.Equal(t, 0, w.Pending())
	h1 := w.Add(5, func(int64, any) {}, nil, nil)
	w.Add(6, func(int64, any) {}, nil, nil)
	assert.Equal(t, 2, w.Pending())
	w.Remove(h1)
	assert.Equal(t, 1, w.Pending())
}
