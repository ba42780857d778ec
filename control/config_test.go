package control_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/momentics/logcorrelate/control"
)

func TestConfigStore_SetConfigMergesAndNotifies(t *testing.T) {
	c := control.NewConfigStore()
	c.SetConfig(map[string]any{"default_timeout_s": int64(60)})

	var seen map[string]any
	c.OnReload(func(snap map[string]any) { seen = snap })
	c.SetConfig(map[string]any{"max_contexts": int64(1000)})

	snap := c.GetSnapshot()
	assert.Equal(t, int64(60), snap["default_timeout_s"])
	assert.Equal(t, int64(1000), snap["max_contexts"])
	assert.Equal(t, int64(1000), seen["max_contexts"], "listener observes post-merge snapshot")
}

func TestMetricsRegistry_SetAndIncr(t *testing.T) {
	m := control.NewMetricsRegistry()
	m.Set(control.MetricContextsActive, int64(3))
	m.Incr(control.MetricMessagesProcessed, 1)
	m.Incr(control.MetricMessagesProcessed, 2)

	snap := m.GetSnapshot()
	assert.Equal(t, int64(3), snap[control.MetricContextsActive])
	assert.Equal(t, int64(3), snap[control.MetricMessagesProcessed])
}

func TestDebugProbes_DumpState(t *testing.T) {
	d := control.NewDebugProbes()
	d.RegisterProbe("uptime", func() any { return "5m" })

	state := d.DumpState()
	assert.Equal(t, "5m", state["uptime"])
}
