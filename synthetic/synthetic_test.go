package synthetic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/logcorrelate/api"
	"github.com/momentics/logcorrelate/synthetic"
)

func TestBuilder_GenerateInheritsFirstMessageIntrinsics(t *testing.T) {
	b := synthetic.New("")

	m0 := &api.Message{Host: "web-1", Program: "nginx", Process: "worker", Fields: map[string]string{"order_id": "7"}}
	m1 := &api.Message{Host: "web-2", Program: "nginx", Process: "worker", Fields: map[string]string{"order_id": "7"}}

	ctx := api.Context{
		Key:              "order:7",
		Scope:            api.ScopeGlobal,
		Messages:         []*api.Message{m0, m1},
		Timeout:          30,
		CreatedAtSeconds: 100,
		ExpiredAtSeconds: 130,
	}

	msg, err := b.Generate("{{.NumMessages}} events for {{.Key}}", ctx)
	require.NoError(t, err)

	assert.Equal(t, "web-1", msg.Host, "synthetic message inherits host from the first message")
	assert.Equal(t, "nginx", msg.Program)
	assert.Equal(t, "2 events for order:7", msg.Fields["summary"])
	assert.Equal(t, "order:7", msg.Fields["key"])
	assert.Equal(t, "2", msg.Fields["num_messages"])
	assert.Equal(t, "7", msg.Fields["0_order_id"])
	assert.Equal(t, "7", msg.Fields["1_order_id"])
}

func TestBuilder_GeneratePrefixesInheritedFields(t *testing.T) {
	b := synthetic.New("corr_")

	m0 := &api.Message{Fields: map[string]string{"order_id": "7"}}
	ctx := api.Context{Key: "k", Messages: []*api.Message{m0}}

	msg, err := b.Generate("ok", ctx)
	require.NoError(t, err)

	assert.Equal(t, "ok", msg.Fields["corr_summary"])
	assert.Equal(t, "7", msg.Fields["corr_0_order_id"])
}

func TestBuilder_GenerateEmptyContextHasNoIntrinsics(t *testing.T) {
	b := synthetic.New("")
	ctx := api.Context{Key: "empty"}

	msg, err := b.Generate("{{.NumMessages}}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "0", msg.Fields["summary"])
	assert.Empty(t, msg.Host)
}

func TestBuilder_GenerateInvalidTemplateReturnsError(t *testing.T) {
	b := synthetic.New("")
	_, err := b.Generate("{{.Unclosed", api.Context{})
	assert.Error(t, err)
}
