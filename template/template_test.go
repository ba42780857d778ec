package template_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/logcorrelate/api"
	"github.com/momentics/logcorrelate/template"
)

func TestEvaluator_ExpandsIntrinsicAndFieldReferences(t *testing.T) {
	e := template.New()
	msg := api.NewMessage(time.Unix(1000, 0))
	msg.Host = "db-01"
	msg.Fields["order_id"] = "42"

	got, err := e.Evaluate("{{.Host}}-{{.Fields.order_id}}", msg)
	require.NoError(t, err)
	assert.Equal(t, "db-01-42", got)
}

func TestEvaluator_MissingFieldRendersZeroValue(t *testing.T) {
	e := template.New()
	msg := api.NewMessage(time.Unix(0, 0))

	got, err := e.Evaluate("[{{.Fields.absent}}]", msg)
	require.NoError(t, err)
	assert.Equal(t, "[]", got)
}

func TestEvaluator_CachesCompiledTemplates(t *testing.T) {
	e := template.New()
	msg := api.NewMessage(time.Unix(0, 0))
	msg.Program = "sshd"

	const tmpl = "{{.Program}}"
	first, err := e.Evaluate(tmpl, msg)
	require.NoError(t, err)
	msg.Program = "cron"
	second, err := e.Evaluate(tmpl, msg)
	require.NoError(t, err)

	assert.Equal(t, "sshd", first)
	assert.Equal(t, "cron", second, "cache keys by source text, not by first-use message")
}

func TestEvaluator_InvalidTemplateReturnsError(t *testing.T) {
	e := template.New()
	msg := api.NewMessage(time.Unix(0, 0))

	_, err := e.Evaluate("{{.Fields.", msg)
	assert.Error(t, err)
}
