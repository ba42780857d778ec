// Package synthetic implements the default SyntheticBuilder: given the
// user's synthetic_message template and an expired context, it produces
// a new LogMessage that INHERITS its intrinsic fields (host/program/
// process) from the context's first message and carries a
// template-rendered summary body plus per-message detail fields
// (spec.md §4.4 step 1's "generate(template, INHERIT_FROM_CONTEXT,
// ctx)" — inheriting from context is this package's only mode, so it is
// documented rather than threaded through as a parameter).
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package synthetic

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/pkg/errors"

	"github.com/momentics/logcorrelate/api"
)

// Builder is the default SyntheticBuilder, sharing text/template with
// the key evaluator for the same reason: no pack library does plain
// string templating more specifically than stdlib.
type Builder struct {
	// Prefix names the field-name prefix for inherited per-message
	// fields (spec.md §6's prefix option), e.g. "corr_" turns
	// ctx.Messages[i].Fields["order_id"] into "corr_0_order_id".
	Prefix string
}

var _ api.SyntheticBuilder = (*Builder)(nil)

// New returns a Builder using prefix for inherited field names.
func New(prefix string) *Builder {
	return &Builder{Prefix: prefix}
}

// contextView is what a synthetic_message template can reference.
type contextView struct {
	Key              string
	Scope            string
	NumMessages      int
	Timeout          int64
	CreatedAtSeconds int64
	ExpiredAtSeconds int64
	First            map[string]string
	Last             map[string]string
}

// Generate renders tmpl against ctx and builds the synthetic message.
func (b *Builder) Generate(tmpl string, ctx api.Context) (*api.Message, error) {
	t, err := template.New("").Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return nil, errors.Wrap(err, "compile synthetic template")
	}

	view := contextView{
		Key:              ctx.Key,
		Scope:            ctx.Scope.String(),
		NumMessages:      len(ctx.Messages),
		Timeout:          ctx.Timeout,
		CreatedAtSeconds: ctx.CreatedAtSeconds,
		ExpiredAtSeconds: ctx.ExpiredAtSeconds,
	}
	if len(ctx.Messages) > 0 {
		view.First = ctx.Messages[0].Fields
		view.Last = ctx.Messages[len(ctx.Messages)-1].Fields
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, view); err != nil {
		return nil, errors.Wrap(err, "execute synthetic template")
	}

	synthetic := api.NewMessage(time.Unix(ctx.ExpiredAtSeconds, 0))
	synthetic.Fields[b.field("summary")] = buf.String()
	synthetic.Fields[b.field("key")] = ctx.Key
	synthetic.Fields[b.field("num_messages")] = fmt.Sprintf("%d", len(ctx.Messages))

	if len(ctx.Messages) > 0 {
		first := ctx.Messages[0]
		synthetic.Host = first.Host
		synthetic.Program = first.Program
		synthetic.Process = first.Process
		for i, m := range ctx.Messages {
			for k, v := range m.Fields {
				synthetic.Fields[fmt.Sprintf("%s%d_%s", b.Prefix, i, k)] = v
			}
		}
	}
	return synthetic, nil
}

func (b *Builder) field(name string) string {
	return b.Prefix + name
}
