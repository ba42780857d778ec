// Package template implements the default key and synthetic-message
// TemplateEvaluator using the standard library's text/template: the
// user-supplied template strings reference message fields by name
// (spec.md §6's key/synthetic_message template surface), and the
// evaluator never needs anything beyond variable substitution and the
// handful of pipeline functions text/template already provides.
//
// text/template is stdlib, not a pack dependency: no example repo
// carries a templating library more specific than this for plain
// string-substitution templates, and bringing one in only to replace
// text/template's `{{.Field}}` syntax would not change the design.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package template

import (
	"bytes"
	"sync"
	"text/template"

	"github.com/pkg/errors"

	"github.com/momentics/logcorrelate/api"
)

// Evaluator caches compiled templates by source string, since the same
// key/synthetic_message template is evaluated once per message for the
// life of the process.
type Evaluator struct {
	mu    sync.Mutex
	cache map[string]*template.Template
}

var _ api.TemplateEvaluator = (*Evaluator)(nil)

// New returns an Evaluator with an empty template cache.
func New() *Evaluator {
	return &Evaluator{cache: make(map[string]*template.Template)}
}

// messageView is the field set a template can reference; Fields is
// exposed as .Fields so a template can index arbitrary keys
// (`{{.Fields.order_id}}`) without the evaluator hardcoding every name.
type messageView struct {
	Host      string
	Program   string
	Process   string
	Timestamp int64
	Fields    map[string]string
}

// Evaluate compiles (or reuses a compiled) tmpl and expands it against
// msg. A compile or execution error is returned wrapped with the failing
// step; the caller (correlator.Process) classifies any error as spec.md
// §7's TemplateError.
func (e *Evaluator) Evaluate(tmpl string, msg *api.Message) (string, error) {
	t, err := e.compiled(tmpl)
	if err != nil {
		return "", errors.Wrap(err, "compile key template")
	}

	view := messageView{
		Host:      msg.Host,
		Program:   msg.Program,
		Process:   msg.Process,
		Timestamp: msg.Timestamp.Unix(),
		Fields:    msg.Fields,
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, view); err != nil {
		return "", errors.Wrap(err, "execute key template")
	}
	return buf.String(), nil
}

func (e *Evaluator) compiled(src string) (*template.Template, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.cache[src]; ok {
		return t, nil
	}
	t, err := template.New("").Option("missingkey=zero").Parse(src)
	if err != nil {
		return nil, err
	}
	e.cache[src] = t
	return t, nil
}
