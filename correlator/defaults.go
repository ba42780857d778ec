// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package correlator

import (
	"context"

	"github.com/momentics/logcorrelate/api"
	"github.com/momentics/logcorrelate/emit"
	"github.com/momentics/logcorrelate/synthetic"
	"github.com/momentics/logcorrelate/template"
)

func defaultEvaluator() api.TemplateEvaluator { return template.New() }

func defaultBuilder(prefix string) api.SyntheticBuilder { return synthetic.New(prefix) }

func defaultEmitter() api.Emitter { return emit.NewLogrusEmitter(nil) }

// noopPersistence is used until a caller supplies a real
// PersistenceStore (e.g. persistence/sqlite.Store) via WithPersistence.
// Load reports no saved state without error: a first start with no
// store configured is the expected steady state, not a fault (Init
// starts empty either way, per spec.md §7's PersistError recovery path).
type noopPersistence struct{}

var _ api.PersistenceStore = noopPersistence{}

func (noopPersistence) Load(context.Context, string) ([]byte, error) {
	return nil, nil
}

func (noopPersistence) Save(context.Context, string, []byte) error { return nil }
