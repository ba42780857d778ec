// normalize.go adapts the teacher's internal/normalize "validate, clamp,
// and log a warning on invalid input" pattern from NUMA/CPU topology
// indices to correlation scope names — the same defensive shape, a
// different domain.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package keying

import (
	"github.com/sirupsen/logrus"

	"github.com/momentics/logcorrelate/api"
)

// NormalizeScope validates a configuration-surface scope name. On an
// unrecognized name it logs a warning and falls back to ScopeGlobal
// rather than failing the whole configuration. The fatal ConfigError
// for an invalid scope is raised once, by Config.Validate at
// construction; NormalizeScope serves hot-reload, after that point.
func NormalizeScope(requested string) api.Scope {
	scope, ok := api.ParseScope(requested)
	if !ok {
		logrus.WithField("requested_scope", requested).Warn("logcorrelate: unknown scope, falling back to global")
		return api.ScopeGlobal
	}
	return scope
}
