// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package correlator

import (
	"github.com/momentics/logcorrelate/api"
	"github.com/momentics/logcorrelate/internal/keying"
	"github.com/momentics/logcorrelate/internal/timerwheel"
)

// corrState is the correlator's private representation of spec.md §3's
// CorrelationContext. It is never exposed by pointer to a collaborator:
// the SyntheticBuilder instead receives a read-only api.Context view
// built from it at expiry time.
type corrState struct {
	key         keying.Key
	messages    []*api.Message
	timerHandle timerwheel.Handle

	createdAtSeconds int64
	timeoutSeconds   int64
	deadlineSeconds  int64
}

// snapshot builds the read-only view a SyntheticBuilder consumes.
func (c *corrState) snapshot(expiredAtSeconds int64) api.Context {
	return api.Context{
		Key:              c.key.String(),
		Scope:            c.key.Scope(),
		Messages:         c.messages,
		Timeout:          c.timeoutSeconds,
		CreatedAtSeconds: c.createdAtSeconds,
		ExpiredAtSeconds: expiredAtSeconds,
	}
}
