// Package control holds the correlator's control plane: live-reloadable
// configuration, runtime metrics, and debug introspection probes. None
// of it participates in the hot path of Process/tick; it exists so an
// operator (or the correlatectl CLI) can observe and retune a running
// engine.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package control
