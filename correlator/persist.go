// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package correlator

import (
	"encoding/json"
	"time"

	"github.com/momentics/logcorrelate/api"
	"github.com/momentics/logcorrelate/internal/keying"
)

// persistSnapshot is the blob stored under spec.md §6's stable persist
// name. PersistenceStore itself only moves opaque bytes; this is the
// concrete format this engine chooses to put inside them. No library in
// the pack owns "serialize an arbitrary domain struct to bytes" more
// specifically than encoding/json, so this stays stdlib: the concern
// here is the schema, not the wire codec, and sqlx/sqlite only ever see
// the result as a single blob column.
type persistSnapshot struct {
	PersistedAtSeconds int64              `json:"persisted_at_seconds"`
	Contexts           []persistedContext `json:"contexts"`
}

type persistedContext struct {
	KeyText               string             `json:"key"`
	RemainingDeltaSeconds int64              `json:"remaining_delta_seconds"`
	TimeoutSeconds        int64              `json:"timeout_seconds"`
	CreatedAtSeconds      int64              `json:"created_at_seconds"`
	Messages              []persistedMessage `json:"messages"`
}

type persistedMessage struct {
	TimestampUnix int64             `json:"ts"`
	Host          string            `json:"host"`
	Program       string            `json:"program"`
	Process       string            `json:"process"`
	Fields        map[string]string `json:"fields"`
}

// buildSnapshot captures every live context's key, messages and
// remaining deadline (expressed as a delta from nowS, per spec.md §6)
// into a serializable snapshot.
func (c *Correlator) buildSnapshot(nowS int64) persistSnapshot {
	snap := persistSnapshot{PersistedAtSeconds: nowS}
	c.store.Range(func(k keying.Key, h arenaHandle) {
		st, ok := c.contexts.Get(h)
		if !ok {
			return
		}
		remaining := st.deadlineSeconds - nowS
		if remaining < 0 {
			remaining = 0
		}
		keyText, _ := k.MarshalText()
		pc := persistedContext{
			KeyText:              string(keyText),
			RemainingDeltaSeconds: remaining,
			TimeoutSeconds:        st.timeoutSeconds,
			CreatedAtSeconds:      st.createdAtSeconds,
		}
		for _, m := range st.messages {
			pc.Messages = append(pc.Messages, persistedMessage{
				TimestampUnix: m.Timestamp.Unix(),
				Host:          m.Host,
				Program:       m.Program,
				Process:       m.Process,
				Fields:        m.Fields,
			})
		}
		snap.Contexts = append(snap.Contexts, pc)
	})
	return snap
}

// marshalSnapshot/unmarshalSnapshot isolate the codec so swapping it
// later touches one place.
func marshalSnapshot(s persistSnapshot) ([]byte, error) {
	return json.Marshal(s)
}

func unmarshalSnapshot(blob []byte) (persistSnapshot, error) {
	var s persistSnapshot
	if len(blob) == 0 {
		return s, nil
	}
	err := json.Unmarshal(blob, &s)
	return s, err
}

// restoreMessage reconstructs an api.Message from its persisted form.
// Restored messages are frozen immediately: they already joined a
// context in a prior process lifetime, so spec.md §8's write-protect
// invariant applies to them too.
func restoreMessage(pm persistedMessage) *api.Message {
	m := api.NewMessage(time.Unix(pm.TimestampUnix, 0))
	m.Host = pm.Host
	m.Program = pm.Program
	m.Process = pm.Process
	for k, v := range pm.Fields {
		m.Fields[k] = v
	}
	m.Freeze()
	return m
}
