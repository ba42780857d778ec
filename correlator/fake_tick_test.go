package correlator_test

import "time"

// fakeTickSource is an api.TickSource that never fires on its own;
// tests call Fire() to simulate a tick at a chosen instant, keeping
// scenario tests free of real time.Sleep races (SPEC_FULL §8).
type fakeTickSource struct {
	fn func()
}

func (f *fakeTickSource) Start(_ time.Duration, fn func()) { f.fn = fn }
func (f *fakeTickSource) Stop()                             {}

func (f *fakeTickSource) Fire() {
	if f.fn != nil {
		f.fn()
	}
}
