package engine

import "sync/atomic"

// JobHolder tracks the id of the job a Worker currently has claimed, so
// Cleanup can release it if shutdown interrupts ProcessOne before it
// manages to write the job's own terminal state. Zero means "holding
// nothing" — job ids are always positive (BIGSERIAL).
type JobHolder struct {
	id atomic.Int64
}

// Hold records that id is now claimed by this worker.
func (h *JobHolder) Hold(id int64) {
	h.id.Store(id)
}

// Release clears the held job id once its terminal state has been
// written successfully.
func (h *JobHolder) Release() {
	h.id.Store(0)
}

// Held returns the currently held job id, if any.
func (h *JobHolder) Held() (id int64, ok bool) {
	id = h.id.Load()
	return id, id != 0
}
