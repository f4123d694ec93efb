package domain

// RunState carries counters and progress for one import or clear cycle.
// The host persists it between batch steps and discards it on completion.
type RunState struct {
	CycleID string `json:"cycle_id"`

	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Failed    int `json:"failed"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Processed int `json:"processed"`
	Total     int `json:"total"`

	Deleted       int  `json:"deleted"`
	TotalToDelete int  `json:"total_to_delete"`
	Initialized   bool `json:"initialized"`

	Progress float64 `json:"progress"`
	Done     bool    `json:"done"`
}

// Reset clears all counters for a fresh cycle.
func (s *RunState) Reset(cycleID string) {
	*s = RunState{CycleID: cycleID}
}

// SetProgress records done/total as a fraction in [0, 1]. A zero total counts as complete.
func (s *RunState) SetProgress(total, done int) {
	if total <= 0 || done >= total {
		s.Progress = 1
		return
	}
	if done < 0 {
		done = 0
	}
	s.Progress = float64(done) / float64(total)
}
