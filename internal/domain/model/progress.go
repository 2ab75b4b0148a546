package model

// ProgressSnapshot is the ephemeral per-job progress record kept in Redis.
// It is advisory: the durable source of truth is the job row, and readers
// fall back to processed/total when no snapshot exists.
type ProgressSnapshot struct {
	JobID    string         `json:"job_id"`
	Progress float64        `json:"progress"`
	Message  string         `json:"message,omitempty"`
	Status   JobStatus      `json:"status,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// Clamp bounds Progress to [0, 1].
func (s *ProgressSnapshot) Clamp() {
	if s.Progress < 0 {
		s.Progress = 0
	}
	if s.Progress > 1 {
		s.Progress = 1
	}
}

// IsZero reports whether the snapshot carries no data (cache miss).
func (s *ProgressSnapshot) IsZero() bool {
	return s.JobID == "" && s.Progress == 0 && s.Message == "" && s.Status == "" && s.Meta == nil
}
