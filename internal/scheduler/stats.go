package scheduler

import "time"

// Stats is a point-in-time view of scheduler activity.
type Stats struct {
	Running   int
	Pending   int
	Submitted int
	Completed int
	Failed    int
	Cancelled int
	Rejected  int

	// AvgRunTime is a moving average weighted toward recent tasks.
	AvgRunTime  time.Duration
	LastRunTime time.Duration
}

// ErrorRate is the share of finished tasks that returned an error.
func (s Stats) ErrorRate() float64 {
	finished := s.Completed + s.Failed
	if finished == 0 {
		return 0
	}
	return float64(s.Failed) / float64(finished)
}

// Idle reports whether nothing was running or pending at snapshot time.
func (s Stats) Idle() bool {
	return s.Running == 0 && s.Pending == 0
}

func (s *Stats) record(err error, duration time.Duration) {
	if err != nil {
		s.Failed++
	} else {
		s.Completed++
	}

	s.LastRunTime = duration
	if s.AvgRunTime == 0 {
		s.AvgRunTime = duration
	} else {
		s.AvgRunTime = (s.AvgRunTime*4 + duration) / 5
	}
}
