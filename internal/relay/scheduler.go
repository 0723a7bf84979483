package relay

import (
	"sync"
	"time"
)

const (
	jobClaimTimeout      = "claim-timeout"
	jobSubmissionTimeout = "submission-timeout"
	jobSeasonOpen        = "season-open"
)

func claimJobID(turnID string) string {
	return jobClaimTimeout + ":" + turnID
}

func submissionJobID(turnID string) string {
	return jobSubmissionTimeout + ":" + turnID
}

func seasonOpenJobID(seasonID string) string {
	return jobSeasonOpen + ":" + seasonID
}

// Clock supplies the current time. The scheduler takes it as a dependency
// so deadline arithmetic is testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Scheduler runs named, time-triggered callbacks. Scheduling a job id that
// is already armed replaces the old timer, so re-scheduling the same
// logical timer is idempotent and cancellation is unambiguous. Timers live
// in process memory only; on restart they are re-derived from persisted
// turn deadlines (see restore.go).
type Scheduler struct {
	clock  Clock
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewScheduler(clock Clock) *Scheduler {
	if clock == nil {
		clock = systemClock{}
	}
	return &Scheduler{
		clock:  clock,
		timers: make(map[string]*time.Timer),
	}
}

func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// Schedule arms fn to run once at fireAt. A past-due fireAt fires
// immediately. The callback runs on its own goroutine and must be
// idempotent: it may race with a concurrent state change.
func (s *Scheduler) Schedule(jobID string, fireAt time.Time, fn func()) {
	delay := fireAt.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.timers[jobID]; ok {
		existing.Stop()
	}
	s.timers[jobID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, jobID)
		s.mu.Unlock()
		fn()
	})
}

func (s *Scheduler) Cancel(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[jobID]; ok {
		timer.Stop()
		delete(s.timers, jobID)
	}
}

// Stop cancels every armed timer. Used on shutdown and when a season is
// terminated wholesale.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for jobID, timer := range s.timers {
		timer.Stop()
		delete(s.timers, jobID)
	}
}

// Pending reports whether a timer is currently armed for the job id.
func (s *Scheduler) Pending(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[jobID]
	return ok
}
