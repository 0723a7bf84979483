package relay

import (
	"gorm.io/gorm"

	"sketch-relay/internal/config"
)

// Service is the turn orchestration core. The in-memory store is
// authoritative for live state; every mutation is written through to the
// database (when one is configured) and rebuilt from it on startup.
type Service struct {
	store    *Store
	db       *gorm.DB
	cfg      config.Config
	sched    *Scheduler
	notifier Notifier
}

func New(conn *gorm.DB, cfg config.Config) *Service {
	return &Service{
		store:    NewStore(),
		db:       conn,
		cfg:      cfg,
		sched:    NewScheduler(systemClock{}),
		notifier: logNotifier{},
	}
}

// UseNotifier swaps the notification collaborator. Call before serving.
func (s *Service) UseNotifier(n Notifier) {
	if n != nil {
		s.notifier = n
	}
}

// UseClock swaps the scheduler clock. Call before serving.
func (s *Service) UseClock(clock Clock) {
	s.sched = NewScheduler(clock)
}

// Shutdown cancels all armed timers. Pending deadlines are recovered from
// persisted state on the next start.
func (s *Service) Shutdown() {
	s.sched.Stop()
}
