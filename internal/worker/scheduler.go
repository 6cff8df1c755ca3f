package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Scheduler runs the periodic passes on a shared gocron instance. Every
// job fires once right after Start and then on its interval.
type Scheduler struct {
	sched gocron.Scheduler
	log   *zap.SugaredLogger
}

func NewScheduler(log *zap.SugaredLogger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Scheduler{sched: sched, log: log}, nil
}

// Add registers a periodic pass. A failing pass is logged and the next
// run proceeds as usual.
func (s *Scheduler) Add(ctx context.Context, name string, every time.Duration, pass func(context.Context) error) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			if err := pass(ctx); err != nil {
				s.log.Errorw(name+" failed", "error", err)
			}
		}),
		gocron.WithName(name),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}
