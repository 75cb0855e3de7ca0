// Package scheduler invokes trigger operations on fixed intervals for
// deployments without an external cron.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/example/hotel-call-scheduler/internal/config"
	"github.com/example/hotel-call-scheduler/internal/trigger"
	"go.uber.org/zap"
)

type Runner interface {
	Run(ctx context.Context, req trigger.Request) (trigger.Summary, error)
}

// Job runs Request every Every. Runs of one job never overlap.
type Job struct {
	Request trigger.Request
	Every   time.Duration
}

type Scheduler struct {
	Runner Runner
	Jobs   []Job
	Log    *zap.Logger

	wg sync.WaitGroup
}

// DefaultJobs is the cadence used by `serve --schedule`: dispatch and
// wake-ups every minute, scheduling and PMS sync on their own intervals.
func DefaultJobs(cfg config.Schedule) []Job {
	return []Job{
		{Request: trigger.Request{Op: "sync"}, Every: cfg.SyncEvery},
		{Request: trigger.Request{Op: "schedule"}, Every: cfg.ScheduleEvery},
		{Request: trigger.Request{Op: "process"}, Every: cfg.DispatchEvery},
		{Request: trigger.Request{Op: "wakeup"}, Every: cfg.DispatchEvery},
	}
}

func (s *Scheduler) Run(ctx context.Context) error {
	for _, j := range s.Jobs {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop(ctx, j)
		}()
	}
	<-ctx.Done()
	s.wg.Wait()
	return ctx.Err()
}

func (s *Scheduler) loop(ctx context.Context, j Job) {
	t := time.NewTicker(j.Every)
	defer t.Stop()

	// kick immediately
	s.tick(ctx, j)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.tick(ctx, j)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, j Job) {
	sum, err := s.Runner.Run(ctx, j.Request)
	if err != nil {
		s.Log.Error("scheduled trigger rejected", zap.String("op", j.Request.Op), zap.Error(err))
		return
	}
	if sum.Error != "" {
		s.Log.Warn("scheduled trigger failed", zap.String("op", sum.Operation), zap.String("error", sum.Error))
	}
}
