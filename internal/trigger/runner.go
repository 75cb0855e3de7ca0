// Package trigger maps operation names onto the engines. Both the HTTP
// surface and `callsched run` go through Runner.Run.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/hotel-call-scheduler/internal/dispatch"
	"github.com/example/hotel-call-scheduler/internal/hotel"
	"github.com/example/hotel-call-scheduler/internal/lock"
	"github.com/example/hotel-call-scheduler/internal/reconcile"
	"github.com/example/hotel-call-scheduler/internal/scheduling"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var ErrBadRequest = errors.New("bad trigger request")

type Scheduler interface {
	Schedule(ctx context.Context, ct hotel.CallType) (int, error)
	ScheduleAll(ctx context.Context) scheduling.Result
}

type Dispatcher interface {
	Process(ctx context.Context, ct *hotel.CallType) (dispatch.Result, error)
}

type WakeUpDispatcher interface {
	Process(ctx context.Context) (dispatch.WakeUpResult, error)
}

type Syncer interface {
	Sync(ctx context.Context) reconcile.Result
}

type Locker interface {
	Acquire(ctx context.Context, op string) (func(), error)
}

type Request struct {
	Op       string
	CallType string
}

// Summary is the response of every trigger invocation.
type Summary struct {
	Operation string    `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
	CallType  string    `json:"call_type,omitempty"`
	Skipped   bool      `json:"skipped,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Error     string    `json:"error,omitempty"`

	Scheduled  *int                   `json:"scheduled,omitempty"`
	Scheduling *scheduling.Result     `json:"scheduling,omitempty"`
	Dispatch   *dispatch.Result       `json:"dispatch,omitempty"`
	WakeUps    *dispatch.WakeUpResult `json:"wake_ups,omitempty"`
	Sync       *reconcile.Result      `json:"sync,omitempty"`
}

type Runner struct {
	scheduler Scheduler
	dispatch  Dispatcher
	wakeUps   WakeUpDispatcher
	sync      Syncer
	locker    Locker
	tracer    trace.Tracer
	log       *zap.Logger

	Now func() time.Time
}

// NewRunner wires the engines. locker may be nil.
func NewRunner(s Scheduler, d Dispatcher, w WakeUpDispatcher, sy Syncer, locker Locker, log *zap.Logger) *Runner {
	return &Runner{
		scheduler: s,
		dispatch:  d,
		wakeUps:   w,
		sync:      sy,
		locker:    locker,
		tracer:    otel.Tracer("github.com/example/hotel-call-scheduler/internal/trigger"),
		log:       log.Named("trigger"),
		Now:       time.Now,
	}
}

type kind int

const (
	opScheduleAll kind = iota
	opScheduleOne
	opProcess
	opWakeUp
	opSync
	opMilestone
)

type plan struct {
	kind kind
	name string
	ct   *hotel.CallType
}

// Ops lists the operation names accepted by Run, for help text.
func Ops() []string {
	out := []string{"schedule", "process", "wakeup", "sync"}
	for _, ct := range hotel.CallTypes {
		out = append(out, "schedule-"+ct.Slug())
	}
	for _, ct := range hotel.CallTypes {
		out = append(out, ct.Slug())
	}
	return out
}

func parse(req Request) (plan, error) {
	op := strings.ToLower(strings.TrimSpace(req.Op))
	switch op {
	case "schedule":
		return plan{kind: opScheduleAll, name: op}, nil
	case "process", "dispatch":
		p := plan{kind: opProcess, name: "process"}
		if req.CallType != "" {
			ct, err := hotel.ParseCallType(req.CallType)
			if err != nil {
				return plan{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
			}
			p.ct = &ct
		}
		return p, nil
	case "wakeup", "wake-up", "wakeups":
		return plan{kind: opWakeUp, name: "wakeup"}, nil
	case "sync", "pms-sync":
		return plan{kind: opSync, name: "sync"}, nil
	}
	if rest, ok := strings.CutPrefix(op, "schedule-"); ok {
		ct, err := hotel.ParseCallType(rest)
		if err != nil {
			return plan{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		return plan{kind: opScheduleOne, name: "schedule-" + ct.Slug(), ct: &ct}, nil
	}
	if ct, err := hotel.ParseCallType(op); err == nil {
		return plan{kind: opMilestone, name: ct.Slug(), ct: &ct}, nil
	}
	return plan{}, fmt.Errorf("%w: unknown operation %q", ErrBadRequest, req.Op)
}

// Run executes one operation. The error is non-nil only for a request that
// names no valid operation; engine failures are reported in the Summary.
func (r *Runner) Run(ctx context.Context, req Request) (Summary, error) {
	p, err := parse(req)
	if err != nil {
		return Summary{Operation: req.Op, Timestamp: r.Now(), Error: err.Error()}, err
	}

	sum := Summary{Operation: p.name, Timestamp: r.Now()}
	if p.ct != nil {
		sum.CallType = string(*p.ct)
	}

	ctx, span := r.tracer.Start(ctx, "trigger."+p.name,
		trace.WithAttributes(attribute.String("callsched.operation", p.name), attribute.String("callsched.call_type", sum.CallType)))
	defer span.End()

	log := r.log.With(zap.String("op", p.name))
	if r.locker != nil {
		release, err := r.locker.Acquire(ctx, p.name)
		if errors.Is(err, lock.ErrHeld) {
			log.Info("operation already running, skipping")
			sum.Skipped, sum.Reason = true, "already running"
			span.SetAttributes(attribute.Bool("callsched.skipped", true))
			return sum, nil
		}
		if err != nil {
			// a dead lock backend must not stop calls from going out
			log.Warn("lock unavailable, running unguarded", zap.Error(err))
		}
		defer release()
	}

	start := time.Now()
	r.execute(ctx, p, &sum)
	if sum.Error != "" {
		span.SetStatus(codes.Error, sum.Error)
		log.Error("trigger finished with error", zap.String("error", sum.Error), zap.Duration("took", time.Since(start)))
	} else {
		log.Info("trigger finished", zap.Bool("skipped", sum.Skipped), zap.Duration("took", time.Since(start)))
	}
	return sum, nil
}

func (r *Runner) execute(ctx context.Context, p plan, sum *Summary) {
	switch p.kind {
	case opScheduleAll:
		res := r.scheduler.ScheduleAll(ctx)
		sum.Scheduling = &res
		if len(res.Errors) > 0 {
			sum.Error = fmt.Sprintf("%d milestone(s) failed", len(res.Errors))
		}

	case opScheduleOne:
		n, err := r.scheduler.Schedule(ctx, *p.ct)
		sum.Scheduled = &n
		if err != nil {
			sum.Error = err.Error()
		}

	case opProcess:
		r.process(ctx, p.ct, sum)

	case opMilestone:
		n, err := r.scheduler.Schedule(ctx, *p.ct)
		sum.Scheduled = &n
		if err != nil {
			sum.Error = err.Error()
			return
		}
		r.process(ctx, p.ct, sum)

	case opWakeUp:
		res, err := r.wakeUps.Process(ctx)
		sum.WakeUps = &res
		sum.Skipped = res.Skipped
		if res.Skipped {
			sum.Reason = "call gateway not configured"
		}
		if err != nil {
			sum.Error = err.Error()
		}

	case opSync:
		res := r.sync.Sync(ctx)
		sum.Sync = &res
		sum.Skipped = res.Skipped
		if res.Skipped {
			sum.Reason = "pms not configured"
		}
	}
}

func (r *Runner) process(ctx context.Context, ct *hotel.CallType, sum *Summary) {
	res, err := r.dispatch.Process(ctx, ct)
	sum.Dispatch = &res
	sum.Skipped = res.Skipped
	if res.Skipped {
		sum.Reason = "call gateway not configured"
	}
	if err != nil {
		sum.Error = err.Error()
	}
}
