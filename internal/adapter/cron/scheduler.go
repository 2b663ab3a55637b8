package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/solisflux/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

const (
	TRIGGER_CRON    = "cron"
	DAILY_UPDATE_ID = "daily_update"
)

// Sender is the part of the actor root context used to dispatch triggers.
type Sender interface {
	Send(pid *actor.PID, message interface{})
}

// Scheduler fires one cycle per period, lead minutes before the period
// starts, plus the daily history update.
type Scheduler struct {
	sched    quartz.Scheduler
	sender   Sender
	target   *actor.PID
	location *time.Location
	lead     time.Duration
	keys     []string
	jobs     map[string]*dispatchJob
	logger   *zap.Logger
}

func NewScheduler(sender Sender, target *actor.PID, location *time.Location, lead time.Duration, logger *zap.Logger) (*Scheduler, error) {
	sched, err := quartz.NewStdScheduler()
	if err != nil {
		return nil, err
	}
	if location == nil {
		location = time.Local
	}
	return &Scheduler{
		sched:    sched,
		sender:   sender,
		target:   target,
		location: location,
		lead:     lead,
		jobs:     map[string]*dispatchJob{},
		logger:   logger.With(zap.String("component", "cron")),
	}, nil
}

// PeriodCronExpression renders the daily quartz expression firing lead
// before the period start.
func PeriodCronExpression(p domain.Period, lead time.Duration) string {
	at := p.Start.Add(-int(lead / time.Minute))
	return fmt.Sprintf("0 %d %d * * *", at.Minute(), at.Hour())
}

// Start registers every job and starts the scheduler. Jobs keep firing
// until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context, periods []domain.Period, dailyUpdateCron string) error {
	s.sched.Start(ctx)
	for _, p := range periods {
		expr := PeriodCronExpression(p, s.lead)
		msg := domain.ForPeriod{
			Name:    p.Name,
			Request: domain.RunCycleRequest{Save: true, Trigger: TRIGGER_CRON},
		}
		if err := s.schedule(p.Name, expr, fmt.Sprintf("%s cycle", p.LongName()), msg); err != nil {
			return err
		}
	}
	if dailyUpdateCron != "" {
		if err := s.schedule(DAILY_UPDATE_ID, dailyUpdateCron, "daily history update", domain.DailyUpdateRequest{}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) schedule(key, expr, description string, msg any) error {
	trigger, err := quartz.NewCronTriggerWithLoc(expr, s.location)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q for %s: %w", expr, key, err)
	}
	job := &dispatchJob{
		description: description,
		dispatch: func() {
			s.logger.Info("trigger fired", zap.String("job", key))
			s.sender.Send(s.target, msg)
		},
	}
	if err := s.sched.ScheduleJob(quartz.NewJobDetail(job, quartz.NewJobKey(key)), trigger); err != nil {
		return err
	}
	s.keys = append(s.keys, key)
	s.jobs[key] = job
	s.logger.Info("scheduled", zap.String("job", key), zap.String("cron", expr), zap.String("location", s.location.String()))
	return nil
}

// Jobs lists the registered job keys.
func (s *Scheduler) Jobs() []string {
	return append([]string(nil), s.keys...)
}

func (s *Scheduler) Stop() {
	s.sched.Stop()
}

// Wait blocks until the scheduler workers exit or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) {
	s.sched.Wait(ctx)
}

type dispatchJob struct {
	description string
	dispatch    func()
}

func (j *dispatchJob) Execute(_ context.Context) error {
	j.dispatch()
	return nil
}

func (j *dispatchJob) Description() string {
	return j.description
}

var _ quartz.Job = (*dispatchJob)(nil)
