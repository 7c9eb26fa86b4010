package service

import (
	"context"
	"fmt"
	"time"

	"golang-stock-digest/internal/digest/config"
	"golang-stock-digest/pkg/logger"

	"github.com/robfig/cron/v3"
)

// A full run over many users can take a long time; the job is bounded so a
// wedged agent cannot leak the run forever.
const dailyRunTimeout = 2 * time.Hour

// SchedulerService triggers the daily digest run on a cron schedule in the
// configured timezone.
type SchedulerService interface {
	Start() error
	Stop()
}

type schedulerService struct {
	cfg       *config.Config
	logger    *logger.Logger
	digestSvc DigestService
	cron      *cron.Cron
}

// NewSchedulerService creates the scheduler. The configured timezone must be
// a valid IANA name.
func NewSchedulerService(cfg *config.Config, log *logger.Logger, digestSvc DigestService) (SchedulerService, error) {
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", cfg.Scheduler.Timezone, err)
	}

	return &schedulerService{
		cfg:       cfg,
		logger:    log,
		digestSvc: digestSvc,
		cron:      cron.New(cron.WithLocation(loc)),
	}, nil
}

func (s *schedulerService) Start() error {
	spec := fmt.Sprintf("%d %d * * *", s.cfg.Scheduler.Minute, s.cfg.Scheduler.Hour)
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), dailyRunTimeout)
		defer cancel()
		s.digestSvc.SendDailyDigests(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to register daily digest job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Daily digest scheduler started",
		logger.StringField("timezone", s.cfg.Scheduler.Timezone),
		logger.IntField("hour", s.cfg.Scheduler.Hour),
		logger.IntField("minute", s.cfg.Scheduler.Minute),
	)
	return nil
}

// Stop halts scheduling and waits for a running job to finish.
func (s *schedulerService) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Daily digest scheduler stopped")
}
