package jobs

import (
	"context"
	"fmt"
	"time"

	"hokenhub/internal/metrics"
	"hokenhub/internal/service"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const digestTimeout = 10 * time.Minute

// DigestSender is the notification capability the scheduler drives
type DigestSender interface {
	SendWeeklyDigest(ctx context.Context) (*service.DigestResult, error)
}

// Scheduler runs the periodic email jobs
type Scheduler struct {
	cron   *cron.Cron
	digest DigestSender
	log    *logrus.Logger
}

// NewScheduler registers the weekly digest on schedule, a standard five-field cron spec
func NewScheduler(schedule string, digest DigestSender, log *logrus.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger))),
		digest: digest,
		log:    log,
	}
	if _, err := s.cron.AddFunc(schedule, s.RunDigest); err != nil {
		return nil, fmt.Errorf("schedule weekly digest %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.WithField("entries", len(s.cron.Entries())).Info("job scheduler started")
}

// Stop waits for a running job to finish or ctx to end
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("job scheduler stop timed out")
	}
}

// RunDigest sends one weekly digest and records the outcome
func (s *Scheduler) RunDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), digestTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.digest.SendWeeklyDigest(ctx)
	entry := s.log.WithField("duration_ms", time.Since(start).Milliseconds())
	if res != nil {
		entry = entry.WithFields(logrus.Fields{"recipients": res.Recipients, "plans": res.Plans})
	}

	switch {
	case err != nil && (res == nil || res.Recipients == 0):
		metrics.DigestRuns.WithLabelValues("failed").Inc()
		entry.WithError(err).Error("weekly digest failed")
	case err != nil:
		metrics.DigestRuns.WithLabelValues("partial").Inc()
		entry.WithError(err).Warn("weekly digest partially delivered")
	default:
		metrics.DigestRuns.WithLabelValues("success").Inc()
		entry.Info("weekly digest sent")
	}
}
