package pool

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Sweeper periodically reclaims orphaned leases on a cron schedule.
type Sweeper struct {
	DB       *gorm.DB
	Timeout  time.Duration // lease age at which a silent lease is orphaned
	Schedule string        // 5-field cron expression
	Log      *logrus.Logger

	// Notify, when set, is called after any sweep that reclaimed at least
	// one lease.
	Notify func(reclaimed int64)
}

// SweepOnce runs a single reclaim pass and logs the outcome.
func (s *Sweeper) SweepOnce() (int64, error) {
	n, err := Reclaim(s.DB, s.Timeout)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.Log.WithField("reclaimed", n).Info("returned orphaned leases to the queue")
		if s.Notify != nil {
			s.Notify(n)
		}
	} else {
		s.Log.Debug("sweep found no orphaned leases")
	}
	return n, nil
}

// Run sweeps on the configured schedule until the context is cancelled.
// A failing sweep is logged and retried at the next fire time.
func (s *Sweeper) Run(ctx context.Context) error {
	sched, err := cronParser.Parse(s.Schedule)
	if err != nil {
		return fmt.Errorf("pool: parse sweep schedule %q: %w", s.Schedule, err)
	}

	timer := time.NewTimer(time.Until(sched.Next(time.Now())))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			if _, err := s.SweepOnce(); err != nil {
				s.Log.WithError(err).Error("sweep failed")
			}
			timer.Reset(time.Until(sched.Next(time.Now())))
		}
	}
}
