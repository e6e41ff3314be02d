// Package jobs holds scheduled maintenance tasks.
package jobs

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"ckd-egfr-server/internal/models"
)

// Retention deletes calculation history older than a fixed number of days.
type Retention struct {
	db   *gorm.DB
	days int
	log  zerolog.Logger
	now  func() time.Time
}

// NewRetention creates a retention job. days must be positive.
func NewRetention(db *gorm.DB, days int, log zerolog.Logger) *Retention {
	return &Retention{
		db:   db,
		days: days,
		log:  log.With().Str("component", "retention").Logger(),
		now:  time.Now,
	}
}

// Run performs one purge. History dates are stored in UTC, so the cutoff is too.
func (r *Retention) Run() {
	cutoff := r.now().UTC().AddDate(0, 0, -r.days)
	deleted, err := models.PurgeHistoryBefore(r.db, cutoff)
	if err != nil {
		r.log.Error().Err(err).Time("cutoff", cutoff).Msg("History purge failed")
		return
	}
	r.log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("History purge finished")
}

// Schedule registers the job on c using a standard cron spec or descriptor such as "@daily".
func (r *Retention) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, r.Run)
	if err != nil {
		return 0, fmt.Errorf("invalid retention schedule %q: %w", spec, err)
	}
	r.log.Info().Str("schedule", spec).Int("days", r.days).Msg("History retention scheduled")
	return id, nil
}
