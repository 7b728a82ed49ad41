package refresh

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"

	apperrors "github.com/Rohianon/folio/pkg/errors"
	"github.com/Rohianon/folio/pkg/logger"
)

const DefaultSchedule = "@every 30s"

// cronLogger routes cron's own diagnostics through zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}

// Run fires a Tick refresh on schedule until ctx is done. Ticks that land
// while a cycle is still running are dropped.
func (c *Controller) Run(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	scheduler := cron.New(cron.WithChain(
		cron.Recover(cronLogger{}),
		cron.SkipIfStillRunning(cronLogger{}),
	))

	_, err := scheduler.AddFunc(schedule, func() {
		if _, err := c.Refresh(ctx, TriggerTick); err != nil && !errors.Is(err, ErrNoHolder) {
			logger.Debug().Err(err).Msg("Scheduled refresh not applied")
		}
	})
	if err != nil {
		return apperrors.ErrValidation.
			WithMessage("invalid refresh schedule " + schedule).
			WithError(err)
	}

	logger.Info().Str("schedule", schedule).Msg("Refresh schedule started")
	scheduler.Start()

	<-ctx.Done()

	<-scheduler.Stop().Done()
	logger.Info().Msg("Refresh schedule stopped")
	return nil
}
