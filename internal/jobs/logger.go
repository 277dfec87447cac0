package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Logger adapts zerolog to asynq.Logger.
type Logger struct {
	L zerolog.Logger
}

func (l Logger) Debug(args ...interface{}) { l.L.Debug().Msg(fmt.Sprint(args...)) }
func (l Logger) Info(args ...interface{})  { l.L.Info().Msg(fmt.Sprint(args...)) }
func (l Logger) Warn(args ...interface{})  { l.L.Warn().Msg(fmt.Sprint(args...)) }
func (l Logger) Error(args ...interface{}) { l.L.Error().Msg(fmt.Sprint(args...)) }

// Fatal logs at fatal level, which exits the process.
func (l Logger) Fatal(args ...interface{}) { l.L.Fatal().Msg(fmt.Sprint(args...)) }

// ErrorHandler logs tasks that failed processing. Retries are scheduled by
// asynq after this returns.
func ErrorHandler(logger zerolog.Logger) asynq.ErrorHandlerFunc {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		logger.Warn().
			Err(err).
			Str("task", task.Type()).
			Int("retried", retried).
			Int("max_retry", maxRetry).
			Msg("task failed")
	}
}
