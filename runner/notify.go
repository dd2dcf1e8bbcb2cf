package runner

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier publishes the outcome of a run, e.g. by mail.
type Notifier interface {
	Notify(ctx context.Context, report Report) error
}

// Recorder persists run statistics.
type Recorder interface {
	Record(report Report) error
}

// LogNotifier writes the report to the log.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) Notify(_ context.Context, report Report) error {
	ev := n.Logger.Info()
	if !report.Succeeded {
		ev = n.Logger.Error()
	} else if report.Status.Errors > 0 {
		ev = n.Logger.Warn()
	}
	ev.Object("report", report).Msg(report.Subject)
	return nil
}
