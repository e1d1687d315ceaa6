package watcher

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/conneroisu/cwrap/internal/build"
	"github.com/conneroisu/cwrap/internal/logging"
)

// Trigger starts a build and delivers its result.
type Trigger interface {
	Trigger(ctx context.Context, mode build.Mode, reason string) <-chan build.Result
}

// RebuildHandler returns a handler that runs one development build per
// change batch and waits for it. A failed build is recorded in the build
// state and is not an error of the watcher.
func RebuildHandler(trigger Trigger, logger logging.Logger) ChangeHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("rebuild")

	return func(ctx context.Context, events []ChangeEvent) error {
		if len(events) == 0 {
			return nil
		}

		reason := describe(events)
		result := <-trigger.Trigger(ctx, build.ModeDev, reason)
		if result.Skipped {
			logger.Debug(ctx, "Rebuild skipped", "reason", reason)
			return nil
		}

		logger.Debug(ctx, "Rebuild finished",
			"reason", reason,
			"status", result.Snapshot.Status.String())
		return nil
	}
}

func describe(events []ChangeEvent) string {
	first := filepath.Base(events[0].Path)
	if len(events) == 1 {
		return fmt.Sprintf("%s %s", first, events[0].Type)
	}
	return fmt.Sprintf("%s and %d more changed", first, len(events)-1)
}
