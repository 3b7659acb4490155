package publish

import (
	"context"

	"codeberg.org/halvor/sunmon/internal/cache"
	"codeberg.org/halvor/sunmon/internal/logger"
)

// Multi fans one snapshot out to several sinks. A failing sink is logged
// and skipped; it never blocks the other sinks or fails the tick.
type Multi struct {
	sinks []Publisher
}

func NewMulti(sinks ...Publisher) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) Publish(ctx context.Context, snap cache.Snapshot) error {
	for _, sink := range m.sinks {
		if err := sink.Publish(ctx, snap); err != nil {
			logger.Warn().
				Str("device", snap.DeviceID).
				Err(err).
				Msg("Snapshot sink write failed")
		}
	}

	return nil
}

func (m *Multi) Close() error {
	var firstErr error
	for _, sink := range m.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
