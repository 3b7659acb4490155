package publish

import (
	"context"

	"codeberg.org/halvor/sunmon/internal/cache"
)

// Publisher delivers one device snapshot to a monitoring sink.
type Publisher interface {
	Publish(ctx context.Context, snap cache.Snapshot) error
	Close() error
}
