package pipeline

import (
	"context"
	"errors"

	"github.com/couchcryptid/weather-station-sim/internal/domain"
)

// Fanout publishes every batch to all of its publishers. Delivery is
// at-least-once: when one sink fails the runner retries the whole batch,
// so sinks that already accepted it see it again.
type Fanout []BatchPublisher

// NewFanout drops nil publishers and returns nil when none remain, so the
// result can be passed straight to New.
func NewFanout(publishers ...BatchPublisher) BatchPublisher {
	var f Fanout
	for _, p := range publishers {
		if p != nil {
			f = append(f, p)
		}
	}
	switch len(f) {
	case 0:
		return nil
	case 1:
		return f[0]
	}
	return f
}

// PublishBatch tries every publisher and joins their errors.
func (f Fanout) PublishBatch(ctx context.Context, snapshots []domain.Snapshot) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishBatch(ctx, snapshots); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
