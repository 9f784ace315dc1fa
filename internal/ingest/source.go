package ingest

import (
	"context"

	"github.com/your-org/peoplecounter/internal/models"
)

// Source produces detection records until ctx is done or it fails.
type Source interface {
	Run(ctx context.Context, out chan<- Record) error
}

// Events adapts a record channel into the event channel the counting
// pipeline reads. The returned channel is closed when in is.
func Events(ctx context.Context, in <-chan Record) <-chan models.DetectionEvent {
	out := make(chan models.DetectionEvent, cap(in))
	go func() {
		defer close(out)
		for rec := range in {
			select {
			case out <- rec.Event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func emit(ctx context.Context, out chan<- Record, rec Record) error {
	select {
	case out <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
