package feed

import (
	"context"
	"errors"
	"io"

	"github.com/banshee-data/lighthouse/internal/monitoring"
)

var logf = monitoring.Component("feed")

// Updater is called once per frame message.
type Updater interface {
	Update() bool
}

// Stats counts the messages Run dispatched.
type Stats struct {
	Lighthouse int
	Frames     int
	Hits       int
	Presses    int
}

type result struct {
	msg Message
	err error
}

// Run reads messages from src on a separate goroutine and dispatches them to
// device on the calling goroutine, calling u.Update for every frame. It
// returns when the source ends (nil error), fails, or ctx is cancelled.
func Run(ctx context.Context, src Source, device *Device, u Updater) (Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	msgs := make(chan result)
	go func() {
		defer close(msgs)
		for {
			m, err := src.Next(ctx)
			select {
			case msgs <- result{msg: m, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var stats Stats
	frame := func() {
		stats.Frames++
		if u.Update() {
			stats.Hits++
		}
	}

	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case r, ok := <-msgs:
			if !ok {
				return stats, ctx.Err()
			}
			if errors.Is(r.err, io.EOF) {
				logf("source ended: %d frames, %d presses", stats.Frames, stats.Presses)
				return stats, nil
			}
			if r.err != nil {
				return stats, r.err
			}
			switch r.msg.Type {
			case TypeLighthouse:
				stats.Lighthouse++
			case TypePress:
				stats.Presses++
			}
			device.Dispatch(r.msg, frame)
		}
	}
}
