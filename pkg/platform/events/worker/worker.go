package worker

import (
	"context"

	"chimera/pkg/platform/events"
)

// Worker drains an event channel into a store. It stops when the inbox is
// closed or the context is cancelled.
type Worker struct {
	store events.Store
	inbox <-chan events.Event
	onErr func(events.Event, error)
}

func NewWorker(store events.Store, inbox <-chan events.Event, onErr func(events.Event, error)) *Worker {
	return &Worker{store: store, inbox: inbox, onErr: onErr}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.store.Append(ctx, event); err != nil && w.onErr != nil {
				w.onErr(event, err)
			}
		}
	}
}
