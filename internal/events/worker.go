package events

import (
	"context"
)

// Worker drains the event inbox into a publisher, keeping the wire path free
// of any broker latency.
type Worker struct {
	publisher Publisher
	inbox     <-chan Event
}

func NewWorker(publisher Publisher, inbox <-chan Event) *Worker {
	return &Worker{publisher: publisher, inbox: inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.publisher.Publish(ctx, event); err != nil {
				return err
			}
		}
	}
}
