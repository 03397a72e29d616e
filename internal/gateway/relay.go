package gateway

import (
	"context"
	"errors"
	"log"
	"time"

	"stock-analyzer/internal/model"
)

// ReportSubscriber streams reports published by any instance.
type ReportSubscriber interface {
	Subscribe(ctx context.Context, out chan<- *model.Report) error
}

// Resubscribe backoff. Variables so tests can shrink them.
var (
	relayRetryDelay = 2 * time.Second
	relayMaxDelay   = 30 * time.Second
)

// Relay forwards every report received from sub to the hub's clients.
// Blocks until ctx is cancelled. A failed or ended subscription is retried
// with exponential backoff.
func (h *Hub) Relay(ctx context.Context, sub ReportSubscriber) {
	delay := relayRetryDelay
	for {
		delivered, err := h.relayOnce(ctx, sub)
		if ctx.Err() != nil {
			return
		}
		if delivered > 0 {
			delay = relayRetryDelay
		}
		if err == nil {
			err = errors.New("subscription closed")
		}
		log.Printf("[gateway] report relay interrupted (%v), resubscribing in %s", err, delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > relayMaxDelay {
			delay = relayMaxDelay
		}
	}
}

// relayOnce runs one subscription until it ends, returning how many reports
// it broadcast.
func (h *Hub) relayOnce(ctx context.Context, sub ReportSubscriber) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan *model.Report, 16)
	errc := make(chan error, 1)
	go func() {
		errc <- sub.Subscribe(ctx, ch)
	}()

	log.Println("[gateway] relaying published reports")
	n := 0
	for {
		select {
		case <-ctx.Done():
			return n, nil
		case err := <-errc:
			// drain what arrived before the subscription ended
			for {
				select {
				case r := <-ch:
					h.BroadcastReport(r)
					n++
				default:
					return n, err
				}
			}
		case r := <-ch:
			h.BroadcastReport(r)
			n++
		}
	}
}
