// Package worker runs the queue consumption loop: long-poll, fan out
// per message, delete on success, leave failures for redelivery.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mindlog/session-worker/internal/platform/awsqueue"
	"github.com/mindlog/session-worker/internal/task"
)

// Queue is the queue capability the consumer needs.
type Queue interface {
	Ensure(ctx context.Context) error
	Receive(ctx context.Context) ([]awsqueue.Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Router dispatches one message body to its task handler.
type Router interface {
	Route(ctx context.Context, body []byte) error
}

// Consumer drives the worker: it polls the queue and processes each
// received batch with one goroutine per message. The consumer is the
// single point deciding delete versus leave-for-redelivery.
type Consumer struct {
	queue  Queue
	router Router
	log    *slog.Logger

	// errorPause throttles the loop when the queue itself is failing, so
	// a broken connection does not spin hot.
	errorPause time.Duration

	polling  atomic.Bool
	inFlight sync.WaitGroup
}

// NewConsumer creates a consumer over the queue and router.
func NewConsumer(queue Queue, router Router, log *slog.Logger) *Consumer {
	if queue == nil || router == nil {
		panic("queue and router cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{
		queue:      queue,
		router:     router,
		log:        log.With(slog.String("component", "consumer")),
		errorPause: 5 * time.Second,
	}
}

// Run polls the queue until Stop is called or the context is canceled.
// It blocks the calling goroutine.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.queue.Ensure(ctx); err != nil {
		return err
	}

	c.polling.Store(true)
	c.log.Info("consumer started")

	for c.polling.Load() {
		if ctx.Err() != nil {
			break
		}

		msgs, err := c.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			c.log.Error("receive failed", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
			case <-time.After(c.errorPause):
			}
			continue
		}

		for _, msg := range msgs {
			c.inFlight.Add(1)
			go func(msg awsqueue.Message) {
				defer c.inFlight.Done()
				c.handle(ctx, msg)
			}(msg)
		}
	}

	c.inFlight.Wait()
	c.log.Info("consumer stopped")
	return ctx.Err()
}

// Stop ends the polling loop. In-flight handlers finish; Run returns
// after they do.
func (c *Consumer) Stop() {
	c.polling.Store(false)
}

// handle routes one message and applies the delete policy: delete on
// success, delete unparsable poison messages, leave everything else for
// the visibility timeout and the queue's redrive policy.
func (c *Consumer) handle(ctx context.Context, msg awsqueue.Message) {
	log := c.log.With(slog.String("message_id", msg.ID))

	err := c.router.Route(ctx, msg.Body)
	switch {
	case err == nil:
		c.delete(ctx, log, msg)

	case errors.Is(err, task.ErrMalformedMessage):
		// Redelivery cannot fix an unparsable body.
		log.Warn("deleting malformed message", slog.String("error", err.Error()))
		c.delete(ctx, log, msg)

	case task.IsTerminal(err):
		log.Error("task failed terminally, leaving for dead-letter redrive",
			slog.String("error", err.Error()))

	default:
		log.Error("task failed, leaving for redelivery",
			slog.String("error", err.Error()))
	}
}

func (c *Consumer) delete(ctx context.Context, log *slog.Logger, msg awsqueue.Message) {
	// Shutdown must not strand a processed message as redeliverable.
	if err := c.queue.Delete(context.WithoutCancel(ctx), msg.ReceiptHandle); err != nil {
		log.Error("failed to delete message", slog.String("error", err.Error()))
	}
}
