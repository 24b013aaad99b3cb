package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mindlog/session-worker/internal/platform/awsqueue"
	"github.com/mindlog/session-worker/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedQueue serves batches in order, then blocks until the context
// is canceled.
type scriptedQueue struct {
	mu      sync.Mutex
	batches [][]awsqueue.Message
	deleted []string

	ensured    bool
	ensureErr  error
	receiveErr error
}

func (q *scriptedQueue) Ensure(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ensured = true
	return q.ensureErr
}

func (q *scriptedQueue) Receive(ctx context.Context) ([]awsqueue.Message, error) {
	q.mu.Lock()
	if q.receiveErr != nil {
		err := q.receiveErr
		q.receiveErr = nil
		q.mu.Unlock()
		return nil, err
	}
	if len(q.batches) > 0 {
		batch := q.batches[0]
		q.batches = q.batches[1:]
		q.mu.Unlock()
		return batch, nil
	}
	q.mu.Unlock()

	<-ctx.Done()
	return nil, ctx.Err()
}

func (q *scriptedQueue) Delete(ctx context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted = append(q.deleted, receiptHandle)
	return nil
}

func (q *scriptedQueue) deletedHandles() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.deleted...)
}

// scriptedRouter maps message bodies to errors.
type scriptedRouter struct {
	mu     sync.Mutex
	errs   map[string]error
	routed []string
}

func (r *scriptedRouter) Route(ctx context.Context, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routed = append(r.routed, string(body))
	return r.errs[string(body)]
}

func (r *scriptedRouter) routedBodies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.routed...)
}

func msg(id, body string) awsqueue.Message {
	return awsqueue.Message{ID: id, ReceiptHandle: "rh-" + id, Body: []byte(body)}
}

// runConsumer runs the consumer until the queue script is drained, then
// cancels and waits for Run to return.
func runConsumer(t *testing.T, queue *scriptedQueue, router *scriptedRouter) {
	t.Helper()
	c := NewConsumer(queue, router, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	// Drain: wait for all scripted batches to be consumed.
	require.Eventually(t, func() bool {
		queue.mu.Lock()
		defer queue.mu.Unlock()
		return len(queue.batches) == 0 && queue.receiveErr == nil
	}, 2*time.Second, 5*time.Millisecond)

	// Give in-flight handlers a moment, then stop.
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestConsumerDeletesOnSuccess(t *testing.T) {
	queue := &scriptedQueue{batches: [][]awsqueue.Message{{msg("1", `{"ok":true}`)}}}
	router := &scriptedRouter{errs: map[string]error{}}

	runConsumer(t, queue, router)

	assert.True(t, queue.ensured)
	assert.Equal(t, []string{`{"ok":true}`}, router.routedBodies())
	assert.Equal(t, []string{"rh-1"}, queue.deletedHandles())
}

func TestConsumerDeletesMalformedMessages(t *testing.T) {
	queue := &scriptedQueue{batches: [][]awsqueue.Message{{msg("1", "garbage")}}}
	router := &scriptedRouter{errs: map[string]error{
		"garbage": fmt.Errorf("%w: bad json", task.ErrMalformedMessage),
	}}

	runConsumer(t, queue, router)

	assert.Equal(t, []string{"rh-1"}, queue.deletedHandles(),
		"poison messages are deleted, never redelivered")
}

func TestConsumerLeavesFailedMessages(t *testing.T) {
	queue := &scriptedQueue{batches: [][]awsqueue.Message{{
		msg("terminal", "t"),
		msg("transient", "x"),
		msg("good", "g"),
	}}}
	router := &scriptedRouter{errs: map[string]error{
		"t": task.Terminal(errors.New("missing field")),
		"x": errors.New("provider down"),
	}}

	runConsumer(t, queue, router)

	assert.Equal(t, []string{"rh-good"}, queue.deletedHandles(),
		"terminal and transient failures stay on the queue for the redrive policy")
	assert.ElementsMatch(t, []string{"t", "x", "g"}, router.routedBodies())
}

func TestConsumerProcessesBatchConcurrently(t *testing.T) {
	const n = 8
	var batch []awsqueue.Message
	for i := 0; i < n; i++ {
		batch = append(batch, msg(fmt.Sprintf("%d", i), fmt.Sprintf("body-%d", i)))
	}
	queue := &scriptedQueue{batches: [][]awsqueue.Message{batch}}
	router := &scriptedRouter{errs: map[string]error{}}

	runConsumer(t, queue, router)

	assert.Len(t, router.routedBodies(), n)
	assert.Len(t, queue.deletedHandles(), n)
}

func TestConsumerSurvivesReceiveErrors(t *testing.T) {
	queue := &scriptedQueue{
		receiveErr: errors.New("connection reset"),
		batches:    [][]awsqueue.Message{{msg("1", "ok")}},
	}
	router := &scriptedRouter{errs: map[string]error{}}

	c := NewConsumer(queue, router, nil)
	c.errorPause = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	// After the receive error pause the batch still gets processed.
	require.Eventually(t, func() bool {
		return len(queue.deletedHandles()) == 1
	}, 10*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestConsumerEnsureFailureAborts(t *testing.T) {
	queue := &scriptedQueue{ensureErr: errors.New("access denied")}
	c := NewConsumer(queue, &scriptedRouter{}, nil)

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestConsumerStopDrainsInFlight(t *testing.T) {
	queue := &scriptedQueue{batches: [][]awsqueue.Message{{msg("1", "slow")}}}
	started := make(chan struct{})
	release := make(chan struct{})
	router := &blockingRouter{started: started, release: release}

	c := NewConsumer(queue, router, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	<-started
	c.Stop()
	cancel()

	select {
	case <-done:
		t.Fatal("Run returned while a handler was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after handlers finished")
	}
	assert.Equal(t, []string{"rh-1"}, queue.deletedHandles(),
		"messages finished during shutdown are still deleted")
}

// blockingRouter blocks until released.
type blockingRouter struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *blockingRouter) Route(ctx context.Context, body []byte) error {
	r.once.Do(func() { close(r.started) })
	<-r.release
	return nil
}
