// Package coordinator owns the single-writer serialization the contract
// state machine requires. It runs a fixed pool of goroutines, one per
// shard, each draining its own buffered channel
// of work items hashed by contract ID, so every message for a given
// contract is always handled by the same goroutine and never races with
// another message for that same contract.
//
// The coordinator implements chain.StatusUpdater and
// liquidation.ContractUpdater so the watcher and monitor can report into it
// without either package importing storage/postgres, and without the watcher
// importing contract.
package coordinator

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"

	"github.com/google/uuid"

	"github.com/satlend/hub/contract"
)

// work is one unit of serialized contract mutation, dispatched to the shard
// owning its ContractID.
type work struct {
	contractID uuid.UUID
	apply      func(*contract.Contract) error
	done       chan error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger installs a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithShardCount overrides the default shard pool size.
func WithShardCount(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.shardCount = n
		}
	}
}

// WithQueueDepth overrides each shard channel's buffer size.
func WithQueueDepth(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.queueDepth = n
		}
	}
}

// Coordinator fans every contract mutation out to a fixed pool of shard
// goroutines, serializing per-contract access without a shared mutex.
type Coordinator struct {
	store   contract.Store
	emitter contract.Emitter
	logger  *slog.Logger

	shardCount int
	queueDepth int
	shards     []chan work
}

// New constructs a Coordinator. Run must be called to start the shard pool.
func New(store contract.Store, emitter contract.Emitter, opts ...Option) *Coordinator {
	if emitter == nil {
		emitter = contract.NoopEmitter{}
	}
	c := &Coordinator{
		store:      store,
		emitter:    emitter,
		logger:     slog.Default(),
		shardCount: 16,
		queueDepth: 256,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.shards = make([]chan work, c.shardCount)
	for i := range c.shards {
		c.shards[i] = make(chan work, c.queueDepth)
	}
	return c
}

// Run starts one goroutine per shard and blocks until ctx is cancelled. Each
// shard goroutine exits only after its channel is drained of all work
// queued before cancellation, so in-flight mutations are never abandoned
// mid-transaction.
func (c *Coordinator) Run(ctx context.Context) error {
	done := make(chan struct{}, c.shardCount)
	for i := range c.shards {
		go c.runShard(ctx, c.shards[i], done)
	}
	for i := 0; i < c.shardCount; i++ {
		<-done
	}
	return ctx.Err()
}

func (c *Coordinator) runShard(ctx context.Context, queue chan work, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	for {
		select {
		case <-ctx.Done():
			c.drain(queue)
			return
		case w := <-queue:
			w.done <- c.handle(ctx, w)
		}
	}
}

// drain fails every item still queued when the shard is asked to stop, so
// no caller blocks forever waiting on a result that will never arrive.
func (c *Coordinator) drain(queue chan work) {
	for {
		select {
		case w := <-queue:
			w.done <- fmt.Errorf("coordinator: shutting down")
		default:
			return
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, w work) error {
	existing, err := c.store.Get(ctx, w.contractID)
	if err != nil {
		return fmt.Errorf("coordinator: load contract %s: %w", w.contractID, err)
	}
	before := existing.Status
	if err := w.apply(existing); err != nil {
		return err
	}
	if err := c.store.Save(ctx, existing); err != nil {
		return fmt.Errorf("coordinator: save contract %s: %w", w.contractID, err)
	}
	if existing.Status != before {
		c.emitter.Emit(contract.StatusChanged{ContractID: w.contractID, From: before, To: existing.Status})
	}
	return nil
}

// dispatch enqueues apply against the shard owning contractID and blocks for
// the result, or returns ctx.Err() if ctx is cancelled first.
func (c *Coordinator) dispatch(ctx context.Context, contractID uuid.UUID, apply func(*contract.Contract) error) error {
	w := work{contractID: contractID, apply: apply, done: make(chan error, 1)}
	shard := c.shards[shardFor(contractID, len(c.shards))]
	select {
	case shard <- w:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-w.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func shardFor(id uuid.UUID, shardCount int) int {
	h := fnv.New32a()
	_, _ = h.Write(id[:])
	return int(h.Sum32()) % shardCount
}
