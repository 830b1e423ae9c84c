package market

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

type opKind int

const (
	opUpsert opKind = iota
	opDelete
)

func (k opKind) String() string {
	if k == opDelete {
		return "delete"
	}
	return "upsert"
}

type persistOp struct {
	kind    opKind
	id      string
	listing domain.Listing
	done    chan error
}

// PersisterConfig tunes the asynchronous store mirror. QueueSize is the
// per-worker backlog above which a warning is logged; it never bounds the
// queue.
type PersisterConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// shard is one worker's FIFO. The queue grows without bound so that callers,
// who may hold a listing lock, never wait on store I/O.
type shard struct {
	mu     sync.Mutex
	queue  []persistOp
	wake   chan struct{}
	closed bool
}

func (s *shard) push(op persistOp) int {
	s.mu.Lock()
	s.queue = append(s.queue, op)
	n := len(s.queue)
	s.mu.Unlock()
	s.signal()
	return n
}

// pop returns the oldest op. done is true once the shard is closed and empty.
func (s *shard) pop() (op persistOp, ok, done bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return persistOp{}, false, s.closed
	}
	op = s.queue[0]
	s.queue[0] = persistOp{}
	s.queue = s.queue[1:]
	return op, true, false
}

func (s *shard) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.signal()
}

func (s *shard) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Persister mirrors registry mutations to a ListingStore off the caller's
// goroutine. Operations on the same listing id always land on the same worker
// so an upsert can never overtake the delete that follows it. Failures are
// logged and reported on the returned completion channel; they never touch
// registry state.
type Persister struct {
	store   domain.ListingStore
	shards  []*shard
	backlog int
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPersister starts the worker goroutines. Call Close to drain them.
func NewPersister(store domain.ListingStore, cfg PersisterConfig, logger *slog.Logger) *Persister {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	p := &Persister{
		store:   store,
		shards:  make([]*shard, cfg.Workers),
		backlog: cfg.QueueSize,
		timeout: cfg.Timeout,
		logger:  logger.With(slog.String("component", "persister")),
	}
	for i := range p.shards {
		s := &shard{wake: make(chan struct{}, 1)}
		p.shards[i] = s
		p.wg.Add(1)
		go p.work(s)
	}
	return p
}

// Upsert schedules a write of l. The returned channel yields the outcome once.
func (p *Persister) Upsert(l domain.Listing) <-chan error {
	return p.enqueue(persistOp{kind: opUpsert, id: l.ID, listing: l})
}

// Delete schedules the removal of id. The returned channel yields the outcome once.
func (p *Persister) Delete(id string) <-chan error {
	return p.enqueue(persistOp{kind: opDelete, id: id})
}

// enqueue never blocks.
func (p *Persister) enqueue(op persistOp) <-chan error {
	op.done = make(chan error, 1)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		err := fmt.Errorf("market: persist %s %s: %w", op.kind, op.id, domain.ErrClosed)
		p.logger.Error("persist dropped after close",
			slog.String("listing_id", op.id),
			slog.String("op", op.kind.String()),
		)
		op.done <- err
		return op.done
	}
	if n := p.shards[p.shardFor(op.id)].push(op); n == p.backlog+1 {
		p.logger.Warn("persistence backlog growing, store is slow or down",
			slog.Int("queued", n),
			slog.String("listing_id", op.id),
		)
	}
	return op.done
}

func (p *Persister) shardFor(id string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % uint32(len(p.shards)))
}

func (p *Persister) work(s *shard) {
	defer p.wg.Done()
	for {
		op, ok, done := s.pop()
		switch {
		case ok:
			op.done <- p.apply(op)
		case done:
			return
		default:
			<-s.wake
		}
	}
}

func (p *Persister) apply(op persistOp) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	var err error
	switch op.kind {
	case opUpsert:
		err = p.store.Upsert(ctx, op.listing)
	case opDelete:
		err = p.store.Delete(ctx, op.id)
	}
	if err == nil {
		return nil
	}

	p.logger.ErrorContext(ctx, "listing persistence failed",
		slog.String("listing_id", op.id),
		slog.String("op", op.kind.String()),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("market: persist %s %s: %w: %w", op.kind, op.id, domain.ErrPersistence, err)
}

// Close stops accepting work and waits for queued operations to finish or
// for ctx to expire. It is safe to call more than once.
func (p *Persister) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		for _, s := range p.shards {
			s.close()
		}
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("market: persister drain: %w", ctx.Err())
	}
}
