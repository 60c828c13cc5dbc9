// Package worker fills queued partitions concurrently.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/curvewatch/internal/adapters/mq/queue"
	"github.com/okian/curvewatch/internal/domain/fill"
	"github.com/okian/curvewatch/internal/domain/model"
	"github.com/okian/curvewatch/pkg/logger"
	"github.com/okian/curvewatch/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Filler fills one partition. It must be safe for concurrent use.
type Filler interface {
	FillPartition(p fill.Partition) ([]model.AggregateRow, fill.Stats)
}

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Task
}

// Result is a filled partition tagged with its task sequence number.
type Result struct {
	Seq    int
	Key    model.DimensionalKey
	Rows   []model.AggregateRow
	Stats  fill.Stats
	Worker string
}

// Worker processes tasks from a queue.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue drains.
	Run(ctx context.Context)

	// Shutdown stops the worker after the task in hand.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker fills partitions and sends the results on a channel.
type InMemoryWorker struct {
	queue   Queue
	filler  Filler
	results chan<- Result
	name    string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker.
func NewInMemoryWorker(q Queue, f Filler, results chan<- Result, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		filler:   f,
		results:  results,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	tasks := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case task, ok := <-tasks:
			if !ok {
				return
			}
			res := w.process(ctx, task)
			select {
			case w.results <- res:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Shutdown signals the worker to stop and waits for it.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, task queue.Task) Result { //nolint:gocritic // hugeParam: Task is passed by value for channel semantics
	start := time.Now()
	rows, st := w.filler.FillPartition(task.Partition)
	elapsed := time.Since(start)
	metrics.RecordPartitionFilled(elapsed)

	w.logger.Debug(ctx, "partition filled",
		logger.String("key", task.Partition.Key.String()),
		logger.Int("rows", len(rows)),
		logger.Int("extended", st.Extended),
		logger.Int("forecast", st.Forecast),
		logger.Duration("elapsed", elapsed),
	)

	return Result{
		Seq:    task.Seq,
		Key:    task.Partition.Key,
		Rows:   rows,
		Stats:  st,
		Worker: w.name,
	}
}

// Pool manages multiple workers sharing one queue and one results channel.
// The results channel is closed once every worker has returned.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	results chan Result

	startOnce sync.Once
	logger    logger.Logger
}

// NewPool creates a new worker pool. A count below one means one worker per CPU.
func NewPool(workerCount int, q Queue, f Filler) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		results: make(chan Result, workerCount),
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewInMemoryWorker(q, f, p.results, WithName("worker-"+strconv.Itoa(i)))
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Results returns the channel filled partitions are delivered on.
func (p *Pool) Results() <-chan Result { return p.results }

// Start starts all workers in the pool. Calling it twice has no effect.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		var wg sync.WaitGroup
		for _, w := range p.workers {
			wg.Add(1)
			go func(w *InMemoryWorker) {
				defer wg.Done()
				w.Run(ctx)
			}(w)
		}
		metrics.UpdateWorkerActiveCount(len(p.workers))

		go func() {
			wg.Wait()
			metrics.UpdateWorkerActiveCount(0)
			close(p.results)
		}()
	})
}

// Stop signals every worker to stop without waiting.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		w.shutdownOnce.Do(func() { close(w.shutdown) })
	}
}

// Shutdown closes the queue, stops the workers and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	p.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker %d: %w", i, shutdownCtx.Err())
		}
	}
	return nil
}
