package queue

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/okian/curvewatch/internal/domain/fill"
	"github.com/okian/curvewatch/internal/domain/model"
)

func task(seq int) Task {
	return Task{
		Seq: seq,
		Partition: fill.Partition{
			Key:  model.DimensionalKey{Series: "S" + strconv.Itoa(seq)},
			Rows: []model.AggregateRow{{StatementAge: 1}},
		},
	}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if !q.Enqueue(ctx, task(1)) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.Seq != 1 || got.Partition.Key.Series != "S1" {
		t.Errorf("unexpected task %+v", got)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, task(1)) || !q.Enqueue(ctx, task(2)) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, task(3)) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_PutBlocksUntilRoom(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := q.Put(ctx, task(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	short, stop := context.WithTimeout(ctx, 20*time.Millisecond)
	defer stop()
	if err := q.Put(short, task(2)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded on full queue, got %v", err)
	}

	tasks := q.Dequeue(ctx)
	done := make(chan error, 1)
	go func() { done <- q.Put(ctx, task(3)) }()

	first := <-tasks
	if first.Seq != 1 {
		t.Errorf("expected seq 1, got %d", first.Seq)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("put did not unblock after dequeue")
	}
	if second := <-tasks; second.Seq != 3 {
		t.Errorf("expected seq 3, got %d", second.Seq)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(16))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const producers, perProducer = 8, 50
	done := make(chan struct{}, producers)
	for i := 0; i < producers; i++ {
		go func(id int) {
			for j := 0; j < perProducer; j++ {
				if err := q.Put(ctx, task(id*perProducer+j)); err != nil {
					t.Errorf("put failed: %v", err)
				}
			}
			done <- struct{}{}
		}(i)
	}

	seen := make(map[int]bool)
	consumed := make(chan int)
	for i := 0; i < 4; i++ {
		go func() {
			for tk := range q.Dequeue(ctx) {
				consumed <- tk.Seq
			}
		}()
	}

	go func() {
		for i := 0; i < producers; i++ {
			<-done
		}
		_ = q.Close()
	}()

	timeout := time.After(5 * time.Second)
	for len(seen) < producers*perProducer {
		select {
		case seq := <-consumed:
			if seen[seq] {
				t.Fatalf("task %d delivered twice", seq)
			}
			seen[seq] = true
		case <-timeout:
			t.Fatalf("consumed %d of %d tasks", len(seen), producers*perProducer)
		}
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if !q.Enqueue(ctx, task(1)) || !q.Enqueue(ctx, task(2)) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if q.Enqueue(ctx, task(3)) {
		t.Error("expected enqueue to fail after closing")
	}
	if err := q.Put(ctx, task(3)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// queued tasks drain before the channel closes
	var drained []int
	timeout := time.After(time.Second)
	tasks := q.Dequeue(ctx)
	for {
		select {
		case tk, ok := <-tasks:
			if !ok {
				if len(drained) != 2 {
					t.Errorf("expected 2 drained tasks, got %v", drained)
				}
				if err := q.Close(); err != nil {
					t.Errorf("expected second close to succeed, got error: %v", err)
				}
				return
			}
			drained = append(drained, tk.Seq)
		case <-timeout:
			t.Fatal("expected dequeue channel to be closed within timeout")
		}
	}
}
