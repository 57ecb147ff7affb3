package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	ErrQueueFull = errors.New("too many playlists queued, try again later")
	ErrStopped   = errors.New("queue stopped")
)

// Task is a unit of work run by a queue worker.
type Task interface {
	GetId() string
	Start(ctx context.Context) error
}

type MessageQueue struct {
	concurrency int
	tasks       chan Task
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

func NewMessageQueue(size int) (*MessageQueue, error) {
	if size <= 0 {
		return nil, errors.New("invalid queue size")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &MessageQueue{
		concurrency: size,
		tasks:       make(chan Task, size*4),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Publish a task. Waits for room in the queue until ctx is done, in which
// case ErrQueueFull is returned.
func (m *MessageQueue) Publish(ctx context.Context, t Task) error {
	if m.ctx.Err() != nil {
		return ErrStopped
	}

	select {
	case m.tasks <- t:
		slog.Info("published task", slog.String("id", t.GetId()))
		return nil
	case <-ctx.Done():
		slog.Warn("queue full, dropping task", slog.String("id", t.GetId()))
		return fmt.Errorf("%w: %w", ErrQueueFull, ctx.Err())
	case <-m.ctx.Done():
		slog.Warn("queue stopped, dropping task", slog.String("id", t.GetId()))
		return ErrStopped
	}
}

// N parallel workers, each running one task at a time
func (m *MessageQueue) SetupConsumers() {
	for i := 0; i < m.concurrency; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}
}

func (m *MessageQueue) worker(workerId int) {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case t := <-m.tasks:
			if t == nil {
				continue
			}

			slog.Info("worker started task",
				slog.Int("worker", workerId),
				slog.String("id", t.GetId()),
			)

			if err := t.Start(m.ctx); err != nil {
				slog.Warn("task failed",
					slog.Int("worker", workerId),
					slog.String("id", t.GetId()),
					slog.Any("err", err),
				)
			}
		}
	}
}

// Stop cancels running tasks and waits for the workers to return.
func (m *MessageQueue) Stop() {
	m.cancel()
	m.wg.Wait()
}
