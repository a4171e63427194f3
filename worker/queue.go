// Package worker 执行按用户划分的批处理任务：重算相似用户，再重算每个类别的推荐结果。
//
// 任务通过 Queue 投递（rater 在交互后投递，Scheduler 定时投递全部用户），
// Pool 从队列取出用户并发执行。不同用户的任务互不影响，某个用户失败只记录日志和指标。
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/rushteam/recommendable/core"
)

// ErrQueueClosed 表示队列已关闭，Dequeue 不会再返回任务。
var ErrQueueClosed = errors.New("worker: queue closed")

// Queue 是按用户去重的任务队列：同一用户在被取出之前重复投递只保留一份。
type Queue interface {
	core.Enqueuer

	// Dequeue 阻塞直到取出一个用户、ctx 结束或队列关闭
	Dequeue(ctx context.Context) (string, error)
}

// MemoryQueue 是进程内队列，用于测试和单机部署。
type MemoryQueue struct {
	mu      sync.Mutex
	items   []string
	pending map[string]struct{}
	notify  chan struct{}
	closed  bool
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		pending: make(map[string]struct{}),
		notify:  make(chan struct{}, 1),
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, userID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if _, ok := q.pending[userID]; ok {
		return nil
	}
	q.pending[userID] = struct{}{}
	q.items = append(q.items, userID)

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (string, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			userID := q.items[0]
			q.items = q.items[1:]
			delete(q.pending, userID)
			if len(q.items) > 0 && !q.closed {
				select {
				case q.notify <- struct{}{}:
				default:
				}
			}
			q.mu.Unlock()
			return userID, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return "", ErrQueueClosed
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-q.notify:
		}
	}
}

// Len 返回尚未取出的用户数。
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close 之后 Enqueue 返回 ErrQueueClosed，Dequeue 取完剩余任务后返回 ErrQueueClosed。
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.notify)
}

var _ Queue = (*MemoryQueue)(nil)
