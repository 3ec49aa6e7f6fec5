// Package resultqueue holds relevant articles between the partition workers
// that produce them and the batch writer that persists them.
package resultqueue

import (
	"sync"

	"github.com/medwatch/contentprocessor/internal/contentprocessor/model"
)

// Queue is a FIFO shared by many producers and a single consumer. Both the
// single-item enqueue and the bounded drain run under one mutex, so a drain
// can never interleave with concurrent enqueues and, because Go mutexes hand
// off to the longest waiter under contention, no producer is starved from
// flushing under load.
//
// The queue is deliberately unbounded: its depth is the backlog signal the
// orchestrator watches to adapt the write cadence. It never blocks
// producers.
type Queue struct {
	mutex sync.Mutex
	items []*model.Article
}

func New() *Queue {
	return &Queue{}
}

// Enqueue appends one article to the tail.
func (q *Queue) Enqueue(article *model.Article) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.items = append(q.items, article)
}

// Drain removes and returns up to max articles from the head under a single
// lock acquisition. Draining an empty queue returns an empty slice.
func (q *Queue) Drain(max int) []*model.Article {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	n := max
	if n > len(q.items) {
		n = len(q.items)
	}
	if n <= 0 {
		return nil
	}

	drained := make([]*model.Article, n)
	copy(drained, q.items[:n])

	remaining := len(q.items) - n
	copy(q.items, q.items[n:])
	for i := remaining; i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = q.items[:remaining]

	return drained
}

// Len reports the current queue depth.
func (q *Queue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.items)
}
