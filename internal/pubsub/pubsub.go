// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pubsub is a tiny fan-out broadcaster: Publish delivers a
// message to every currently-subscribed Queue, each buffered and
// independently drained, so a slow or stalled subscriber never blocks
// the publisher or other subscribers. Used by client to broadcast
// connection lifecycle events (state changes, `ready`/`required`/`name`)
// to however many observers a caller wants, without the caller having to
// provide its own sink implementation just to watch for events.
package pubsub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Queue is a single subscriber's inbox, as returned by PubSub.Subscribe.
type Queue interface {
	// ID uniquely identifies this queue among a PubSub's subscribers.
	ID() string

	// PopTimeout blocks until an element is available or timeout
	// elapses, whichever comes first.
	PopTimeout(timeout time.Duration) (any, bool)

	// Push enqueues data for this subscriber. Non-blocking: if the
	// queue's buffer is full, the message is dropped rather than
	// stalling the publisher.
	Push(data any)

	// Close tears the queue down; subsequent Push/PopTimeout calls are
	// no-ops.
	Close()
}

// channel is the default Queue implementation, backed by a buffered Go
// channel.
type channel struct {
	id     string
	ch     chan any
	closed atomic.Bool
}

func newChannel(size int) Queue {
	if size <= 0 {
		size = 1
	}

	return &channel{
		id: uuid.New().String(),
		ch: make(chan any, size),
	}
}

func (ch *channel) ID() string {
	return ch.id
}

func (ch *channel) PopTimeout(timeout time.Duration) (any, bool) {
	if ch.closed.Load() {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	select {
	case data, ok := <-ch.ch:
		return data, ok

	case <-ctx.Done():
		return nil, false
	}
}

func (ch *channel) Push(data any) {
	if ch.closed.Load() {
		return
	}

	select {
	case ch.ch <- data:
	default:
	}
}

func (ch *channel) Close() {
	if ch.closed.CompareAndSwap(false, true) {
		close(ch.ch)
	}
}

// PubSub fans a published message out to every subscribed Queue.
type PubSub struct {
	mut    sync.RWMutex
	queues map[string]Queue
}

// New returns an empty PubSub.
func New() *PubSub {
	return &PubSub{
		queues: make(map[string]Queue),
	}
}

// Num reports the current subscriber count.
func (p *PubSub) Num() int {
	p.mut.RLock()
	defer p.mut.RUnlock()

	return len(p.queues)
}

// Subscribe registers a new Queue with the given buffer size (minimum
// 1) and returns it.
func (p *PubSub) Subscribe(size int) Queue {
	p.mut.Lock()
	defer p.mut.Unlock()

	ch := newChannel(size)
	p.queues[ch.ID()] = ch
	return ch
}

// Publish delivers msg to every currently-subscribed Queue.
func (p *PubSub) Publish(msg any) {
	p.mut.RLock()
	defer p.mut.RUnlock()

	for _, q := range p.queues {
		q.Push(msg)
	}
}

// Unsubscribe removes q; it does not close q itself.
func (p *PubSub) Unsubscribe(q Queue) {
	p.mut.Lock()
	defer p.mut.Unlock()

	delete(p.queues, q.ID())
}
