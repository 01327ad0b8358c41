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

// Package router dispatches decoded instructions to per-opcode
// handlers, mirroring the teacher's processor registry but scoped to a
// single connection's lifetime rather than a process-wide table.
package router

import (
	"fmt"
	"sync"

	"github.com/guacd/gcore/instruction"
	"github.com/guacd/gcore/internal/rescue"
)

func errPanic(opcode string, r any) error {
	return fmt.Errorf("router: recovered panic dispatching %q: %v", opcode, r)
}

// Handler processes one instruction for a specific opcode.
type Handler func(ins instruction.Instruction) error

// Listener observes every dispatched instruction regardless of opcode,
// in addition to (never instead of) its specific Handler.
type Listener func(ins instruction.Instruction) error

// Router holds at most one Handler per opcode - registering a second
// handler for the same opcode replaces the first - plus any number of
// Listeners that fire alongside it. Dispatch is synchronous: Dispatch
// does not return until the handler and every listener have run.
type Router struct {
	mu        sync.RWMutex
	handlers  map[string]Handler
	listeners []Listener
}

// New returns an empty Router.
func New() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// AddInstructionHandler registers handler for opcode, replacing any
// handler previously registered for it.
func (r *Router) AddInstructionHandler(opcode string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[opcode] = handler
}

// RemoveInstructionHandler drops the handler registered for opcode, if
// any.
func (r *Router) RemoveInstructionHandler(opcode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, opcode)
}

// AddListener registers a Listener that fires for every instruction
// dispatched through this Router, in registration order, after the
// opcode-specific handler (if any) has run.
func (r *Router) AddListener(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Dispatch routes ins to its opcode's handler, if one is registered,
// then to every listener. An opcode with no registered handler is not
// an error - the wire format is forward-compatible with instructions
// this client doesn't act on - but listeners still observe it. Dispatch
// stops and returns the first error encountered, from either the
// handler or a listener.
func (r *Router) Dispatch(ins instruction.Instruction) error {
	r.mu.RLock()
	handler := r.handlers[ins.Opcode]
	listeners := append([]Listener(nil), r.listeners...)
	r.mu.RUnlock()

	if handler != nil {
		if err := callHandler(handler, ins); err != nil {
			return err
		}
	}

	for _, l := range listeners {
		if err := callListener(l, ins); err != nil {
			return err
		}
	}

	return nil
}

// callHandler and callListener recover a panicking handler/listener
// instead of letting it take down the goroutine serializing this
// connection's dispatch, converting it into an ordinary error.
func callHandler(h Handler, ins instruction.Instruction) (err error) {
	defer func() {
		if r := recover(); r != nil {
			for _, fn := range rescue.PanicHandlers {
				fn(r)
			}
			err = errPanic(ins.Opcode, r)
		}
	}()
	return h(ins)
}

func callListener(l Listener, ins instruction.Instruction) (err error) {
	defer func() {
		if r := recover(); r != nil {
			for _, fn := range rescue.PanicHandlers {
				fn(r)
			}
			err = errPanic(ins.Opcode, r)
		}
	}()
	return l(ins)
}
