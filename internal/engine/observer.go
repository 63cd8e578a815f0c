/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"encoding/json"

	"gothumb/internal/scene"
	"gothumb/internal/vector"
)

// Snapshot is a detached copy of one object as the engine holds it.
type Snapshot struct {
	Object scene.Object
	Index  int
	// Bounds is the axis-aligned box of the transformed object in document space.
	Bounds vector.Rect
}

// ID is the object's id.
func (s Snapshot) ID() string { return s.Object.Meta().ID }

// MarshalJSON emits {"index","bounds","object"} with the object's type tag.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	raw, err := scene.MarshalObject(s.Object)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Index  int             `json:"index"`
		Bounds vector.Rect     `json:"bounds"`
		Object json.RawMessage `json:"object"`
	}{s.Index, s.Bounds, raw})
}

// Observer receives selection and modification notifications. Calls happen
// after the engine lock is released, one at a time and in the order the
// changes were made, even with concurrent callers. An observer may call back
// into the engine; the notifications that call causes arrive after the
// current one returns.
type Observer interface {
	ObjectSelected(Snapshot)
	SelectionCleared()
	ObjectModified(Snapshot)
}

// ObserverFuncs adapts plain functions to Observer; nil fields are skipped.
type ObserverFuncs struct {
	Selected func(Snapshot)
	Cleared  func()
	Modified func(Snapshot)
}

func (f ObserverFuncs) ObjectSelected(s Snapshot) {
	if f.Selected != nil {
		f.Selected(s)
	}
}

func (f ObserverFuncs) SelectionCleared() {
	if f.Cleared != nil {
		f.Cleared()
	}
}

func (f ObserverFuncs) ObjectModified(s Snapshot) {
	if f.Modified != nil {
		f.Modified(s)
	}
}

type eventKind int

const (
	evSelected eventKind = iota
	evCleared
	evModified
)

type event struct {
	kind eventKind
	snap Snapshot
}

// Subscribe registers o. The returned func removes it and is safe to call twice.
func (e *Engine) Subscribe(o Observer) (cancel func()) {
	e.obsMu.Lock()
	id := e.nextObs
	e.nextObs++
	e.observers = append(e.observers, observerEntry{id: id, o: o})
	e.obsMu.Unlock()
	return func() {
		e.obsMu.Lock()
		defer e.obsMu.Unlock()
		for i, en := range e.observers {
			if en.id == id {
				e.observers = append(e.observers[:i:i], e.observers[i+1:]...)
				return
			}
		}
	}
}

type observerEntry struct {
	id int
	o  Observer
}

// queueLocked appends events in the order the mutations happened. Callers
// hold e.mu, so the queue order is the mutation order.
func (e *Engine) queueLocked(events []event) {
	if len(events) == 0 {
		return
	}
	e.obsMu.Lock()
	e.pending = append(e.pending, events...)
	e.obsMu.Unlock()
}

// flush delivers queued events outside the engine lock. Only one goroutine
// delivers at a time; a caller arriving while another is delivering leaves
// its events to that goroutine, which keeps every observer's view ordered.
// Events queued by an observer callback are delivered after the current one.
func (e *Engine) flush() {
	e.obsMu.Lock()
	if e.draining {
		e.obsMu.Unlock()
		return
	}
	e.draining = true
	for len(e.pending) > 0 {
		batch := e.pending
		e.pending = nil
		obs := make([]Observer, len(e.observers))
		for i, en := range e.observers {
			obs[i] = en.o
		}
		e.obsMu.Unlock()
		e.dispatch(batch, obs)
		e.obsMu.Lock()
	}
	e.draining = false
	e.obsMu.Unlock()
}

func (e *Engine) dispatch(events []event, obs []Observer) {
	for _, ev := range events {
		for _, o := range obs {
			switch ev.kind {
			case evSelected:
				o.ObjectSelected(ev.snap)
			case evCleared:
				o.SelectionCleared()
			case evModified:
				o.ObjectModified(ev.snap)
			}
		}
	}
}
