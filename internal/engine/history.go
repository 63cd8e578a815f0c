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
	"fmt"
	"log/slog"

	"gothumb/internal/scene"
	"gothumb/internal/undo"
)

// recordLocked pushes the current document as the state before an edit.
func (e *Engine) recordLocked(label string) {
	e.recordDocLocked(label, e.doc)
}

func (e *Engine) recordDocLocked(label string, doc *scene.Document) {
	blob, err := json.Marshal(doc)
	if err != nil {
		e.log.Warn("history snapshot failed", slog.String("label", label), slog.Any("err", err))
		return
	}
	e.history.PushSnapshot(undo.Snapshot{Key: e.histKey, Label: label, Blob: blob, TS: e.now()})
}

// restoreLocked replaces the document with blob and reattaches decoded pixels.
// The selection survives when its object still exists.
func (e *Engine) restoreLocked(blob []byte, ev []event) ([]event, error) {
	d := scene.NewDocument()
	if err := json.Unmarshal(blob, d); err != nil {
		return ev, fmt.Errorf("restore history: %w", err)
	}
	for _, o := range d.Objects() {
		switch v := o.(type) {
		case *scene.TextObject:
		case *scene.ImageObject:
			v.Image = e.pixels[v.ID]
		default:
			panic(fmt.Sprintf("engine: unknown object type %T", o))
		}
	}
	e.doc = d
	e.drag = dragState{}
	e.guides = nil
	if obj := e.activeLocked(); obj != nil {
		return e.modifiedLocked(obj, ev), nil
	}
	return e.selectLocked("", ev), nil
}

func (e *Engine) step(redo bool) (bool, error) {
	done := false
	err := e.update(func(ev []event) ([]event, error) {
		cur, err := json.Marshal(e.doc)
		if err != nil {
			return ev, err
		}
		now := undo.Snapshot{Label: "current", Blob: cur, TS: e.now()}
		var s undo.Snapshot
		var ok bool
		if redo {
			s, ok = e.history.Redo(e.histKey, now)
		} else {
			s, ok = e.history.Undo(e.histKey, now)
		}
		if !ok {
			return ev, nil
		}
		ev, err = e.restoreLocked(s.Blob, ev)
		done = err == nil
		return ev, err
	})
	return done, err
}

// Undo restores the state before the last edit. It reports whether there was one.
func (e *Engine) Undo() (bool, error) { return e.step(false) }

// Redo re-applies the last undone edit.
func (e *Engine) Redo() (bool, error) { return e.step(true) }

// CanUndo and CanRedo report whether history is available.
func (e *Engine) CanUndo() bool { return e.history.CanUndo(e.histKey) }

func (e *Engine) CanRedo() bool { return e.history.CanRedo(e.histKey) }
