/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package engine owns a live scene document and its rendering surface. It
// turns pointer and keyboard input into selection and transforms, exposes
// typed mutations, and notifies observers about selection changes.
//
// Every mutation and its re-render run under one lock, which plays the part
// of a UI thread. Image decoding runs outside the lock; its continuation
// re-checks a generation token so a load that outlives Dispose or a
// re-Initialize changes nothing.
package engine

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/fogleman/gg"

	"gothumb/internal/assets"
	applog "gothumb/internal/log"
	"gothumb/internal/render"
	"gothumb/internal/scene"
	"gothumb/internal/textlayout"
	"gothumb/internal/undo"
	"gothumb/internal/vector"
)

// Options configure an Engine. Zero values get working defaults.
type Options struct {
	Fonts  *textlayout.FontLibrary
	Loader *assets.Loader
	// History may be shared between engines; each engine uses its own key.
	History *undo.Manager
	// Snap enables smart-guide snapping while moving objects.
	Snap   bool
	Logger *slog.Logger
	Now    func() time.Time
}

// Engine is one editor instance. It is safe for concurrent use.
type Engine struct {
	renderer *render.Renderer
	loader   *assets.Loader
	history  *undo.Manager
	histKey  string
	log      *slog.Logger
	snap     bool
	now      func() time.Time

	mu       sync.Mutex
	doc      *scene.Document
	selected string
	surface  Surface
	ready    bool
	disposed bool
	gen      uint64
	// decoded pixels by image object id, used to reattach after undo
	pixels map[string]image.Image
	drag   dragState
	guides []vector.GuideLine

	obsMu     sync.Mutex
	observers []observerEntry
	nextObs   int
	// pending events in mutation order; one caller delivers at a time
	pending  []event
	draining bool
}

// New returns an engine that is not ready until Initialize succeeds.
func New(opts Options) *Engine {
	if opts.Loader == nil {
		opts.Loader = assets.NewLoader(0)
	}
	if opts.History == nil {
		opts.History = undo.NewManager(undo.Config{MaxPerKey: 100, MinInterval: 400 * time.Millisecond})
	}
	if opts.Logger == nil {
		opts.Logger = applog.WithComponent("engine")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		renderer: render.New(opts.Fonts),
		loader:   opts.Loader,
		history:  opts.History,
		histKey:  scene.NewID(),
		log:      opts.Logger,
		snap:     opts.Snap,
		now:      opts.Now,
		doc:      scene.NewDocument(),
		pixels:   make(map[string]image.Image),
	}
}

// Renderer exposes the renderer, mainly for hosts that draw previews.
func (e *Engine) Renderer() *render.Renderer { return e.renderer }

// Initialize allocates the rendering surface. The surface must have the
// authoring size. A second call releases the previous surface first and
// starts a new, empty document.
func (e *Engine) Initialize(host SurfaceHost, w, h int) error {
	lg := applog.WithOperation(e.log, "initialize")
	if host == nil {
		return &InitializationError{Width: w, Height: h, Err: errors.New("no surface host")}
	}
	if w != scene.Width || h != scene.Height {
		return &InitializationError{Width: w, Height: h,
			Err: fmt.Errorf("surface must be %dx%d", scene.Width, scene.Height)}
	}

	e.mu.Lock()
	var ev []event
	if e.surface != nil {
		e.surface.Release()
		e.surface = nil
		lg.Debug("released previous surface")
	}
	e.gen++
	e.ready = false
	ev = e.resetLocked(ev)
	s, err := host.CreateSurface(w, h)
	if err != nil {
		e.queueLocked(ev)
		e.mu.Unlock()
		e.flush()
		lg.Error("surface creation failed", slog.Any("err", err))
		return &InitializationError{Width: w, Height: h, Err: err}
	}
	if s == nil || s.Canvas() == nil {
		e.queueLocked(ev)
		e.mu.Unlock()
		e.flush()
		return &InitializationError{Width: w, Height: h, Err: errors.New("host returned no drawing context")}
	}
	e.surface = s
	e.ready = true
	e.disposed = false
	e.renderLocked()
	e.queueLocked(ev)
	e.mu.Unlock()
	e.flush()
	lg.Info("engine initialized", slog.Int("w", w), slog.Int("h", h))
	return nil
}

// Dispose releases the surface and discards the document. Pending loads
// become no-ops. Later calls do nothing.
func (e *Engine) Dispose() {
	e.mu.Lock()
	if e.disposed || e.surface == nil {
		e.disposed = true
		e.mu.Unlock()
		return
	}
	var ev []event
	e.gen++
	e.ready = false
	e.disposed = true
	e.surface.Release()
	e.surface = nil
	ev = e.resetLocked(ev)
	e.queueLocked(ev)
	e.mu.Unlock()
	e.flush()
	e.log.Debug("engine disposed")
}

// resetLocked empties the document, selection and history.
func (e *Engine) resetLocked(ev []event) []event {
	if e.selected != "" {
		e.selected = ""
		ev = append(ev, event{kind: evCleared})
	}
	e.doc = scene.NewDocument()
	e.pixels = make(map[string]image.Image)
	e.drag = dragState{}
	e.guides = nil
	e.history.Clear(e.histKey)
	return ev
}

// Ready reports whether the engine accepts mutations.
func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

// update runs fn under the lock when the engine is ready, re-renders, and
// delivers the collected events after unlocking.
func (e *Engine) update(fn func(ev []event) ([]event, error)) error {
	e.mu.Lock()
	if !e.ready {
		e.mu.Unlock()
		return ErrNotReady
	}
	ev, err := fn(nil)
	e.renderLocked()
	e.queueLocked(ev)
	e.mu.Unlock()
	e.flush()
	return err
}

func (e *Engine) renderLocked() {
	if e.surface == nil {
		return
	}
	e.renderer.Draw(e.surface.Canvas(), e.doc, e.overlayLocked())
	if err := e.surface.Present(); err != nil {
		e.log.Warn("present failed", slog.Any("err", err))
	}
}

// snapshotLocked builds the notification payload for obj.
func (e *Engine) snapshotLocked(obj scene.Object) Snapshot {
	return Snapshot{
		Object: obj.Clone(),
		Index:  e.doc.IndexOf(obj.Meta().ID),
		Bounds: e.renderer.Quad(obj).Bounds(),
	}
}

// selectLocked changes the selection to id ("" clears) and queues exactly one
// notification when the selection actually changes.
func (e *Engine) selectLocked(id string, ev []event) []event {
	if id == e.selected {
		return ev
	}
	e.selected = id
	if id == "" {
		return append(ev, event{kind: evCleared})
	}
	obj, _ := e.doc.Find(id)
	return append(ev, event{kind: evSelected, snap: e.snapshotLocked(obj)})
}

// activeLocked returns the selected object, or nil.
func (e *Engine) activeLocked() scene.Object {
	if e.selected == "" {
		return nil
	}
	obj, ok := e.doc.Find(e.selected)
	if !ok {
		return nil
	}
	return obj
}

func (e *Engine) modifiedLocked(obj scene.Object, ev []event) []event {
	return append(ev, event{kind: evModified, snap: e.snapshotLocked(obj)})
}

// ActiveObject returns a copy of the selected object, or nil.
func (e *Engine) ActiveObject() scene.Object {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return nil
	}
	if obj := e.activeLocked(); obj != nil {
		return obj.Clone()
	}
	return nil
}

// ActiveSnapshot returns the snapshot of the selection.
func (e *Engine) ActiveSnapshot() (Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return Snapshot{}, false
	}
	obj := e.activeLocked()
	if obj == nil {
		return Snapshot{}, false
	}
	return e.snapshotLocked(obj), true
}

// Objects returns copies of all objects, bottom to top.
func (e *Engine) Objects() []scene.Object {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return nil
	}
	objs := e.doc.Objects()
	for i, o := range objs {
		objs[i] = o.Clone()
	}
	return objs
}

// Document returns a deep copy of the document.
func (e *Engine) Document() *scene.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Clone()
}

// SetActiveObject selects the object with id. The background cannot be selected.
func (e *Engine) SetActiveObject(id string) error {
	return e.update(func(ev []event) ([]event, error) {
		obj, ok := e.doc.Find(id)
		if !ok {
			return ev, fmt.Errorf("select %s: %w", id, scene.ErrNotFound)
		}
		if obj.Meta().Background {
			return ev, fmt.Errorf("select %s: %w", id, scene.ErrBackgroundLocked)
		}
		return e.selectLocked(id, ev), nil
	})
}

// DiscardActiveObject clears the selection.
func (e *Engine) DiscardActiveObject() {
	_ = e.update(func(ev []event) ([]event, error) {
		e.drag = dragState{}
		return e.selectLocked("", ev), nil
	})
}

// Preview renders the interactive frame (with selection chrome) at w pixels
// wide; zero means full size.
func (e *Engine) Preview(w int) (image.Image, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return nil, ErrNotReady
	}
	if w <= 0 || w > scene.Width {
		w = scene.Width
	}
	h := w * scene.Height / scene.Width
	if h < 1 {
		h = 1
	}
	dc := gg.NewContext(w, h)
	e.renderer.Draw(dc, e.doc, e.overlayLocked())
	return dc.Image(), nil
}
