/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"math"

	"gothumb/internal/render"
	"gothumb/internal/scene"
	"gothumb/internal/vector"
)

// Handle geometry in document units.
const (
	HandleHit      = 12.0
	RotateDistance = 40.0
	minScale       = 0.01
	snapThreshold  = 8.0
)

// dragMode represents current interaction kind
// dragNone: idle; dragMove: moving selection; dragScale*: corner scaling; dragRotate: rotation handle
type dragMode int

const (
	dragNone dragMode = iota
	dragMove
	dragScaleNW
	dragScaleNE
	dragScaleSE
	dragScaleSW
	dragRotate
)

// dragState is captured on pointer down.
type dragState struct {
	mode    dragMode
	id      string
	start   vector.Pt
	base    scene.Base
	quad    vector.Quad
	box     vector.Rect
	changed bool
}

// Handles describe the selection chrome in document coordinates.
type Handles struct {
	Quad    vector.Quad
	Corners [4]vector.Pt
	Rotate  vector.Pt
}

func handlesFor(q vector.Quad) Handles {
	top := vector.Pt{X: (q[0].X + q[1].X) / 2, Y: (q[0].Y + q[1].Y) / 2}
	up := q[0].Sub(q[3])
	n := math.Hypot(up.X, up.Y)
	if n < 1e-9 {
		up, n = vector.Pt{X: 0, Y: -1}, 1
	}
	return Handles{
		Quad:    q,
		Corners: [4]vector.Pt{q[0], q[1], q[2], q[3]},
		Rotate:  vector.Pt{X: top.X + up.X/n*RotateDistance, Y: top.Y + up.Y/n*RotateDistance},
	}
}

// Controls returns the handles of the selection.
func (e *Engine) Controls() (Handles, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return Handles{}, false
	}
	obj := e.activeLocked()
	if obj == nil {
		return Handles{}, false
	}
	return handlesFor(e.renderer.Quad(obj)), true
}

func (e *Engine) overlayLocked() *render.Overlay {
	obj := e.activeLocked()
	if obj == nil && len(e.guides) == 0 {
		return nil
	}
	ov := &render.Overlay{Guides: e.guides}
	if obj != nil {
		h := handlesFor(e.renderer.Quad(obj))
		ov.Quad = h.Quad
		ov.Handles = h.Corners[:]
		r := h.Rotate
		ov.Rotate = &r
	}
	return ov
}

// hitTestLocked returns the topmost selectable object containing p.
func (e *Engine) hitTestLocked(p vector.Pt) scene.Object {
	objs := e.doc.Objects()
	for i := len(objs) - 1; i >= 0; i-- {
		o := objs[i]
		if o.Meta().Background {
			continue
		}
		if e.renderer.Quad(o).Contains(p) {
			return o
		}
	}
	return nil
}

// HitTest returns a copy of the topmost selectable object at p, or nil.
func (e *Engine) HitTest(p vector.Pt) scene.Object {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return nil
	}
	if o := e.hitTestLocked(p); o != nil {
		return o.Clone()
	}
	return nil
}

// PointerDown starts an interaction at p (document coordinates): a handle of
// the selection starts a scale or rotate, an object is selected and starts a
// move, empty canvas clears the selection.
func (e *Engine) PointerDown(p vector.Pt) error {
	return e.update(func(ev []event) ([]event, error) {
		e.drag = dragState{}
		e.guides = nil
		if obj := e.activeLocked(); obj != nil {
			h := handlesFor(e.renderer.Quad(obj))
			mode := dragNone
			if p.Dist(h.Rotate) <= HandleHit {
				mode = dragRotate
			} else {
				for i, c := range h.Corners {
					if p.Dist(c) <= HandleHit {
						mode = dragScaleNW + dragMode(i)
						break
					}
				}
			}
			if mode != dragNone {
				e.beginDragLocked(mode, obj, p)
				return ev, nil
			}
		}
		hit := e.hitTestLocked(p)
		if hit == nil {
			return e.selectLocked("", ev), nil
		}
		ev = e.selectLocked(hit.Meta().ID, ev)
		e.beginDragLocked(dragMove, hit, p)
		return ev, nil
	})
}

func (e *Engine) beginDragLocked(mode dragMode, obj scene.Object, p vector.Pt) {
	e.drag = dragState{
		mode:  mode,
		id:    obj.Meta().ID,
		start: p,
		base:  *obj.Meta(),
		quad:  e.renderer.Quad(obj),
		box:   e.renderer.LocalBox(obj),
	}
}

// PointerMove continues the current interaction and reports each move that
// changes the object.
func (e *Engine) PointerMove(p vector.Pt) error {
	return e.update(func(ev []event) ([]event, error) {
		d := &e.drag
		if d.mode == dragNone {
			return ev, nil
		}
		obj, ok := e.doc.Find(d.id)
		if !ok {
			e.drag = dragState{}
			return ev, nil
		}
		next := d.base
		switch d.mode {
		case dragMove:
			next.X = d.base.X + p.X - d.start.X
			next.Y = d.base.Y + p.Y - d.start.Y
			if e.snap {
				next = e.snapLocked(obj, next)
			}
		case dragScaleNW, dragScaleNE, dragScaleSE, dragScaleSW:
			next = scaleFromCorner(d, int(d.mode-dragScaleNW), p)
		case dragRotate:
			next = rotateAboutCenter(d, p)
		}
		m := obj.Meta()
		if next == *m {
			return ev, nil
		}
		if !d.changed {
			e.recordLocked("transform")
			d.changed = true
		}
		*m = next
		return e.modifiedLocked(obj, ev), nil
	})
}

// PointerUp ends the interaction. Every effective move was already reported.
func (e *Engine) PointerUp() error {
	return e.update(func(ev []event) ([]event, error) {
		e.drag = dragState{}
		e.guides = nil
		return ev, nil
	})
}

// scaleFromCorner scales uniformly by the ratio of the pointer's distance to
// the opposite corner, keeping that corner fixed.
func scaleFromCorner(d *dragState, corner int, p vector.Pt) scene.Base {
	next := d.base
	opp := (corner + 2) % 4
	anchor := d.quad[opp]
	startDist := d.quad[corner].Dist(anchor)
	if startDist < 1e-9 {
		return next
	}
	f := p.Dist(anchor) / startDist
	next.ScaleX = math.Max(minScale, d.base.ScaleX*f)
	next.ScaleY = math.Max(minScale, d.base.ScaleY*f)
	local := vector.TransformRect(vector.Identity, d.box)[opp]
	m := vector.ObjectTransform(0, 0, next.ScaleX, next.ScaleY, next.Angle)
	off := m.Apply(local)
	next.X = anchor.X - off.X
	next.Y = anchor.Y - off.Y
	return next
}

// rotateAboutCenter turns the object around its visual center while the
// stored angle stays relative to the top-left origin.
func rotateAboutCenter(d *dragState, p vector.Pt) scene.Base {
	next := d.base
	c := vector.Pt{X: (d.quad[0].X + d.quad[2].X) / 2, Y: (d.quad[0].Y + d.quad[2].Y) / 2}
	a0 := math.Atan2(d.start.Y-c.Y, d.start.X-c.X)
	a1 := math.Atan2(p.Y-c.Y, p.X-c.X)
	delta := a1 - a0
	next.Angle = normAngle(d.base.Angle + vector.Degrees(delta))
	origin := vector.Pt{X: d.base.X - c.X, Y: d.base.Y - c.Y}
	r := vector.Rotate(delta).Apply(origin)
	next.X = c.X + r.X
	next.Y = c.Y + r.Y
	return next
}

// snapLocked aligns the moved bounds to the canvas and the other objects.
func (e *Engine) snapLocked(obj scene.Object, next scene.Base) scene.Base {
	trial := obj.Clone()
	*trial.Meta() = next
	moving := e.renderer.Quad(trial).Bounds()
	anchors := []vector.Anchor{vector.CanvasAnchor(scene.Width, scene.Height)}
	for _, o := range e.doc.Objects() {
		if o.Meta().Background || o.Meta().ID == obj.Meta().ID {
			continue
		}
		anchors = append(anchors, vector.Anchor{Rect: e.renderer.Quad(o).Bounds(), Weight: 1})
	}
	snapped, guides := vector.ComputeSmartGuides(moving, anchors,
		vector.SnapOptions{Threshold: snapThreshold, SnapToEdges: true, SnapToCenters: true})
	e.guides = guides
	next.X += snapped.X - moving.X
	next.Y += snapped.Y - moving.Y
	return next
}

// KeyDown handles editor keys: Delete and Backspace delete the selection,
// Escape clears it, arrows nudge it by one unit. It reports whether the key
// was consumed.
func (e *Engine) KeyDown(key string) bool {
	switch key {
	case "Delete", "Backspace":
		return e.DeleteSelected()
	case "Escape":
		had := e.ActiveObject() != nil
		e.DiscardActiveObject()
		return had
	case "ArrowLeft":
		return e.nudge(-1, 0)
	case "ArrowRight":
		return e.nudge(1, 0)
	case "ArrowUp":
		return e.nudge(0, -1)
	case "ArrowDown":
		return e.nudge(0, 1)
	}
	return false
}

func (e *Engine) nudge(dx, dy float64) bool {
	done := false
	_ = e.update(func(ev []event) ([]event, error) {
		obj := e.activeLocked()
		if obj == nil {
			return ev, nil
		}
		e.recordLocked("nudge")
		obj.Meta().X += dx
		obj.Meta().Y += dy
		done = true
		return e.modifiedLocked(obj, ev), nil
	})
	return done
}
